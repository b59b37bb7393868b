package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/calendar"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/libs/db"
)

// CredentialRepository reads per-owner OAuth credentials for external
// services. The scheduling core only ever reads these; issuing and
// rotating tokens belongs to the connected-accounts service.
type CredentialRepository struct {
	pool *db.Pool
}

func NewCredentialRepository(pool *db.Pool) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

func (r *CredentialRepository) GetActiveCredentials(ctx context.Context, ownerID, service string) (calendar.Credentials, bool, error) {
	var c calendar.Credentials
	err := r.pool.QueryRow(ctx, `
		SELECT client_id, client_secret, refresh_token
		FROM oauth_credentials
		WHERE owner_id = $1 AND service = $2 AND is_active = true
		ORDER BY updated_at DESC
		LIMIT 1
	`, ownerID, service).Scan(&c.ClientID, &c.ClientSecret, &c.RefreshToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calendar.Credentials{}, false, nil
		}
		return calendar.Credentials{}, false, err
	}
	return c, true, nil
}

// ContactRepository is the read-only view over the owner's contact
// directory used to link bookings to known people.
type ContactRepository struct {
	pool *db.Pool
}

func NewContactRepository(pool *db.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

// FindByEmail returns the directory id for a contact with this email, if
// any. Lookup is scoped to the owner; tenants never see each other's
// directories.
func (r *ContactRepository) FindByEmail(ctx context.Context, email, ownerID string) (string, bool, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		SELECT id::text
		FROM contacts
		WHERE owner_id = $1 AND lower(email) = lower($2)
		LIMIT 1
	`, ownerID, email).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return id, true, nil
}
