package storage

import (
	"context"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/model"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/libs/db"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

const appointmentColumns = `
	id, slot_id, owner_id, first_name, last_name, email, phone,
	COALESCE(notes, ''), status, COALESCE(contact_id::text, ''),
	COALESCE(external_event_id, ''), start_time, end_time, created_at, updated_at`

// Create persists a reservation. Callers must have won the slot claim
// first; the partial unique index on (slot_id) WHERE status <> 'cancelled'
// backstops that ordering at the storage level.
func (r *AppointmentRepository) Create(ctx context.Context, a model.Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments
			(id, slot_id, owner_id, first_name, last_name, email, phone, notes, status, contact_id, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, '')::uuid, $11, $12)
	`, a.ID, a.SlotID, a.OwnerID,
		a.Contact.FirstName, a.Contact.LastName, a.Contact.Email, a.Contact.Phone,
		a.Notes, a.Status, a.ContactID, a.StartTime, a.EndTime)
	return err
}

func (r *AppointmentRepository) GetByID(ctx context.Context, ownerID, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	return scanAppointment(row)
}

// GetByIDWithContact returns the appointment with the contact snapshot
// replaced by the directory record's current values when one is linked.
// The snapshot wins when no directory record exists.
func (r *AppointmentRepository) GetByIDWithContact(ctx context.Context, ownerID, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT a.id, a.slot_id, a.owner_id,
			COALESCE(c.first_name, a.first_name),
			COALESCE(c.last_name, a.last_name),
			COALESCE(c.email, a.email),
			COALESCE(c.phone, a.phone),
			COALESCE(a.notes, ''), a.status, COALESCE(a.contact_id::text, ''),
			COALESCE(a.external_event_id, ''), a.start_time, a.end_time, a.created_at, a.updated_at
		FROM appointments a
		LEFT JOIN contacts c ON c.id = a.contact_id AND c.owner_id = a.owner_id
		WHERE a.id = $1 AND a.owner_id = $2
	`, id, ownerID)
	return scanAppointment(row)
}

func (r *AppointmentRepository) FindByOwner(ctx context.Context, ownerID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE owner_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// UpdateStatus sets the status unconditionally within the owner scope and
// returns the updated row. Setting the same status twice is a no-op by
// construction, which is what makes confirm/cancel retries safe.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, ownerID, id string, status model.AppointmentStatus) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING `+appointmentColumns+`
	`, id, ownerID, status)
	return scanAppointment(row)
}

// UpdateContactAndConfirm finalizes the contact details and confirms in a
// single statement so an operator edit cannot land on a half-updated row.
func (r *AppointmentRepository) UpdateContactAndConfirm(ctx context.Context, ownerID, id string, c model.Contact) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET first_name = $3, last_name = $4, email = $5, phone = $6,
			status = 'confirmed', updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING `+appointmentColumns+`
	`, id, ownerID, c.FirstName, c.LastName, c.Email, c.Phone)
	return scanAppointment(row)
}

func (r *AppointmentRepository) SetExternalEventID(ctx context.Context, id, eventID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET external_event_id = $2, updated_at = now()
		WHERE id = $1
	`, id, eventID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.OwnerID,
		&a.Contact.FirstName,
		&a.Contact.LastName,
		&a.Contact.Email,
		&a.Contact.Phone,
		&a.Notes,
		&a.Status,
		&a.ContactID,
		&a.ExternalEventID,
		&a.StartTime,
		&a.EndTime,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}
