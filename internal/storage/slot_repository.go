package storage

import (
	"context"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/model"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/libs/db"
)

type SlotRepository struct {
	pool *db.Pool
}

func NewSlotRepository(pool *db.Pool) *SlotRepository {
	return &SlotRepository{pool: pool}
}

// CreateBatch inserts a generated tiling in one transaction so an operator
// either gets the whole window published or none of it.
func (r *SlotRepository) CreateBatch(ctx context.Context, slots []model.AvailabilitySlot) error {
	if len(slots) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, s := range slots {
		_, err := tx.Exec(ctx, `
			INSERT INTO availability_slots (id, owner_id, day, start_time, end_time, status)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.ID, s.OwnerID, s.Day, s.StartTime, s.EndTime, s.Status)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListOpen returns the owner's pending slots that no live appointment
// references, sorted by day then start time. The NOT EXISTS guard is
// redundant with the claim transition but keeps a bad row from ever
// being offered to visitors.
func (r *SlotRepository) ListOpen(ctx context.Context, ownerID string) ([]model.AvailabilitySlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.owner_id, s.day, s.start_time, s.end_time, s.status,
			COALESCE(s.external_event_id, ''), s.created_at
		FROM availability_slots s
		WHERE s.owner_id = $1
			AND s.status = 'pending'
			AND NOT EXISTS (
				SELECT 1 FROM appointments a
				WHERE a.slot_id = s.id AND a.status <> 'cancelled'
			)
		ORDER BY s.day ASC, s.start_time ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.AvailabilitySlot
	for rows.Next() {
		var s model.AvailabilitySlot
		if err := rows.Scan(
			&s.ID,
			&s.OwnerID,
			&s.Day,
			&s.StartTime,
			&s.EndTime,
			&s.Status,
			&s.ExternalEventID,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slots, nil
}

func (r *SlotRepository) GetByID(ctx context.Context, slotID string) (model.AvailabilitySlot, error) {
	var s model.AvailabilitySlot
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, day, start_time, end_time, status,
			COALESCE(external_event_id, ''), created_at
		FROM availability_slots
		WHERE id = $1
	`, slotID).Scan(
		&s.ID,
		&s.OwnerID,
		&s.Day,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.ExternalEventID,
		&s.CreatedAt,
	)
	if err != nil {
		return model.AvailabilitySlot{}, err
	}
	return s, nil
}

// MarkClaimed is the claim transition. The conditional update is the whole
// concurrency story: two racing reservations both run it, the row count
// tells exactly one of them it won. Never read-then-write here.
func (r *SlotRepository) MarkClaimed(ctx context.Context, slotID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE availability_slots
		SET status = 'claimed'
		WHERE id = $1 AND status = 'pending'
	`, slotID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCancelled withdraws a still-open slot. Claimed slots cannot be
// withdrawn this way; cancel the appointment instead.
func (r *SlotRepository) MarkCancelled(ctx context.Context, ownerID, slotID string) (model.AvailabilitySlot, error) {
	var s model.AvailabilitySlot
	err := r.pool.QueryRow(ctx, `
		UPDATE availability_slots
		SET status = 'cancelled'
		WHERE id = $1 AND owner_id = $2 AND status = 'pending'
		RETURNING id, owner_id, day, start_time, end_time, status,
			COALESCE(external_event_id, ''), created_at
	`, slotID, ownerID).Scan(
		&s.ID,
		&s.OwnerID,
		&s.Day,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.ExternalEventID,
		&s.CreatedAt,
	)
	if err != nil {
		return model.AvailabilitySlot{}, err
	}
	return s, nil
}

func (r *SlotRepository) SetExternalEventID(ctx context.Context, slotID, eventID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE availability_slots
		SET external_event_id = $2
		WHERE id = $1
	`, slotID, eventID)
	return err
}
