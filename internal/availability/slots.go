package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/model"
)

// GenerateSlots tiles [windowStart, windowEnd) into consecutive fixed-length
// pending slots. The tiling is gapless and non-overlapping by construction:
// each slot's end is the next slot's start, and a trailing remainder shorter
// than the duration is dropped.
//
// Degenerate input (non-positive duration, empty or inverted window) yields
// no slots rather than an error; callers handle a zero-slot batch.
//
// All times are expected to be in the same location (timezone).
func GenerateSlots(ownerID string, day time.Time, windowStart, windowEnd time.Time, duration time.Duration) []model.AvailabilitySlot {
	if duration <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}

	var slots []model.AvailabilitySlot
	for cursor := windowStart; !cursor.Add(duration).After(windowEnd); cursor = cursor.Add(duration) {
		slots = append(slots, model.AvailabilitySlot{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			Day:       day,
			StartTime: cursor,
			EndTime:   cursor.Add(duration),
			Status:    model.SlotPending,
		})
	}
	return slots
}
