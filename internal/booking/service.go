// Package booking owns the appointment lifecycle: publishing availability,
// claiming slots, and moving appointments through reserved, confirmed and
// cancelled. The database is the source of truth; the calendar mirror and
// the outbox are downstream of every transition, never ahead of it.
package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/availability"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/model"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/outbox"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/storage"
)

// SlotStore is the slot persistence surface the service needs.
type SlotStore interface {
	CreateBatch(ctx context.Context, slots []model.AvailabilitySlot) error
	ListOpen(ctx context.Context, ownerID string) ([]model.AvailabilitySlot, error)
	GetByID(ctx context.Context, slotID string) (model.AvailabilitySlot, error)
	MarkClaimed(ctx context.Context, slotID string) (bool, error)
	MarkCancelled(ctx context.Context, ownerID, slotID string) (model.AvailabilitySlot, error)
	SetExternalEventID(ctx context.Context, slotID, eventID string) error
}

// AppointmentStore is the appointment persistence surface the service needs.
type AppointmentStore interface {
	Create(ctx context.Context, appt model.Appointment) error
	GetByID(ctx context.Context, ownerID, id string) (model.Appointment, error)
	GetByIDWithContact(ctx context.Context, ownerID, id string) (model.Appointment, error)
	FindByOwner(ctx context.Context, ownerID string, limit int) ([]model.Appointment, error)
	UpdateStatus(ctx context.Context, ownerID, id string, status model.AppointmentStatus) (model.Appointment, error)
	UpdateContactAndConfirm(ctx context.Context, ownerID, id string, contact model.Contact) (model.Appointment, error)
	SetExternalEventID(ctx context.Context, id, eventID string) error
}

// ContactDirectory resolves a booking contact against the tenant's CRM
// records. Optional: a nil directory disables enrichment.
type ContactDirectory interface {
	FindByEmail(ctx context.Context, email, ownerID string) (string, bool, error)
}

// CalendarMirror pushes state changes to the tenant's external calendar.
// Implementations must be best-effort: they log and return zero values on
// failure and never block a local transition.
type CalendarMirror interface {
	MirrorSlotAsAvailable(ctx context.Context, slot model.AvailabilitySlot) string
	MirrorAppointment(ctx context.Context, appt model.Appointment, existingEventID string) string
	RemoveOrRecolor(ctx context.Context, ownerID, eventID string, status model.AppointmentStatus)
}

// EventRecorder persists a domain event for asynchronous publication.
type EventRecorder interface {
	Insert(ctx context.Context, event outbox.Event) error
}

// Service implements the booking state machine.
type Service struct {
	slots        SlotStore
	appointments AppointmentStore
	contacts     ContactDirectory
	mirror       CalendarMirror
	events       EventRecorder
	logger       *slog.Logger
}

// NewService wires the state machine. contacts may be nil to disable
// contact enrichment; events may be nil to disable outbox recording.
func NewService(slots SlotStore, appointments AppointmentStore, contacts ContactDirectory, mirror CalendarMirror, events EventRecorder, logger *slog.Logger) *Service {
	return &Service{
		slots:        slots,
		appointments: appointments,
		contacts:     contacts,
		mirror:       mirror,
		events:       events,
		logger:       logger,
	}
}

// PublishAvailability tiles the window into slots, persists them, and
// mirrors each one to the tenant's calendar. Mirror failures leave the
// slot valid with no external event id.
func (s *Service) PublishAvailability(ctx context.Context, ownerID string, day, windowStart, windowEnd time.Time, slotDuration time.Duration) ([]model.AvailabilitySlot, error) {
	slots := availability.GenerateSlots(ownerID, day, windowStart, windowEnd, slotDuration)
	if len(slots) == 0 {
		return nil, nil
	}

	if err := s.slots.CreateBatch(ctx, slots); err != nil {
		return nil, fmt.Errorf("persist slots: %w", err)
	}

	for i := range slots {
		eventID := s.mirror.MirrorSlotAsAvailable(ctx, slots[i])
		if eventID == "" {
			continue
		}
		if err := s.slots.SetExternalEventID(ctx, slots[i].ID, eventID); err != nil {
			s.logger.Warn("failed to store external event id for slot",
				slog.String("slot_id", slots[i].ID), slog.String("error", err.Error()))
			continue
		}
		slots[i].ExternalEventID = eventID
	}

	s.record(ctx, outbox.Event{
		AggregateType: "availability",
		AggregateID:   ownerID,
		EventType:     outbox.EventSlotsPublished,
		Payload: mustJSON(map[string]any{
			"owner_id": ownerID,
			"day":      day.Format("2006-01-02"),
			"count":    len(slots),
		}),
	})

	return slots, nil
}

// ListOpenSlots returns the tenant's bookable slots in chronological order.
func (s *Service) ListOpenSlots(ctx context.Context, ownerID string) ([]model.AvailabilitySlot, error) {
	return s.slots.ListOpen(ctx, ownerID)
}

// Reserve claims a slot for a contact. The conditional claim in the slot
// store is the only arbiter under concurrency: exactly one caller wins,
// everyone else gets ErrSlotUnavailable.
func (s *Service) Reserve(ctx context.Context, slotID string, contact model.Contact, notes string) (model.Appointment, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("load slot: %w", err)
	}

	claimed, err := s.slots.MarkClaimed(ctx, slotID)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("claim slot: %w", err)
	}
	if !claimed {
		return model.Appointment{}, ErrSlotUnavailable
	}

	now := time.Now().UTC()
	appt := model.Appointment{
		ID:        uuid.NewString(),
		SlotID:    slot.ID,
		OwnerID:   slot.OwnerID,
		Contact:   contact,
		Notes:     notes,
		Status:    model.AppointmentReserved,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if s.contacts != nil && contact.Email != "" {
		contactID, found, err := s.contacts.FindByEmail(ctx, contact.Email, slot.OwnerID)
		if err != nil {
			s.logger.Warn("contact lookup failed",
				slog.String("owner_id", slot.OwnerID), slog.String("error", err.Error()))
		} else if found {
			appt.ContactID = contactID
		}
	}

	if err := s.appointments.Create(ctx, appt); err != nil {
		// The partial unique index on slot_id fires only if the claim
		// ordering was somehow bypassed; treat it as losing the race.
		if storage.IsUniqueViolation(err) {
			return model.Appointment{}, ErrSlotUnavailable
		}
		// The slot stays claimed. A claimed slot without an appointment is
		// unsellable but safe; double-booking is not.
		return model.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}

	eventID := s.mirror.MirrorAppointment(ctx, appt, slot.ExternalEventID)
	if eventID != "" {
		if err := s.appointments.SetExternalEventID(ctx, appt.ID, eventID); err != nil {
			s.logger.Warn("failed to store external event id for appointment",
				slog.String("appointment_id", appt.ID), slog.String("error", err.Error()))
		} else {
			appt.ExternalEventID = eventID
		}
	}

	s.record(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentReserved,
		Payload: mustJSON(map[string]any{
			"appointment_id": appt.ID,
			"slot_id":        slot.ID,
			"owner_id":       slot.OwnerID,
			"start_time":     appt.StartTime.Format(time.RFC3339),
		}),
	})

	return appt, nil
}

// Confirm moves a reserved appointment to confirmed, optionally replacing
// its contact details. Confirming an already-confirmed or cancelled
// appointment is a no-op success.
func (s *Service) Confirm(ctx context.Context, ownerID, appointmentID string, contact *model.Contact) (model.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, ownerID, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status == model.AppointmentConfirmed || appt.Status == model.AppointmentCancelled {
		return appt, nil
	}

	var updated model.Appointment
	if contact != nil {
		updated, err = s.appointments.UpdateContactAndConfirm(ctx, ownerID, appointmentID, mergeContact(appt.Contact, *contact))
	} else {
		updated, err = s.appointments.UpdateStatus(ctx, ownerID, appointmentID, model.AppointmentConfirmed)
	}
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("confirm appointment: %w", err)
	}

	eventID := s.mirror.MirrorAppointment(ctx, updated, updated.ExternalEventID)
	if eventID != "" && updated.ExternalEventID == "" {
		if err := s.appointments.SetExternalEventID(ctx, updated.ID, eventID); err != nil {
			s.logger.Warn("failed to store external event id for appointment",
				slog.String("appointment_id", updated.ID), slog.String("error", err.Error()))
		} else {
			updated.ExternalEventID = eventID
		}
	}

	s.record(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   updated.ID,
		EventType:     outbox.EventAppointmentConfirmed,
		Payload: mustJSON(map[string]any{
			"appointment_id": updated.ID,
			"owner_id":       ownerID,
		}),
	})

	return updated, nil
}

// Cancel moves an appointment to cancelled and recolors its calendar
// event. The underlying slot stays claimed: cancelled appointments do not
// return capacity to the open pool. Cancelling twice is a no-op success.
func (s *Service) Cancel(ctx context.Context, ownerID, appointmentID string) (model.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, ownerID, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status == model.AppointmentCancelled {
		return appt, nil
	}

	updated, err := s.appointments.UpdateStatus(ctx, ownerID, appointmentID, model.AppointmentCancelled)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("cancel appointment: %w", err)
	}

	if updated.ExternalEventID != "" {
		s.mirror.RemoveOrRecolor(ctx, ownerID, updated.ExternalEventID, model.AppointmentCancelled)
	}

	s.record(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   updated.ID,
		EventType:     outbox.EventAppointmentCancelled,
		Payload: mustJSON(map[string]any{
			"appointment_id": updated.ID,
			"owner_id":       ownerID,
		}),
	})

	return updated, nil
}

// WithdrawSlot removes an unclaimed slot from the open pool. A slot that
// has already been claimed cannot be withdrawn.
func (s *Service) WithdrawSlot(ctx context.Context, ownerID, slotID string) (model.AvailabilitySlot, error) {
	slot, err := s.slots.MarkCancelled(ctx, ownerID, slotID)
	if err != nil {
		if storage.IsNotFound(err) {
			// Distinguish "unknown slot" from "slot exists but is claimed",
			// within the caller's tenant only: another tenant's ids must
			// stay indistinguishable from unknown ones.
			if existing, getErr := s.slots.GetByID(ctx, slotID); getErr == nil && existing.OwnerID == ownerID {
				return model.AvailabilitySlot{}, ErrSlotUnavailable
			}
			return model.AvailabilitySlot{}, ErrNotFound
		}
		return model.AvailabilitySlot{}, fmt.Errorf("withdraw slot: %w", err)
	}

	if slot.ExternalEventID != "" {
		s.mirror.RemoveOrRecolor(ctx, ownerID, slot.ExternalEventID, model.AppointmentCancelled)
	}

	s.record(ctx, outbox.Event{
		AggregateType: "availability",
		AggregateID:   slot.ID,
		EventType:     outbox.EventSlotWithdrawn,
		Payload: mustJSON(map[string]any{
			"slot_id":  slot.ID,
			"owner_id": ownerID,
		}),
	})

	return slot, nil
}

// ListAppointments returns the tenant's appointments, newest first.
func (s *Service) ListAppointments(ctx context.Context, ownerID string, limit int) ([]model.Appointment, error) {
	return s.appointments.FindByOwner(ctx, ownerID, limit)
}

// GetAppointment returns a single appointment with CRM contact details
// merged in when the booking was linked to a known contact.
func (s *Service) GetAppointment(ctx context.Context, ownerID, appointmentID string) (model.Appointment, error) {
	appt, err := s.appointments.GetByIDWithContact(ctx, ownerID, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// mergeContact overlays the non-empty fields of update onto base, so a
// confirmation can correct a single field without erasing the rest of
// the contact captured at reservation time.
func mergeContact(base, update model.Contact) model.Contact {
	if update.FirstName != "" {
		base.FirstName = update.FirstName
	}
	if update.LastName != "" {
		base.LastName = update.LastName
	}
	if update.Email != "" {
		base.Email = update.Email
	}
	if update.Phone != "" {
		base.Phone = update.Phone
	}
	return base
}

func (s *Service) record(ctx context.Context, event outbox.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Insert(ctx, event); err != nil {
		s.logger.Error("failed to record domain event",
			slog.String("event_type", event.EventType), slog.String("error", err.Error()))
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
