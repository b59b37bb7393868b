package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/model"
)

const credentialService = "calendar"

// Mirror pushes local slot/appointment state into the owner's external
// calendar. It is strictly one-way and best-effort: local state is the
// source of truth, every failure here downgrades to a warning, and the
// zero return value tells the caller nothing was mirrored.
type Mirror struct {
	creds   CredentialDirectory
	api     EventsAPI
	logger  *slog.Logger
	timeout time.Duration
}

func NewMirror(creds CredentialDirectory, api EventsAPI, logger *slog.Logger, timeout time.Duration) *Mirror {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Mirror{creds: creds, api: api, logger: logger, timeout: timeout}
}

// MirrorSlotAsAvailable creates a sage-green "available" event for a fresh
// slot and returns its external id, or "" when the owner has no usable
// credentials or the provider call fails.
func (m *Mirror) MirrorSlotAsAvailable(ctx context.Context, slot model.AvailabilitySlot) string {
	creds, ok := m.credentials(ctx, slot.OwnerID)
	if !ok {
		return ""
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	id, err := m.api.CreateEvent(callCtx, creds, Event{
		Summary: "Available",
		Start:   slot.StartTime,
		End:     slot.EndTime,
		ColorID: ColorForSlot(),
	})
	if err != nil {
		m.logger.Warn("calendar mirror: slot event create failed", "slot_id", slot.ID, "err", err)
		return ""
	}
	return id
}

// MirrorAppointment updates the slot's mirrored event with the booking
// details and the status color. When the slot was never mirrored it
// creates the event instead, so a booking still shows up on calendars
// connected after the slot was published.
func (m *Mirror) MirrorAppointment(ctx context.Context, appt model.Appointment, externalEventID string) string {
	creds, ok := m.credentials(ctx, appt.OwnerID)
	if !ok {
		return ""
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ev := Event{
		Summary:     fmt.Sprintf("Appointment: %s", appt.Contact.FullName()),
		Description: appointmentDescription(appt),
		Start:       appt.StartTime,
		End:         appt.EndTime,
		ColorID:     ColorForStatus(appt.Status),
		Attendees:   []string{appt.Contact.Email},
	}

	if externalEventID == "" {
		id, err := m.api.CreateEvent(callCtx, creds, ev)
		if err != nil {
			m.logger.Warn("calendar mirror: appointment event create failed", "appointment_id", appt.ID, "err", err)
			return ""
		}
		return id
	}

	if err := m.api.UpdateEvent(callCtx, creds, externalEventID, ev); err != nil {
		m.logger.Warn("calendar mirror: appointment event update failed", "appointment_id", appt.ID, "err", err)
		return ""
	}
	return externalEventID
}

// RemoveOrRecolor repaints an existing mirrored event with the color for
// the given status. Cancelled bookings stay visible in red rather than
// being deleted; the calendar is a history surface for the operator.
func (m *Mirror) RemoveOrRecolor(ctx context.Context, ownerID, externalEventID string, status model.AppointmentStatus) {
	if externalEventID == "" {
		return
	}
	creds, ok := m.credentials(ctx, ownerID)
	if !ok {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.api.UpdateEvent(callCtx, creds, externalEventID, Event{ColorID: ColorForStatus(status)}); err != nil {
		m.logger.Warn("calendar mirror: recolor failed", "event_id", externalEventID, "err", err)
	}
}

func (m *Mirror) credentials(ctx context.Context, ownerID string) (Credentials, bool) {
	creds, ok, err := m.creds.GetActiveCredentials(ctx, ownerID, credentialService)
	if err != nil {
		m.logger.Warn("calendar mirror: credential lookup failed", "owner_id", ownerID, "err", err)
		return Credentials{}, false
	}
	if !ok {
		return Credentials{}, false
	}
	if err := creds.Validate(); err != nil {
		m.logger.Warn("calendar mirror: skipping, credentials incomplete", "owner_id", ownerID, "err", err)
		return Credentials{}, false
	}
	return creds, true
}

func appointmentDescription(a model.Appointment) string {
	desc := fmt.Sprintf("%s\n%s\n%s", a.Contact.FullName(), a.Contact.Email, a.Contact.Phone)
	if a.Notes != "" {
		desc += "\n\n" + a.Notes
	}
	return desc
}
