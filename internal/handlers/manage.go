package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/booking"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/model"
)

// ManageHandler serves the authenticated surface business owners use to
// publish availability and run their appointment book. The tenant is
// always taken from the verified token, never from the request body.
type ManageHandler struct {
	svc      *booking.Service
	logger   *slog.Logger
	location *time.Location
}

// NewManageHandler builds the management handler. location is the
// timezone business owners express their working hours in.
func NewManageHandler(svc *booking.Service, logger *slog.Logger, location *time.Location) *ManageHandler {
	if location == nil {
		location = time.UTC
	}
	return &ManageHandler{svc: svc, logger: logger, location: location}
}

type publishAvailabilityRequest struct {
	Day                 string `json:"day"`
	WindowStart         string `json:"windowStart"`
	WindowEnd           string `json:"windowEnd"`
	SlotDurationMinutes int    `json:"slotDurationMinutes"`
}

// PublishAvailability handles POST /availability.
func (h *ManageHandler) PublishAvailability(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req publishAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Day), h.location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "day must be formatted as YYYY-MM-DD")
		return
	}
	windowStart, err := clockOnDay(day, req.WindowStart, h.location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "windowStart must be formatted as HH:MM")
		return
	}
	windowEnd, err := clockOnDay(day, req.WindowEnd, h.location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "windowEnd must be formatted as HH:MM")
		return
	}
	if req.SlotDurationMinutes <= 0 || req.SlotDurationMinutes > 8*60 {
		writeError(w, http.StatusBadRequest, "slotDurationMinutes must be between 1 and 480")
		return
	}
	if !windowEnd.After(windowStart) {
		writeError(w, http.StatusBadRequest, "windowEnd must be after windowStart")
		return
	}

	slots, err := h.svc.PublishAvailability(r.Context(), ownerID, day, windowStart, windowEnd,
		time.Duration(req.SlotDurationMinutes)*time.Minute)
	if err != nil {
		h.logger.Error("failed to publish availability",
			slog.String("owner_id", ownerID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to publish availability")
		return
	}

	msg := strconv.Itoa(len(slots)) + " slots published"
	writeMessage(w, http.StatusCreated, toSlotItems(slots), msg)
}

// WithdrawSlot handles DELETE /availability/{slotId}.
func (h *ManageHandler) WithdrawSlot(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	slotID := strings.TrimSpace(r.PathValue("slotId"))
	if slotID == "" {
		writeError(w, http.StatusBadRequest, "slot id is required")
		return
	}

	slot, err := h.svc.WithdrawSlot(r.Context(), ownerID, slotID)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrNotFound):
			writeError(w, http.StatusNotFound, "slot not found")
		case errors.Is(err, booking.ErrSlotUnavailable):
			writeError(w, http.StatusConflict, "slot has already been claimed")
		default:
			h.logger.Error("failed to withdraw slot",
				slog.String("slot_id", slotID), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to withdraw slot")
		}
		return
	}
	writeData(w, http.StatusOK, toSlotItem(slot))
}

// ListAppointments handles GET /appointments.
func (h *ManageHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.svc.ListAppointments(r.Context(), ownerID, limit)
	if err != nil {
		h.logger.Error("failed to list appointments",
			slog.String("owner_id", ownerID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	writeData(w, http.StatusOK, items)
}

// GetAppointment handles GET /appointments/{id}.
func (h *ManageHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "appointment id is required")
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), ownerID, id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("failed to load appointment",
			slog.String("appointment_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load appointment")
		return
	}
	writeData(w, http.StatusOK, toAppointmentItem(appt))
}

type updateAppointmentRequest struct {
	Status    string `json:"status"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// UpdateAppointment handles PUT /appointments/{id}. Only confirmed and
// cancelled are reachable through the API; reserved is set by the system
// when a visitor books.
func (h *ManageHandler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "appointment id is required")
		return
	}

	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	var appt model.Appointment
	var err error
	switch model.AppointmentStatus(strings.TrimSpace(req.Status)) {
	case model.AppointmentConfirmed:
		appt, err = h.svc.Confirm(r.Context(), ownerID, id, contactFromUpdate(req))
	case model.AppointmentCancelled:
		appt, err = h.svc.Cancel(r.Context(), ownerID, id)
	default:
		writeError(w, http.StatusBadRequest, "status must be confirmed or cancelled")
		return
	}
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("failed to update appointment",
			slog.String("appointment_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update appointment")
		return
	}
	writeData(w, http.StatusOK, toAppointmentItem(appt))
}

// contactFromUpdate returns replacement contact details when the request
// carries any, nil to keep the contact recorded at reservation time.
func contactFromUpdate(req updateAppointmentRequest) *model.Contact {
	c := model.Contact{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
	}
	if c.FirstName == "" && c.LastName == "" && c.Email == "" && c.Phone == "" {
		return nil
	}
	return &c
}

func clockOnDay(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, loc), nil
}
