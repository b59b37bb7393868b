package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/booking"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/model"
)

// PublicHandler serves the unauthenticated booking surface visitors use
// to browse slots and reserve one.
type PublicHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewPublicHandler(svc *booking.Service, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{svc: svc, logger: logger}
}

// Slots handles GET /slots?ownerId={id}.
func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get("ownerId"))
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "ownerId is required")
		return
	}

	slots, err := h.svc.ListOpenSlots(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to list open slots", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list slots")
		return
	}
	writeData(w, http.StatusOK, toSlotItems(slots))
}

type reserveRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Notes     string `json:"notes"`
}

// Reserve handles POST /reserve/{slotId}.
func (h *PublicHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	slotID := strings.TrimSpace(r.PathValue("slotId"))
	if slotID == "" {
		writeError(w, http.StatusBadRequest, "slot id is required")
		return
	}

	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	contact := model.Contact{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
	}
	if contact.FirstName == "" || contact.LastName == "" || contact.Email == "" || contact.Phone == "" {
		writeError(w, http.StatusBadRequest, "firstName, lastName, email and phone are required")
		return
	}

	appt, err := h.svc.Reserve(r.Context(), slotID, contact, strings.TrimSpace(req.Notes))
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrNotFound):
			writeError(w, http.StatusNotFound, "slot not found")
		case errors.Is(err, booking.ErrSlotUnavailable):
			writeError(w, http.StatusConflict, "slot is no longer available")
		default:
			h.logger.Error("failed to reserve slot",
				slog.String("slot_id", slotID), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to reserve slot")
		}
		return
	}
	writeData(w, http.StatusOK, toAppointmentItem(appt))
}
