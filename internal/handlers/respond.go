package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/model"
)

// Every response uses the same envelope so clients never have to guess
// the shape of an error.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, data any, msg string) {
	writeEnvelope(w, status, envelope{Success: true, Data: data, Message: msg})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, envelope{Success: false, Message: msg})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

type slotItem struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
}

func toSlotItem(s model.AvailabilitySlot) slotItem {
	return slotItem{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		Day:       s.Day.UTC().Format("2006-01-02"),
		StartTime: s.StartTime.UTC().Format(time.RFC3339),
		EndTime:   s.EndTime.UTC().Format(time.RFC3339),
		Status:    string(s.Status),
	}
}

func toSlotItems(slots []model.AvailabilitySlot) []slotItem {
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, toSlotItem(s))
	}
	return items
}

type appointmentItem struct {
	ID        string `json:"id"`
	SlotID    string `json:"slot_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Status    string `json:"status"`
	ContactID string `json:"contact_id,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	item := appointmentItem{
		ID:        a.ID,
		SlotID:    a.SlotID,
		FirstName: a.Contact.FirstName,
		LastName:  a.Contact.LastName,
		Email:     a.Contact.Email,
		Phone:     a.Contact.Phone,
		Notes:     a.Notes,
		Status:    string(a.Status),
		ContactID: a.ContactID,
		StartTime: a.StartTime.UTC().Format(time.RFC3339),
		EndTime:   a.EndTime.UTC().Format(time.RFC3339),
	}
	if !a.CreatedAt.IsZero() {
		item.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !a.UpdatedAt.IsZero() {
		item.UpdatedAt = a.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return item
}
