package model

import "time"

type SlotStatus string

const (
	SlotPending   SlotStatus = "pending"
	SlotClaimed   SlotStatus = "claimed"
	SlotCancelled SlotStatus = "cancelled"
)

type AppointmentStatus string

const (
	AppointmentReserved  AppointmentStatus = "reserved"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// AvailabilitySlot is one bookable interval tiled out of an operator's
// availability window. Start and end share the slot's day and are stored
// in the configured business timezone.
type AvailabilitySlot struct {
	ID              string
	OwnerID         string
	Day             time.Time
	StartTime       time.Time
	EndTime         time.Time
	Status          SlotStatus
	ExternalEventID string
	CreatedAt       time.Time
}

// Contact is the booking party's details captured at reservation time.
// It is a snapshot, not a reference: the person may or may not exist in
// the contact directory.
type Contact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

func (c Contact) FullName() string {
	return c.FirstName + " " + c.LastName
}

type Appointment struct {
	ID              string
	SlotID          string
	OwnerID         string
	Contact         Contact
	Notes           string
	Status          AppointmentStatus
	ContactID       string // set when the directory knows this email
	ExternalEventID string
	StartTime       time.Time
	EndTime         time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
