package calendar

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/model"
)

// Credentials is the typed per-owner OAuth credential set for the external
// calendar service. Validation happens once here, at the adapter boundary,
// instead of ad hoc at every call site.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New("calendar credentials: client id missing")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return errors.New("calendar credentials: client secret missing")
	}
	if strings.TrimSpace(c.RefreshToken) == "" {
		return errors.New("calendar credentials: refresh token missing")
	}
	return nil
}

// CredentialDirectory is the read-only lookup the adapter uses to resolve
// an owner's calendar credentials. Absence is not an error: owners without
// a connected calendar simply do not get mirrored.
type CredentialDirectory interface {
	GetActiveCredentials(ctx context.Context, ownerID, service string) (Credentials, bool, error)
}

// Event is the narrow event contract the core depends on. It deliberately
// covers only the fields the mirror writes; no provider-specific surface
// leaks past this struct.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	ColorID     string
	Attendees   []string
}

// Fixed status→color table for mirrored events. The ids follow the
// provider's palette: 2 sage green, 9 blue, 10 dark green, 11 red, 8 gray.
const (
	colorAvailable = "2"
	colorReserved  = "9"
	colorConfirmed = "10"
	colorCancelled = "11"
	colorUnknown   = "8"
)

// ColorForSlot maps an open slot to the "available" color.
func ColorForSlot() string { return colorAvailable }

func ColorForStatus(status model.AppointmentStatus) string {
	switch status {
	case model.AppointmentReserved:
		return colorReserved
	case model.AppointmentConfirmed:
		return colorConfirmed
	case model.AppointmentCancelled:
		return colorCancelled
	default:
		return colorUnknown
	}
}
