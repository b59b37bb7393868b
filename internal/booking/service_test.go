package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/model"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/outbox"
)

type fakeSlotStore struct {
	mu    sync.Mutex
	slots map[string]model.AvailabilitySlot
}

func newFakeSlotStore() *fakeSlotStore {
	return &fakeSlotStore{slots: make(map[string]model.AvailabilitySlot)}
}

func (f *fakeSlotStore) CreateBatch(_ context.Context, slots []model.AvailabilitySlot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range slots {
		f.slots[s.ID] = s
	}
	return nil
}

func (f *fakeSlotStore) ListOpen(_ context.Context, ownerID string) ([]model.AvailabilitySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AvailabilitySlot
	for _, s := range f.slots {
		if s.OwnerID == ownerID && s.Status == model.SlotPending {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSlotStore) GetByID(_ context.Context, slotID string) (model.AvailabilitySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[slotID]
	if !ok {
		return model.AvailabilitySlot{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeSlotStore) MarkClaimed(_ context.Context, slotID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[slotID]
	if !ok || s.Status != model.SlotPending {
		return false, nil
	}
	s.Status = model.SlotClaimed
	f.slots[slotID] = s
	return true, nil
}

func (f *fakeSlotStore) MarkCancelled(_ context.Context, ownerID, slotID string) (model.AvailabilitySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[slotID]
	if !ok || s.OwnerID != ownerID || s.Status != model.SlotPending {
		return model.AvailabilitySlot{}, pgx.ErrNoRows
	}
	s.Status = model.SlotCancelled
	f.slots[slotID] = s
	return s, nil
}

func (f *fakeSlotStore) SetExternalEventID(_ context.Context, slotID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[slotID]
	if !ok {
		return pgx.ErrNoRows
	}
	s.ExternalEventID = eventID
	f.slots[slotID] = s
	return nil
}

func (f *fakeSlotStore) status(slotID string) model.SlotStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots[slotID].Status
}

type fakeAppointmentStore struct {
	mu           sync.Mutex
	appointments map[string]model.Appointment
	createErr    error
}

func newFakeAppointmentStore() *fakeAppointmentStore {
	return &fakeAppointmentStore{appointments: make(map[string]model.Appointment)}
}

func (f *fakeAppointmentStore) Create(_ context.Context, a model.Appointment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appointments[a.ID] = a
	return nil
}

func (f *fakeAppointmentStore) GetByID(_ context.Context, ownerID, id string) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.OwnerID != ownerID {
		return model.Appointment{}, pgx.ErrNoRows
	}
	return a, nil
}

func (f *fakeAppointmentStore) GetByIDWithContact(ctx context.Context, ownerID, id string) (model.Appointment, error) {
	return f.GetByID(ctx, ownerID, id)
}

func (f *fakeAppointmentStore) FindByOwner(_ context.Context, ownerID string, limit int) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Appointment
	for _, a := range f.appointments {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeAppointmentStore) UpdateStatus(_ context.Context, ownerID, id string, status model.AppointmentStatus) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.OwnerID != ownerID {
		return model.Appointment{}, pgx.ErrNoRows
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	f.appointments[id] = a
	return a, nil
}

func (f *fakeAppointmentStore) UpdateContactAndConfirm(_ context.Context, ownerID, id string, c model.Contact) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.OwnerID != ownerID {
		return model.Appointment{}, pgx.ErrNoRows
	}
	a.Contact = c
	a.Status = model.AppointmentConfirmed
	a.UpdatedAt = time.Now().UTC()
	f.appointments[id] = a
	return a, nil
}

func (f *fakeAppointmentStore) SetExternalEventID(_ context.Context, id, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.ExternalEventID = eventID
	f.appointments[id] = a
	return nil
}

// fakeMirror returns nextEventID from the create-style calls, or "" to
// simulate an unreachable calendar.
type fakeMirror struct {
	mu               sync.Mutex
	nextEventID      string
	slotCalls        int
	appointmentCalls int
	recolorCalls     int
	lastStatus       model.AppointmentStatus
}

func (f *fakeMirror) MirrorSlotAsAvailable(_ context.Context, _ model.AvailabilitySlot) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slotCalls++
	if f.nextEventID == "" {
		return ""
	}
	return f.nextEventID + "-" + uuid.NewString()[:8]
}

func (f *fakeMirror) MirrorAppointment(_ context.Context, _ model.Appointment, existingEventID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appointmentCalls++
	if existingEventID != "" {
		return existingEventID
	}
	return f.nextEventID
}

func (f *fakeMirror) RemoveOrRecolor(_ context.Context, _, _ string, status model.AppointmentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recolorCalls++
	f.lastStatus = status
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []outbox.Event
}

func (f *fakeRecorder) Insert(_ context.Context, e outbox.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeRecorder) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedSlot(t *testing.T, store *fakeSlotStore, ownerID string) model.AvailabilitySlot {
	t.Helper()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	slot := model.AvailabilitySlot{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Day:       day,
		StartTime: day.Add(9 * time.Hour),
		EndTime:   day.Add(9*time.Hour + 30*time.Minute),
		Status:    model.SlotPending,
	}
	if err := store.CreateBatch(context.Background(), []model.AvailabilitySlot{slot}); err != nil {
		t.Fatalf("seed slot: %v", err)
	}
	return slot
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	slots := newFakeSlotStore()
	appts := newFakeAppointmentStore()
	mirror := &fakeMirror{nextEventID: "evt"}
	svc := NewService(slots, appts, nil, mirror, &fakeRecorder{}, testLogger())

	slot := seedSlot(t, slots, "owner-1")

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), slot.ID, model.Contact{
				FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
			}, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 successful reserve, got %d", wins)
	}
	if losses != callers-1 {
		t.Fatalf("expected %d losers, got %d", callers-1, losses)
	}
	if len(appts.appointments) != 1 {
		t.Fatalf("expected exactly 1 appointment, got %d", len(appts.appointments))
	}
}

func TestReserveUnknownSlot(t *testing.T) {
	svc := NewService(newFakeSlotStore(), newFakeAppointmentStore(), nil, &fakeMirror{}, &fakeRecorder{}, testLogger())

	_, err := svc.Reserve(context.Background(), uuid.NewString(), model.Contact{Email: "a@b.com"}, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReserveSurvivesMirrorOutage(t *testing.T) {
	slots := newFakeSlotStore()
	appts := newFakeAppointmentStore()
	mirror := &fakeMirror{nextEventID: ""} // calendar unreachable
	events := &fakeRecorder{}
	svc := NewService(slots, appts, nil, mirror, events, testLogger())

	slot := seedSlot(t, slots, "owner-1")

	appt, err := svc.Reserve(context.Background(), slot.ID, model.Contact{
		FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com",
	}, "first visit")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if appt.Status != model.AppointmentReserved {
		t.Fatalf("expected reserved status, got %q", appt.Status)
	}
	if appt.ExternalEventID != "" {
		t.Fatalf("expected no external event id when mirror fails, got %q", appt.ExternalEventID)
	}
	if got := events.types(); len(got) != 1 || got[0] != outbox.EventAppointmentReserved {
		t.Fatalf("expected reserved event recorded, got %v", got)
	}
}

func TestReserveEnrichesKnownContact(t *testing.T) {
	slots := newFakeSlotStore()
	appts := newFakeAppointmentStore()
	directory := fakeDirectory{"grace@example.com": "contact-42"}
	svc := NewService(slots, appts, directory, &fakeMirror{}, &fakeRecorder{}, testLogger())

	slot := seedSlot(t, slots, "owner-1")

	appt, err := svc.Reserve(context.Background(), slot.ID, model.Contact{
		FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com",
	}, "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if appt.ContactID != "contact-42" {
		t.Fatalf("expected contact enrichment, got %q", appt.ContactID)
	}
}

type fakeDirectory map[string]string

func (f fakeDirectory) FindByEmail(_ context.Context, email, _ string) (string, bool, error) {
	id, ok := f[email]
	return id, ok, nil
}

func TestConfirmIsIdempotent(t *testing.T) {
	slots := newFakeSlotStore()
	appts := newFakeAppointmentStore()
	mirror := &fakeMirror{nextEventID: "evt-1"}
	svc := NewService(slots, appts, nil, mirror, &fakeRecorder{}, testLogger())

	slot := seedSlot(t, slots, "owner-1")
	appt, err := svc.Reserve(context.Background(), slot.ID, model.Contact{Email: "x@y.com"}, "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	first, err := svc.Confirm(context.Background(), "owner-1", appt.ID, nil)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if first.Status != model.AppointmentConfirmed {
		t.Fatalf("expected confirmed, got %q", first.Status)
	}
	callsAfterFirst := mirror.appointmentCalls

	second, err := svc.Confirm(context.Background(), "owner-1", appt.ID, nil)
	if err != nil {
		t.Fatalf("repeat confirm: %v", err)
	}
	if second.Status != model.AppointmentConfirmed {
		t.Fatalf("expected confirmed after repeat, got %q", second.Status)
	}
	if mirror.appointmentCalls != callsAfterFirst {
		t.Fatalf("repeat confirm should not touch the calendar")
	}
}

func TestConfirmReplacesContact(t *testing.T) {
	slots := newFakeSlotStore()
	appts := newFakeAppointmentStore()
	svc := NewService(slots, appts, nil, &fakeMirror{}, &fakeRecorder{}, testLogger())

	slot := seedSlot(t, slots, "owner-1")
	appt, err := svc.Reserve(context.Background(), slot.ID, model.Contact{FirstName: "Old", Email: "old@x.com"}, "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	updated, err := svc.Confirm(context.Background(), "owner-1", appt.ID, &model.Contact{
		FirstName: "New", LastName: "Name", Email: "new@x.com", Phone: "+33600000000",
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if updated.Contact.Email != "new@x.com" || updated.Status != model.AppointmentConfirmed {
		t.Fatalf("expected confirmed with replaced contact, got %+v", updated)
	}
}

func TestConfirmAfterCancelIsNoOp(t *testing.T) {
	slots := newFakeSlotStore()
	appts := newFakeAppointmentStore()
	svc := NewService(slots, appts, nil, &fakeMirror{}, &fakeRecorder{}, testLogger())

	slot := seedSlot(t, slots, "owner-1")
	appt, err := svc.Reserve(context.Background(), slot.ID, model.Contact{Email: "x@y.com"}, "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), "owner-1", appt.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, err := svc.Confirm(context.Background(), "owner-1", appt.ID, nil)
	if err != nil {
		t.Fatalf("confirm after cancel: %v", err)
	}
	if got.Status != model.AppointmentCancelled {
		t.Fatalf("confirm must not resurrect a cancelled appointment, got %q", got.Status)
	}
}

func TestCancelKeepsSlotClaimed(t *testing.T) {
	slots := newFakeSlotStore()
	appts := newFakeAppointmentStore()
	mirror := &fakeMirror{nextEventID: "evt-1"}
	svc := NewService(slots, appts, nil, mirror, &fakeRecorder{}, testLogger())

	slot := seedSlot(t, slots, "owner-1")
	appt, err := svc.Reserve(context.Background(), slot.ID, model.Contact{Email: "x@y.com"}, "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), "owner-1", appt.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.AppointmentCancelled {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}
	if got := slots.status(slot.ID); got != model.SlotClaimed {
		t.Fatalf("slot must stay claimed after cancellation, got %q", got)
	}
	if mirror.lastStatus != model.AppointmentCancelled {
		t.Fatalf("expected cancel recolor, got %q", mirror.lastStatus)
	}

	open, err := svc.ListOpenSlots(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("cancelled booking must not return the slot to the open pool")
	}

	// Second cancel is a quiet no-op.
	recolors := mirror.recolorCalls
	if _, err := svc.Cancel(context.Background(), "owner-1", appt.ID); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if mirror.recolorCalls != recolors {
		t.Fatalf("repeat cancel should not touch the calendar")
	}
}

func TestCancelWrongOwner(t *testing.T) {
	slots := newFakeSlotStore()
	appts := newFakeAppointmentStore()
	svc := NewService(slots, appts, nil, &fakeMirror{}, &fakeRecorder{}, testLogger())

	slot := seedSlot(t, slots, "owner-1")
	appt, err := svc.Reserve(context.Background(), slot.ID, model.Contact{Email: "x@y.com"}, "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), "owner-2", appt.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant cancel must look like not found, got %v", err)
	}
}

func TestPublishAvailability(t *testing.T) {
	slots := newFakeSlotStore()
	mirror := &fakeMirror{nextEventID: "evt"}
	events := &fakeRecorder{}
	svc := NewService(slots, newFakeAppointmentStore(), nil, mirror, events, testLogger())

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	published, err := svc.PublishAvailability(context.Background(), "owner-1",
		day, day.Add(9*time.Hour), day.Add(10*time.Hour), 30*time.Minute)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(published) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(published))
	}
	for _, s := range published {
		if s.ExternalEventID == "" {
			t.Fatalf("expected mirrored slot to carry external event id")
		}
	}
	if mirror.slotCalls != 2 {
		t.Fatalf("expected 2 mirror calls, got %d", mirror.slotCalls)
	}
	if got := events.types(); len(got) != 1 || got[0] != outbox.EventSlotsPublished {
		t.Fatalf("expected slots published event, got %v", got)
	}
}

func TestWithdrawSlot(t *testing.T) {
	slots := newFakeSlotStore()
	appts := newFakeAppointmentStore()
	svc := NewService(slots, appts, nil, &fakeMirror{}, &fakeRecorder{}, testLogger())

	slot := seedSlot(t, slots, "owner-1")
	withdrawn, err := svc.WithdrawSlot(context.Background(), "owner-1", slot.ID)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if withdrawn.Status != model.SlotCancelled {
		t.Fatalf("expected cancelled slot, got %q", withdrawn.Status)
	}

	if _, err := svc.WithdrawSlot(context.Background(), "owner-1", uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown slot, got %v", err)
	}

	claimed := seedSlot(t, slots, "owner-1")
	if _, err := svc.Reserve(context.Background(), claimed.ID, model.Contact{Email: "x@y.com"}, ""); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := svc.WithdrawSlot(context.Background(), "owner-1", claimed.ID); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for claimed slot, got %v", err)
	}
}

func TestWithdrawSlotOtherTenant(t *testing.T) {
	slots := newFakeSlotStore()
	appts := newFakeAppointmentStore()
	svc := NewService(slots, appts, nil, &fakeMirror{}, &fakeRecorder{}, testLogger())

	// Another tenant's slot must look like an unknown id, whether it is
	// still open or already claimed.
	open := seedSlot(t, slots, "owner-1")
	if _, err := svc.WithdrawSlot(context.Background(), "owner-2", open.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign open slot, got %v", err)
	}

	claimed := seedSlot(t, slots, "owner-1")
	if _, err := svc.Reserve(context.Background(), claimed.ID, model.Contact{Email: "x@y.com"}, ""); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := svc.WithdrawSlot(context.Background(), "owner-2", claimed.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign claimed slot, got %v", err)
	}

	got, err := slots.GetByID(context.Background(), open.ID)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if got.Status != model.SlotPending {
		t.Fatalf("expected foreign slot untouched, got status %q", got.Status)
	}
}
