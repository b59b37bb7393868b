package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types emitted by the scheduling core.
const (
	EventSlotsPublished       = "scheduling.slots.published.v1"
	EventSlotWithdrawn        = "scheduling.slot.withdrawn.v1"
	EventAppointmentReserved  = "scheduling.appointment.reserved.v1"
	EventAppointmentConfirmed = "scheduling.appointment.confirmed.v1"
	EventAppointmentCancelled = "scheduling.appointment.cancelled.v1"
)
