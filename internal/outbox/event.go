package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (one topic per event type).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AppointmentCreated     = "booking.appointment.created.v1"
	AppointmentRescheduled = "booking.appointment.rescheduled.v1"
	AppointmentConfirmed   = "booking.appointment.confirmed.v1"
	AppointmentCompleted   = "booking.appointment.completed.v1"
	AppointmentCancelled   = "booking.appointment.cancelled.v1"
)
