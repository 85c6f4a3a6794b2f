package shared

// Asynq task types
const (
	TypeSweepExpiredPayments = "payment:sweep_expired"
	TypeDeliverEvent         = "notification:deliver_event"
)

// Asynq queues
const (
	QueuePayment      = "payment"
	QueueNotification = "notification"
)

// Queues returns the queue priority map used by the worker.
func Queues() map[string]int {
	return map[string]int{
		QueuePayment:      10,
		QueueNotification: 5,
	}
}

// SweepPayload is the body of the scheduled sweep task.
type SweepPayload struct {
	BatchSize int `json:"batch_size"`
}

// Context keys shared between middleware and services
const (
	ContextKeyClientIP  = "client_ip"
	ContextKeyRequestID = "request_id"
	ContextKeyUserID    = "user_id"
	ContextKeyRole      = "role"
)
