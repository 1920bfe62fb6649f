package messages

import "time"

// DeadLetter is a message the consumer gave up on after exhausting its retries.
type DeadLetter struct {
	Queue      string    `json:"queue"`
	RoutingKey string    `json:"routing_key"`
	Body       []byte    `json:"-"`
	Error      string    `json:"error"`
	Attempts   int       `json:"attempts"`
	FailedAt   time.Time `json:"failed_at"`
}
