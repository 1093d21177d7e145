package outbox

import "context"

// Message is a broker-neutral outbox delivery. Key groups events of one
// aggregate so brokers that support ordering keep them in sequence.
type Message struct {
	Topic      string
	Key        string
	Data       []byte
	Attributes map[string]string
}

// Broker delivers outbox messages. Publish returns only after the broker
// acknowledged the message.
type Broker interface {
	Name() string
	Ping(ctx context.Context) error
	Publish(ctx context.Context, msg Message) error
	Close() error
}
