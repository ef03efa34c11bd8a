package events

import "encoding/json"

// subscriberBuffer bounds undelivered messages per subscription; newer
// messages are dropped while it is full.
const subscriberBuffer = 64

// Message is one event received from the bus.
type Message struct {
	Topic string `json:"topic"`
	// Source is the client id of the publishing session, when known.
	Source string          `json:"source,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers messages on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}
