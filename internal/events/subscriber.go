package events

// Subscriber delivers raw payloads for a topic pattern until cancelled.
type Subscriber interface {
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}
