// Package message defines the values exchanged between relay clients: signals
// carrying a scalar value and subscription requests.
package message

import "fmt"

// Type distinguishes the two message variants.
type Type uint32

const (
	// TypeSignal publishes (or delivers) a value on a topic.
	TypeSignal Type = iota
	// TypeSubscription asks the relay to start delivering a topic to this connection.
	TypeSubscription
)

func (t Type) String() string {
	switch t {
	case TypeSignal:
		return "signal"
	case TypeSubscription:
		return "subscription"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// Message is either a Signal or a Subscription. Construct it with NewSignal or
// NewSubscription; the Value is meaningful only for signals.
type Message struct {
	typ   Type
	topic string
	value Value
}

// NewSignal creates a signal for topic carrying v.
func NewSignal(topic string, v Value) Message {
	return Message{typ: TypeSignal, topic: topic, value: v}
}

// NewSubscription creates a subscription request for topic.
func NewSubscription(topic string) Message {
	return Message{typ: TypeSubscription, topic: topic}
}

func (m Message) Type() Type     { return m.typ }
func (m Message) Topic() string  { return m.topic }
func (m Message) Value() Value   { return m.value }
func (m Message) IsSignal() bool { return m.typ == TypeSignal }

func (m Message) String() string {
	if m.typ == TypeSubscription {
		return fmt.Sprintf("Subscription(%q)", m.topic)
	}
	return fmt.Sprintf("Signal(%q, %s %s)", m.topic, m.value.kind, m.value)
}
