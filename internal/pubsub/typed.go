package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Event[T] binds a lifecycle topic name to its payload type.
type Event[T any] struct {
	topicName   string
	description string
}

// EventInfo describes a defined event for listings.
type EventInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Payload     string   `json:"payload"`
	Fields      []string `json:"fields,omitempty"`
}

var (
	eventsMu sync.RWMutex
	events   = make(map[string]EventInfo)
)

// NewEvent defines a typed event and records it in the event catalog.
// Events are usually package-level variables. Defining two events with the
// same name panics.
func NewEvent[T any](name string, description string) Event[T] {
	info := EventInfo{Name: name, Description: description}
	t := reflect.TypeFor[T]()
	info.Payload = t.String()
	info.Fields = jsonFields(t)

	eventsMu.Lock()
	defer eventsMu.Unlock()
	if _, dup := events[name]; dup {
		panic(fmt.Sprintf("pubsub: event %q defined twice", name))
	}
	events[name] = info

	return Event[T]{
		topicName:   name,
		description: description,
	}
}

// Events returns every defined event, sorted by name.
func Events() []EventInfo {
	eventsMu.RLock()
	defer eventsMu.RUnlock()

	out := make([]EventInfo, 0, len(events))
	for _, info := range events {
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b EventInfo) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func jsonFields(t reflect.Type) []string {
	if t.Kind() != reflect.Struct {
		return nil
	}
	var fields []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		fields = append(fields, name)
	}
	return fields
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.topicName
}

// Description returns the human readable description of the event.
func (e Event[T]) Description() string {
	return e.description
}

// Publish sends a typed event. The compiler ensures 'payload' matches 'T'.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], sessionID string, payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.Name(), err)
	}

	return p.Publish(ctx, Message{
		Topic:     event.Name(),
		SessionID: sessionID,
		Payload:   data,
	})
}

// Subscribe registers handler for event, decoding each payload into T.
func Subscribe[T any](ctx context.Context, s Subscriber, event Event[T], handler func(ctx context.Context, payload T) error) error {
	return s.Subscribe(ctx, event.Name(), func(ctx context.Context, msg Message) error {
		var payload T
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", event.Name(), err)
		}
		return handler(ctx, payload)
	})
}
