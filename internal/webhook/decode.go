package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

type UnknownEventTypeError struct {
	EventType string
}

func (e UnknownEventTypeError) Error() string {
	if e.EventType == "" {
		return "missing event type"
	}
	return fmt.Sprintf("unsupported event type %q", e.EventType)
}

type MalformedPayloadError struct {
	Err error
}

func (e MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload: %v", e.Err)
}

func (e MalformedPayloadError) Unwrap() error {
	return e.Err
}

// Decode parses payload according to the event type taken from the
// X-GitHub-Event header. Unknown JSON fields are ignored.
func Decode(eventType string, payload []byte) (Event, error) {
	var event Event
	switch Kind(strings.TrimSpace(eventType)) {
	case KindPush:
		event = new(Push)
	case KindPing:
		event = new(Ping)
	default:
		return nil, UnknownEventTypeError{EventType: eventType}
	}

	if err := json.Unmarshal(payload, event); err != nil {
		return nil, MalformedPayloadError{Err: err}
	}
	if err := validateFullName(event.FullName()); err != nil {
		return nil, MalformedPayloadError{Err: err}
	}
	return event, nil
}

// validateFullName rejects repository identifiers that cannot be used as a
// directory under the repository root.
func validateFullName(fullName string) error {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return fmt.Errorf("repository full name %q is not of the form owner/name", fullName)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("repository name %q is not a valid directory name", name)
	}
	return nil
}
