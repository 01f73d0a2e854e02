// Package protocol implements the control channel's wire format: a
// stream of externally-tagged JSON union objects, with no length prefix,
// sent over the per-application Unix stream socket (spec §4.6, §6).
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/edirooss/crescentd/internal/descriptor"
)

// Kind discriminates the tagged union's variants.
type Kind string

const (
	KindPing            Kind = "Ping"
	KindRetrieveAppInfo Kind = "RetrieveAppInfo"
	KindCommandHistory  Kind = "CommandHistory"
	KindWriteStdin      Kind = "WriteStdin"
	KindStop            Kind = "Stop"
)

// Event is the tagged union exchanged over the control socket. Exactly one
// of its payload fields is meaningful, selected by Kind.
type Event struct {
	Kind Kind

	// Text carries the WriteStdin payload.
	Text string

	// History carries the CommandHistory payload: the client sends it
	// empty to request the list, the supervisor replies with the
	// current history, most-recent-first.
	History []string

	// AppInfo carries the RetrieveAppInfo reply payload. Nil on the
	// request (which carries only the placeholder {}).
	AppInfo *descriptor.Descriptor
}

// Ping returns a Ping event (used identically as request and reply).
func Ping() Event { return Event{Kind: KindPing} }

// Stop returns a Stop event.
func Stop() Event { return Event{Kind: KindStop} }

// RetrieveAppInfoRequest returns the RetrieveAppInfo request placeholder.
func RetrieveAppInfoRequest() Event { return Event{Kind: KindRetrieveAppInfo} }

// RetrieveAppInfoReply returns a RetrieveAppInfo reply carrying d.
func RetrieveAppInfoReply(d *descriptor.Descriptor) Event {
	return Event{Kind: KindRetrieveAppInfo, AppInfo: d}
}

// CommandHistoryRequest returns the CommandHistory request, an empty list
// per spec §4.8 ("the TUI sends CommandHistory([]) to seed its history").
func CommandHistoryRequest() Event {
	return Event{Kind: KindCommandHistory, History: []string{}}
}

// CommandHistoryReply returns a CommandHistory reply carrying entries.
func CommandHistoryReply(entries []string) Event {
	if entries == nil {
		entries = []string{}
	}
	return Event{Kind: KindCommandHistory, History: entries}
}

// WriteStdin returns a WriteStdin event carrying text verbatim.
func WriteStdin(text string) Event {
	return Event{Kind: KindWriteStdin, Text: text}
}

// ErrUnknownVariant is returned by UnmarshalJSON when the wire object's
// single key does not match any known Kind. Servers must log and drop the
// frame without disconnecting the client (spec §9).
type ErrUnknownVariant struct {
	Variant string
}

func (e *ErrUnknownVariant) Error() string {
	return fmt.Sprintf("unknown control event variant %q", e.Variant)
}

// MarshalJSON renders Event as a single externally-tagged object, e.g.
// {"Ping":null}, {"WriteStdin":"say hi"}.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindPing:
		return json.Marshal(map[string]any{"Ping": nil})
	case KindStop:
		return json.Marshal(map[string]any{"Stop": nil})
	case KindWriteStdin:
		return json.Marshal(map[string]any{"WriteStdin": e.Text})
	case KindCommandHistory:
		history := e.History
		if history == nil {
			history = []string{}
		}
		return json.Marshal(map[string]any{"CommandHistory": history})
	case KindRetrieveAppInfo:
		if e.AppInfo == nil {
			return json.Marshal(map[string]any{"RetrieveAppInfo": map[string]any{}})
		}
		return json.Marshal(map[string]any{"RetrieveAppInfo": e.AppInfo})
	default:
		return nil, fmt.Errorf("marshal control event: unknown kind %q", e.Kind)
	}
}

// UnmarshalJSON parses a single externally-tagged object into Event. An
// object with zero or more than one key, or a key matching no known
// variant, yields *ErrUnknownVariant.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode control event: %w", err)
	}
	if len(raw) != 1 {
		return &ErrUnknownVariant{Variant: fmt.Sprintf("%d keys", len(raw))}
	}

	for k, v := range raw {
		switch Kind(k) {
		case KindPing:
			*e = Ping()
		case KindStop:
			*e = Stop()
		case KindWriteStdin:
			var text string
			if err := json.Unmarshal(v, &text); err != nil {
				return fmt.Errorf("decode WriteStdin payload: %w", err)
			}
			*e = WriteStdin(text)
		case KindCommandHistory:
			var history []string
			if err := json.Unmarshal(v, &history); err != nil {
				return fmt.Errorf("decode CommandHistory payload: %w", err)
			}
			*e = CommandHistoryReply(history)
		case KindRetrieveAppInfo:
			var d descriptor.Descriptor
			// The request payload is {}; decoding into a Descriptor
			// leaves it zero-valued, which round-trips as a request.
			if len(v) > 0 && string(v) != "{}" && string(v) != "null" {
				if err := json.Unmarshal(v, &d); err != nil {
					return fmt.Errorf("decode RetrieveAppInfo payload: %w", err)
				}
				*e = RetrieveAppInfoReply(&d)
			} else {
				*e = RetrieveAppInfoRequest()
			}
		default:
			return &ErrUnknownVariant{Variant: k}
		}
	}
	return nil
}
