package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind is the normalized event kind used by the tracker. Incoming payloads
// carry one of several spellings per kind (short lowercase names or the
// hook product's PascalCase names); ParseKind folds them into this enum so
// the tracker never branches on raw spellings.
type Kind string

const (
	KindSessionStart Kind = "session-start"
	KindSessionEnd   Kind = "session-end"
	KindTaskStart    Kind = "task-start"
	KindTaskEnd      Kind = "task-end"
	KindStop         Kind = "stop"
	KindHeartbeat    Kind = "heartbeat"
	KindUnknown      Kind = "unknown"
)

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// ErrMalformedEvent indicates the request body could not be decoded into an
// event at all. Anything that decodes — even an empty object — is accepted
// and treated as generic activity.
var ErrMalformedEvent = errors.New("malformed event")

// Event is a decoded activity notification. Kind keeps the raw spelling as
// received; everything else is optional.
type Event struct {
	Kind      string `json:"kind"`
	SessionID string `json:"sessionId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
	ToolName  string `json:"toolName,omitempty"`
}

// wireEvent accepts the field spellings used by both the informal clients
// and the hook product (hook_event_name / tool_use_id etc.).
type wireEvent struct {
	Kind          string `json:"kind"`
	Type          string `json:"type"`
	HookEventName string `json:"hook_event_name"`

	SessionID      string `json:"sessionId"`
	SessionIDSnake string `json:"session_id"`

	TaskID      string `json:"taskId"`
	TaskIDSnake string `json:"task_id"`
	ToolUseID   string `json:"tool_use_id"`

	ToolName      string `json:"toolName"`
	ToolNameSnake string `json:"tool_name"`
}

// Decode parses a JSON payload into an Event. Decode failure is the only
// error path; missing or unrecognized fields are never fatal.
func Decode(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	return Event{
		Kind:      firstNonEmpty(w.Kind, w.Type, w.HookEventName),
		SessionID: firstNonEmpty(w.SessionID, w.SessionIDSnake),
		TaskID:    firstNonEmpty(w.TaskID, w.TaskIDSnake, w.ToolUseID),
		ToolName:  firstNonEmpty(w.ToolName, w.ToolNameSnake),
	}, nil
}

// ParseKind normalizes a raw kind string into the internal enum. Matching is
// case-insensitive and ignores "-" and "_" separators, so "session-start",
// "session_start" and "SessionStart" all map to KindSessionStart.
// Unrecognized kinds map to KindUnknown, which the tracker treats as generic
// activity — new upstream event names must never be fatal.
func ParseKind(raw string) Kind {
	normalized := strings.ToLower(raw)
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch normalized {
	case "sessionstart":
		return KindSessionStart
	case "sessionend":
		return KindSessionEnd
	case "taskstart", "toolstart", "pretooluse":
		return KindTaskStart
	case "taskend", "toolend", "posttooluse":
		return KindTaskEnd
	case "stop", "subagentstop":
		return KindStop
	case "heartbeat", "ping", "notification", "userpromptsubmit":
		return KindHeartbeat
	default:
		return KindUnknown
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
