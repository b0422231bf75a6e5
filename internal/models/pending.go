package models

import "strings"

// PendingRequestVersion is the current serialization version for the
// pending_request metadata value. Bump when the schema changes.
const PendingRequestVersion = 1

// MetadataKeyPending is the turn metadata key holding a PendingRequest.
const MetadataKeyPending = "pending_request"

// PendingRequest marks that the engine is mid-way through a multi-turn
// information-gathering exchange for a widget family. It lives in the
// metadata of the assistant turn that asked the clarification question.
// At most one PendingRequest is open per conversation.
type PendingRequest struct {
	Version         int    `json:"version"`
	WidgetFamily    string `json:"widget_family"`
	OriginalRequest string `json:"original_request"`
	Awaiting        string `json:"awaiting"`
	RecordedAnswer  string `json:"recorded_answer,omitempty"`
	Consumed        bool   `json:"consumed,omitempty"`
}

// Open reports whether the pending request is still awaiting an answer.
func (p *PendingRequest) Open() bool {
	return p != nil && !p.Consumed
}

// ToMetadata serializes the pending request for storage in turn metadata.
func (p PendingRequest) ToMetadata() map[string]any {
	md := map[string]any{
		"version":          PendingRequestVersion,
		"widget_family":    p.WidgetFamily,
		"original_request": p.OriginalRequest,
		"awaiting":         p.Awaiting,
		"consumed":         p.Consumed,
	}
	if p.RecordedAnswer != "" {
		md["recorded_answer"] = p.RecordedAnswer
	}
	return md
}

// PendingRequestFromMetadata decodes a PendingRequest from turn metadata.
// Metadata may come back from the database as loosely typed maps; any
// missing or mistyped field makes the value unrecoverable and the function
// returns (nil, false). It never panics.
func PendingRequestFromMetadata(metadata map[string]any) (*PendingRequest, bool) {
	if metadata == nil {
		return nil, false
	}
	raw, ok := metadata[MetadataKeyPending]
	if !ok {
		return nil, false
	}
	obj, ok := asStringMap(raw)
	if !ok {
		return nil, false
	}

	version, ok := asInt(obj["version"])
	if !ok || version != PendingRequestVersion {
		return nil, false
	}
	family, ok := asString(obj["widget_family"])
	if !ok || strings.TrimSpace(family) == "" {
		return nil, false
	}
	original, ok := asString(obj["original_request"])
	if !ok {
		return nil, false
	}
	awaiting, _ := asString(obj["awaiting"])
	answer, _ := asString(obj["recorded_answer"])
	consumed, _ := asBool(obj["consumed"])

	return &PendingRequest{
		Version:         version,
		WidgetFamily:    family,
		OriginalRequest: original,
		Awaiting:        awaiting,
		RecordedAnswer:  answer,
		Consumed:        consumed,
	}, true
}

func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
