package models

import "testing"

func TestPendingRequestRoundTrip(t *testing.T) {
	p := PendingRequest{
		Version:         PendingRequestVersion,
		WidgetFamily:    FamilyMealPlan,
		OriginalRequest: "Create a 7-day meal plan for a wrestler",
		Awaiting:        "dietary_restrictions",
	}

	md := map[string]any{MetadataKeyPending: p.ToMetadata()}
	decoded, ok := PendingRequestFromMetadata(md)
	if !ok {
		t.Fatal("expected round trip decode to succeed")
	}
	if decoded.WidgetFamily != FamilyMealPlan {
		t.Errorf("family = %q, want %q", decoded.WidgetFamily, FamilyMealPlan)
	}
	if decoded.OriginalRequest != p.OriginalRequest {
		t.Errorf("original request = %q, want %q", decoded.OriginalRequest, p.OriginalRequest)
	}
	if decoded.Consumed {
		t.Error("fresh pending request should not be consumed")
	}
	if !decoded.Open() {
		t.Error("fresh pending request should be open")
	}
}

func TestPendingRequestFromMetadataMalformed(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
	}{
		{"nil metadata", nil},
		{"missing key", map[string]any{"other": "value"}},
		{"wrong value type", map[string]any{MetadataKeyPending: "not a map"}},
		{"missing version", map[string]any{MetadataKeyPending: map[string]any{
			"widget_family": "meal_plan", "original_request": "x",
		}}},
		{"unknown version", map[string]any{MetadataKeyPending: map[string]any{
			"version": 99, "widget_family": "meal_plan", "original_request": "x",
		}}},
		{"empty family", map[string]any{MetadataKeyPending: map[string]any{
			"version": 1, "widget_family": "  ", "original_request": "x",
		}}},
		{"mistyped family", map[string]any{MetadataKeyPending: map[string]any{
			"version": 1, "widget_family": 42, "original_request": "x",
		}}},
		{"missing original request", map[string]any{MetadataKeyPending: map[string]any{
			"version": 1, "widget_family": "meal_plan",
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if p, ok := PendingRequestFromMetadata(tt.metadata); ok || p != nil {
				t.Errorf("expected (nil, false) for malformed metadata, got (%+v, %v)", p, ok)
			}
		})
	}
}

func TestPendingRequestFromMetadataNumericVersions(t *testing.T) {
	// CBOR and JSON decoders disagree on integer types; all of these must
	// decode as version 1.
	for _, v := range []any{int(1), int32(1), int64(1), uint64(1), float64(1)} {
		md := map[string]any{MetadataKeyPending: map[string]any{
			"version":          v,
			"widget_family":    FamilyMealPlan,
			"original_request": "plan please",
			"awaiting":         "dietary_restrictions",
		}}
		if _, ok := PendingRequestFromMetadata(md); !ok {
			t.Errorf("version type %T should decode", v)
		}
	}
}

func TestPendingRequestConsumedNotOpen(t *testing.T) {
	p := &PendingRequest{Version: 1, WidgetFamily: FamilyMealPlan, Consumed: true}
	if p.Open() {
		t.Error("consumed pending request should not be open")
	}
	var nilP *PendingRequest
	if nilP.Open() {
		t.Error("nil pending request should not be open")
	}
}
