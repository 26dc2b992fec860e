package event

import (
	"testing"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{name: "request created", eventType: TypeRequestCreated, want: true},
		{name: "request submitted", eventType: TypeRequestSubmitted, want: true},
		{name: "request approved", eventType: TypeRequestApproved, want: true},
		{name: "request rejected", eventType: TypeRequestRejected, want: true},
		{name: "request paid", eventType: TypeRequestPaid, want: true},
		{name: "expense reviewed", eventType: TypeExpenseReviewed, want: true},
		{name: "unknown", eventType: Type("request.deleted"), want: false},
		{name: "empty", eventType: Type(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestType_NotifiesSpeaker(t *testing.T) {
	if TypeRequestCreated.NotifiesSpeaker() {
		t.Error("speakers are not notified about their own draft")
	}
	if TypeRequestSubmitted.NotifiesSpeaker() {
		t.Error("speakers are not notified about their own submission")
	}
	for _, typ := range []Type{TypeRequestApproved, TypeRequestRejected, TypeRequestPaid, TypeExpenseReviewed} {
		if !typ.NotifiesSpeaker() {
			t.Errorf("%s should notify the speaker", typ)
		}
	}
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeRequestSubmitted, "req-1", "speaker-1", nil)

	if evt.ID == "" || evt.CorrelationID == "" {
		t.Fatal("expected generated IDs")
	}
	if evt.ID == evt.CorrelationID {
		t.Error("event ID and correlation ID should differ")
	}
	if evt.RequestID != "req-1" || evt.SpeakerID != "speaker-1" {
		t.Errorf("unexpected ids: %+v", evt)
	}
	if evt.Payload == nil {
		t.Error("payload should never be nil")
	}
	if evt.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestEvent_WithPayloadIsImmutable(t *testing.T) {
	original := NewEvent(TypeExpenseReviewed, "req-1", "speaker-1", map[string]interface{}{
		KeyExpenseID: "exp-1",
	})

	updated := original.WithPayload(KeyNewStatus, "approved")

	if _, ok := original.Payload[KeyNewStatus]; ok {
		t.Error("original payload must not change")
	}
	if got := updated.GetPayloadString(KeyNewStatus); got != "approved" {
		t.Errorf("GetPayloadString() = %q, want approved", got)
	}
	if got := updated.GetPayloadString(KeyExpenseID); got != "exp-1" {
		t.Errorf("GetPayloadString() = %q, want exp-1", got)
	}
	if updated.ID != original.ID {
		t.Error("WithPayload should keep the event ID")
	}
}

func TestEvent_WithCorrelation(t *testing.T) {
	parent := NewEvent(TypeRequestApproved, "req-1", "speaker-1", nil)
	child := NewEvent(TypeRequestPaid, "req-1", "speaker-1", nil).WithCorrelation(parent.CorrelationID)

	if child.CorrelationID != parent.CorrelationID {
		t.Errorf("CorrelationID = %s, want %s", child.CorrelationID, parent.CorrelationID)
	}
}

func TestEvent_GetPayloadStringWrongType(t *testing.T) {
	evt := NewEvent(TypeExpenseReviewed, "req-1", "speaker-1", map[string]interface{}{"count": 3})
	if got := evt.GetPayloadString("count"); got != "" {
		t.Errorf("GetPayloadString() = %q, want empty", got)
	}
	if got := evt.GetPayloadString("missing"); got != "" {
		t.Errorf("GetPayloadString() = %q, want empty", got)
	}
}
