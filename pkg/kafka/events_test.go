package kafka

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPostingEventMarshalOmitsEmptyOptionals(t *testing.T) {
	event := PostingEvent{
		EventID:       "evt-1",
		EventType:     EventContentPosted,
		Timestamp:     time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
		Source:        "herald",
		FounderID:     "founder-1",
		ContentID:     "content-1",
		SchemaVersion: "1.0",
	}

	data, err := json.Marshal(&event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if _, present := decoded["platform_id"]; present {
		t.Error("expected platform_id to be omitted when nil")
	}
	if _, present := decoded["error_code"]; present {
		t.Error("expected error_code to be omitted when nil")
	}
	if decoded["event_type"] != EventContentPosted {
		t.Errorf("event_type = %v", decoded["event_type"])
	}
}
