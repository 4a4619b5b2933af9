package models

import (
	"encoding/json"
	"testing"
	"time"
)

func fileEvent(id string, url string) Event {
	content, _ := json.Marshal(MessageContent{
		MsgType: MsgTypeFile,
		Body:    "report.pdf",
		URL:     url,
	})
	return Event{
		ID:        id,
		RoomID:    "!abc:example.org",
		Sender:    "@alice:example.org",
		Type:      EventTypeMessage,
		Timestamp: time.Now().UTC(),
		Content:   content,
	}
}

func TestFileEventsFilterMatches(t *testing.T) {
	filter := FileEventsFilter(20)

	withURL := fileEvent("$1", "mxc://example.org/abc")
	if !filter.Matches(&withURL) {
		t.Fatal("expected event with attachment URL to match")
	}

	withoutURL := fileEvent("$2", "")
	if filter.Matches(&withoutURL) {
		t.Fatal("expected event without attachment URL not to match")
	}

	member := Event{ID: "$3", Type: EventTypeMember}
	if filter.Matches(&member) {
		t.Fatal("expected state event not to match")
	}

	if filter.Matches(nil) {
		t.Fatal("expected nil event not to match")
	}
}

func TestFilterDefinitionNotTypes(t *testing.T) {
	filter := FilterDefinition{NotTypes: []EventType{EventTypeRedaction}}

	redaction := Event{ID: "$1", Type: EventTypeRedaction}
	if filter.Matches(&redaction) {
		t.Fatal("expected excluded type not to match")
	}

	message := fileEvent("$2", "mxc://example.org/abc")
	if !filter.Matches(&message) {
		t.Fatal("expected non-excluded type to match")
	}
}

func TestFilterDefinitionMarshalWire(t *testing.T) {
	data, err := FileEventsFilter(10).MarshalWire()
	if err != nil {
		t.Fatalf("MarshalWire: %v", err)
	}

	var decoded WireFilter
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal wire filter: %v", err)
	}
	if decoded.Room.Timeline.Limit != 10 {
		t.Fatalf("unexpected limit: %d", decoded.Room.Timeline.Limit)
	}
	if decoded.Room.Timeline.ContainsURL == nil || !*decoded.Room.Timeline.ContainsURL {
		t.Fatal("expected contains_url to survive the wire")
	}
}

func TestEventNormalize(t *testing.T) {
	event := Event{ID: "$1", OriginServerTS: 1700000000000}
	event.Normalize()
	if event.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be derived")
	}
	if event.Timestamp.UnixMilli() != 1700000000000 {
		t.Fatalf("unexpected timestamp: %v", event.Timestamp)
	}
}
