package models

import (
	"encoding/json"
	"fmt"
)

// FilterPurpose names a cached filter slot. Filters are created once per
// (user, purpose) pair and reused.
type FilterPurpose string

const (
	// FilterPurposeFileEvents selects messages carrying an attachment.
	FilterPurposeFileEvents FilterPurpose = "file-events"
)

// FilterDefinition is an immutable predicate specification uploaded to the
// server. The server assigns it an identifier; the definition itself never
// changes after creation.
type FilterDefinition struct {
	// Types restricts events to the listed event types.
	Types []EventType `json:"types,omitempty"`

	// NotTypes excludes the listed event types.
	NotTypes []EventType `json:"not_types,omitempty"`

	// ContainsURL restricts message events to those with an attachment URL.
	ContainsURL *bool `json:"contains_url,omitempty"`

	// Limit is the per-page event count the server returns.
	Limit int `json:"limit,omitempty"`
}

// FileEventsFilter is the predicate used by the file panel feed: message
// events whose content carries an attachment URL.
func FileEventsFilter(pageSize int) FilterDefinition {
	containsURL := true
	return FilterDefinition{
		Types:       []EventType{EventTypeMessage},
		ContainsURL: &containsURL,
		Limit:       pageSize,
	}
}

// WireFilter is the room-filter JSON shape the homeserver expects.
type WireFilter struct {
	Room struct {
		Timeline FilterDefinition `json:"timeline"`
	} `json:"room"`
}

// Wire wraps the definition into the upload shape.
func (d FilterDefinition) Wire() WireFilter {
	var w WireFilter
	w.Room.Timeline = d
	return w
}

// MarshalWire encodes the filter for upload.
func (d FilterDefinition) MarshalWire() ([]byte, error) {
	data, err := json.Marshal(d.Wire())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filter definition: %w", err)
	}
	return data, nil
}

// Matches reports whether an event satisfies the predicate. The server
// applies the filter on its side; this is used by the live timeline to
// decide which sync events belong to the feed.
func (d FilterDefinition) Matches(event *Event) bool {
	if event == nil {
		return false
	}

	if len(d.Types) > 0 {
		matched := false
		for _, t := range d.Types {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, t := range d.NotTypes {
		if event.Type == t {
			return false
		}
	}

	if d.ContainsURL != nil {
		content, ok := event.Message()
		if !ok {
			return false
		}
		hasURL := content.URL != ""
		if hasURL != *d.ContainsURL {
			return false
		}
	}

	return true
}
