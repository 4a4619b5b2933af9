package models

import (
	"encoding/json"
	"time"
)

// EventType categorizes room timeline events.
type EventType string

const (
	// Timeline events
	EventTypeMessage   EventType = "m.room.message"
	EventTypeSticker   EventType = "m.sticker"
	EventTypeEncrypted EventType = "m.room.encrypted"
	EventTypeRedaction EventType = "m.room.redaction"

	// State events
	EventTypeMember     EventType = "m.room.member"
	EventTypeCreate     EventType = "m.room.create"
	EventTypeEncryption EventType = "m.room.encryption"
	EventTypeName       EventType = "m.room.name"
)

// MsgType identifies the kind of message carried in m.room.message content.
type MsgType string

const (
	MsgTypeText  MsgType = "m.text"
	MsgTypeFile  MsgType = "m.file"
	MsgTypeImage MsgType = "m.image"
	MsgTypeVideo MsgType = "m.video"
	MsgTypeAudio MsgType = "m.audio"
)

// FileMsgTypes are the message kinds that carry an attachment.
var FileMsgTypes = []MsgType{MsgTypeFile, MsgTypeImage, MsgTypeVideo, MsgTypeAudio}

// Event is a single room timeline entry as returned by the homeserver
// or the local search index.
type Event struct {
	// ID is the server-assigned event identifier ($...).
	ID string `json:"event_id"`

	// RoomID is the room the event belongs to.
	RoomID string `json:"room_id"`

	// Sender is the user ID that sent the event.
	Sender string `json:"sender"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// Timestamp is the origin server timestamp, derived from OriginServerTS.
	Timestamp time.Time `json:"-"`

	// OriginServerTS is the raw millisecond timestamp on the wire.
	OriginServerTS int64 `json:"origin_server_ts"`

	// Content holds event-specific data.
	Content json.RawMessage `json:"content,omitempty"`

	// Decrypted marks events whose content was decrypted locally.
	Decrypted bool `json:"-"`
}

// MessageContent is the decoded content of an m.room.message event.
type MessageContent struct {
	MsgType MsgType   `json:"msgtype"`
	Body    string    `json:"body"`
	URL     string    `json:"url,omitempty"`
	Info    *FileInfo `json:"info,omitempty"`
}

// FileInfo describes an attachment.
type FileInfo struct {
	MimeType string `json:"mimetype,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Message decodes the event content as an m.room.message payload.
// Returns false for non-message events or undecodable content.
func (e *Event) Message() (MessageContent, bool) {
	if e.Type != EventTypeMessage || len(e.Content) == 0 {
		return MessageContent{}, false
	}
	var content MessageContent
	if err := json.Unmarshal(e.Content, &content); err != nil {
		return MessageContent{}, false
	}
	return content, true
}

// Normalize fills derived fields after decoding from the wire.
func (e *Event) Normalize() {
	if e.Timestamp.IsZero() && e.OriginServerTS > 0 {
		e.Timestamp = time.UnixMilli(e.OriginServerTS).UTC()
	}
	if e.OriginServerTS == 0 && !e.Timestamp.IsZero() {
		e.OriginServerTS = e.Timestamp.UnixMilli()
	}
}

// CloneEvent returns a deep copy of the event.
func CloneEvent(event Event) Event {
	cloned := event
	if len(event.Content) > 0 {
		cloned.Content = append(json.RawMessage(nil), event.Content...)
	}
	return cloned
}

// CloneEvents returns a deep copy of a slice of events.
func CloneEvents(events []Event) []Event {
	if len(events) == 0 {
		return nil
	}
	cloned := make([]Event, len(events))
	for i := range events {
		cloned[i] = CloneEvent(events[i])
	}
	return cloned
}
