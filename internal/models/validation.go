package models

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	if v.Field == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidateRoomID checks the shape of a room identifier.
func ValidateRoomID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return ValidationError{Field: "room_id", Message: "room ID is required"}
	}
	if !strings.HasPrefix(trimmed, "!") {
		return ValidationError{Field: "room_id", Message: "room ID must start with '!'"}
	}
	if !strings.Contains(trimmed[1:], ":") {
		return ValidationError{Field: "room_id", Message: "room ID must contain a server name"}
	}
	return nil
}

// ValidateUserID checks the shape of a user identifier.
func ValidateUserID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return ValidationError{Field: "user_id", Message: "user ID is required"}
	}
	if !strings.HasPrefix(trimmed, "@") {
		return ValidationError{Field: "user_id", Message: "user ID must start with '@'"}
	}
	if !strings.Contains(trimmed[1:], ":") {
		return ValidationError{Field: "user_id", Message: "user ID must contain a server name"}
	}
	return nil
}

// ValidateEventID checks the shape of an event identifier.
func ValidateEventID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return ValidationError{Field: "event_id", Message: "event ID is required"}
	}
	if !strings.HasPrefix(trimmed, "$") {
		return ValidationError{Field: "event_id", Message: "event ID must start with '$'"}
	}
	return nil
}
