package models

import "testing"

func TestValidateRoomID(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", "!abc:example.org", false},
		{"empty", "", true},
		{"missing sigil", "abc:example.org", true},
		{"missing server", "!abc", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRoomID(tc.id)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %q", tc.id)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for %q: %v", tc.id, err)
			}
		})
	}
}

func TestValidateUserID(t *testing.T) {
	if err := ValidateUserID("@alice:example.org"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateUserID("alice"); err == nil {
		t.Fatal("expected error for missing sigil")
	}
}

func TestValidateEventID(t *testing.T) {
	if err := ValidateEventID("$abc123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateEventID(""); err == nil {
		t.Fatal("expected error for empty ID")
	}
}
