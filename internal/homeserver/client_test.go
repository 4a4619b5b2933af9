package homeserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quartzchat/feedline/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := NewClient(Options{
		BaseURL:     ts.URL,
		AccessToken: "syt_test",
		HTTPClient:  ts.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, ts
}

func TestWhoami(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_matrix/client/v3/account/whoami" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer syt_test" {
			t.Fatalf("unexpected auth header: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user_id":"@alice:example.org"}`))
	})

	userID, err := client.Whoami(context.Background())
	if err != nil {
		t.Fatalf("Whoami: %v", err)
	}
	if userID != "@alice:example.org" {
		t.Fatalf("unexpected user ID: %s", userID)
	}
}

func TestRoomJoinedAndEncrypted(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/_matrix/client/v3/rooms/!abc:example.org/state/m.room.member/@alice:example.org":
			_, _ = w.Write([]byte(`{"membership":"join"}`))
		case r.URL.Path == "/_matrix/client/v3/rooms/!abc:example.org/state/m.room.encryption/":
			_, _ = w.Write([]byte(`{"algorithm":"m.megolm.v1.aes-sha2"}`))
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	})

	room, err := client.Room(context.Background(), "!abc:example.org", "@alice:example.org")
	if err != nil {
		t.Fatalf("Room: %v", err)
	}
	if !room.Joined() {
		t.Fatal("expected joined membership")
	}
	if !room.Encrypted {
		t.Fatal("expected encrypted room")
	}
}

func TestRoomNotJoined(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errcode":"M_NOT_FOUND","error":"Event not found."}`))
	})

	room, err := client.Room(context.Background(), "!xyz:example.org", "@alice:example.org")
	if err != nil {
		t.Fatalf("Room: %v", err)
	}
	if room.Joined() {
		t.Fatal("expected non-joined membership")
	}
}

func TestRoomNeverJoinedForbidden(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errcode":"M_FORBIDDEN","error":"You aren't a member of the room and weren't previously a member of the room."}`))
	})

	room, err := client.Room(context.Background(), "!xyz:example.org", "@alice:example.org")
	if err != nil {
		t.Fatalf("Room: %v", err)
	}
	if room.Membership != models.MembershipNone {
		t.Fatalf("unexpected membership: %s", room.Membership)
	}
	if room.Joined() {
		t.Fatal("expected non-joined membership")
	}
}

func TestCreateFilter(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/_matrix/client/v3/user/@alice:example.org/filter" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"filter_id":"42"}`))
	})

	filterID, err := client.CreateFilter(context.Background(), "@alice:example.org", models.FileEventsFilter(20))
	if err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}
	if filterID != "42" {
		t.Fatalf("unexpected filter ID: %s", filterID)
	}
}

func TestMessagesParsesChunkAndTokens(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("dir") != "b" {
			t.Fatalf("unexpected dir: %s", r.URL.Query().Get("dir"))
		}
		if r.URL.Query().Get("limit") != "2" {
			t.Fatalf("unexpected limit: %s", r.URL.Query().Get("limit"))
		}
		if r.URL.Query().Get("filter") != "42" {
			t.Fatalf("unexpected filter: %s", r.URL.Query().Get("filter"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"start": "t10",
			"end": "t8",
			"chunk": [
				{"event_id":"$2","sender":"@a:example.org","type":"m.room.message","origin_server_ts":2000,"content":{"msgtype":"m.file","body":"b.pdf","url":"mxc://x/b"}},
				{"event_id":"$1","sender":"@a:example.org","type":"m.room.message","origin_server_ts":1000,"content":{"msgtype":"m.file","body":"a.pdf","url":"mxc://x/a"}}
			]
		}`))
	})

	page, err := client.Messages(context.Background(), "!abc:example.org", "", models.DirectionBackwards, 2, "42")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if page.End != "t8" {
		t.Fatalf("unexpected end token: %s", page.End)
	}
	if len(page.Chunk) != 2 {
		t.Fatalf("expected 2 events, got %d", len(page.Chunk))
	}
	if page.Chunk[0].RoomID != "!abc:example.org" {
		t.Fatal("room ID should be filled in")
	}
	if page.Chunk[0].Timestamp.IsZero() {
		t.Fatal("timestamp should be derived from origin_server_ts")
	}
}

func TestAPIErrorSurface(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errcode":"M_FORBIDDEN","error":"You aren't a member of the room."}`))
	})

	_, err := client.Messages(context.Background(), "!abc:example.org", "", models.DirectionBackwards, 10, "")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != "M_FORBIDDEN" {
		t.Fatalf("unexpected errcode: %s", apiErr.Code)
	}
}

func TestSyncFillsRoomIDs(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"next_batch": "s1",
			"rooms": {"join": {"!abc:example.org": {"timeline": {
				"events": [{"event_id":"$9","sender":"@a:example.org","type":"m.room.message","origin_server_ts":9000,"content":{"msgtype":"m.file","body":"c.pdf","url":"mxc://x/c"}}],
				"prev_batch": "t9"
			}}}}
		}`))
	})

	resp, err := client.Sync(context.Background(), "", "42", 0)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if resp.NextBatch != "s1" {
		t.Fatalf("unexpected next_batch: %s", resp.NextBatch)
	}
	joined := resp.Rooms.Join["!abc:example.org"]
	if len(joined.Timeline.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(joined.Timeline.Events))
	}
	if joined.Timeline.Events[0].RoomID != "!abc:example.org" {
		t.Fatal("room ID should be filled in from the sync bucket")
	}
}
