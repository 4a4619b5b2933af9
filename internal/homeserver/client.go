// Package homeserver implements the session/room store over the Matrix
// client-server HTTP API.
package homeserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/quartzchat/feedline/internal/logging"
	"github.com/quartzchat/feedline/internal/models"
)

const clientPrefix = "/_matrix/client/v3"

// Options configures a Client.
type Options struct {
	// BaseURL is the homeserver base URL (https://matrix.example.org).
	BaseURL string

	// AccessToken authenticates every request.
	AccessToken string

	// HTTPClient overrides the default HTTP client, used in tests.
	HTTPClient *http.Client

	// RequestTimeout bounds a single request when HTTPClient is not set.
	RequestTimeout time.Duration
}

// Client talks to the homeserver's client-server API.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewClient creates a homeserver client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("homeserver base URL is required")
	}
	if opts.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:     opts.BaseURL,
		accessToken: opts.AccessToken,
		httpClient:  httpClient,
		logger:      logging.Component("homeserver"),
	}, nil
}

func (c *Client) request(ctx context.Context, method, path string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().Str("method", method).Str("url", logging.RedactURL(c.baseURL+path)).Msg("homeserver request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("homeserver request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Whoami resolves the user ID owning the access token.
func (c *Client) Whoami(ctx context.Context) (string, error) {
	var data whoamiResponse
	if err := c.request(ctx, http.MethodGet, clientPrefix+"/account/whoami", nil, &data); err != nil {
		return "", err
	}
	return data.UserID, nil
}

// Room resolves the user's membership and the room's encryption state.
// Both lookups are state reads; neither touches room history.
func (c *Client) Room(ctx context.Context, roomID, userID string) (*models.Room, error) {
	if err := models.ValidateRoomID(roomID); err != nil {
		return nil, err
	}

	room := &models.Room{ID: roomID}

	// Homeservers answer the member read with 404 when the user can see
	// room state but has no member event, and with 403 M_FORBIDDEN when
	// the user was never in the room at all. Both mean not joined.
	memberPath := fmt.Sprintf("%s/rooms/%s/state/m.room.member/%s",
		clientPrefix, url.PathEscape(roomID), url.PathEscape(userID))
	var member memberContent
	if err := c.request(ctx, http.MethodGet, memberPath, nil, &member); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.NotFound() || apiErr.Forbidden()) {
			room.Membership = models.MembershipNone
			return room, nil
		}
		return nil, err
	}
	room.Membership = member.Membership

	encryptionPath := fmt.Sprintf("%s/rooms/%s/state/m.room.encryption/",
		clientPrefix, url.PathEscape(roomID))
	// 404 means the room is unencrypted; 403 means the state is not
	// visible to this user, in which case the membership result already
	// tells the caller the feed cannot be acquired.
	var encryption map[string]any
	if err := c.request(ctx, http.MethodGet, encryptionPath, nil, &encryption); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.NotFound() || apiErr.Forbidden()) {
			return room, nil
		}
		return nil, err
	}
	room.Encrypted = true

	return room, nil
}

// CreateFilter uploads a filter definition and returns the server-assigned
// identifier. Uploading an identical definition again returns a usable ID,
// so concurrent creations for one predicate converge server-side.
func (c *Client) CreateFilter(ctx context.Context, userID string, def models.FilterDefinition) (string, error) {
	if err := models.ValidateUserID(userID); err != nil {
		return "", err
	}

	path := fmt.Sprintf("%s/user/%s/filter", clientPrefix, url.PathEscape(userID))
	var data filterResponse
	if err := c.request(ctx, http.MethodPost, path, def.Wire(), &data); err != nil {
		return "", err
	}
	if data.FilterID == "" {
		return "", fmt.Errorf("homeserver returned empty filter ID")
	}
	return data.FilterID, nil
}

// Messages fetches one window of filtered room history. The from token is
// empty for the first call; a page without an End token means history is
// exhausted in that direction.
func (c *Client) Messages(ctx context.Context, roomID, from string, dir models.Direction, limit int, filterID string) (*MessagesPage, error) {
	if err := models.ValidateRoomID(roomID); err != nil {
		return nil, err
	}
	if !dir.Valid() {
		return nil, fmt.Errorf("invalid pagination direction %q", dir)
	}
	if limit <= 0 {
		limit = 20
	}

	query := url.Values{}
	query.Set("dir", string(dir))
	query.Set("limit", strconv.Itoa(limit))
	if from != "" {
		query.Set("from", from)
	}
	if filterID != "" {
		query.Set("filter", filterID)
	}

	path := fmt.Sprintf("%s/rooms/%s/messages?%s", clientPrefix, url.PathEscape(roomID), query.Encode())
	var page MessagesPage
	if err := c.request(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}

	for i := range page.Chunk {
		if page.Chunk[i].RoomID == "" {
			page.Chunk[i].RoomID = roomID
		}
		page.Chunk[i].Normalize()
	}
	return &page, nil
}

// Sync performs one long-poll sync step scoped by the given filter.
func (c *Client) Sync(ctx context.Context, since, filterID string, timeout time.Duration) (*SyncResponse, error) {
	query := url.Values{}
	query.Set("timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	query.Set("set_presence", "offline")
	if since != "" {
		query.Set("since", since)
	}
	if filterID != "" {
		query.Set("filter", filterID)
	}

	path := clientPrefix + "/sync?" + query.Encode()
	var data SyncResponse
	if err := c.request(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}

	for roomID, joined := range data.Rooms.Join {
		for i := range joined.Timeline.Events {
			if joined.Timeline.Events[i].RoomID == "" {
				joined.Timeline.Events[i].RoomID = roomID
			}
			joined.Timeline.Events[i].Normalize()
		}
	}
	return &data, nil
}
