package feed

import "errors"

// Feed errors. None of these are retried automatically; the caller decides
// whether to surface an empty state or reopen the view.
var (
	// ErrNotJoined means the user lacks membership in the room. Returned
	// before any history or filter request is made.
	ErrNotJoined = errors.New("room is not joined")

	// ErrFeedUnavailable means filter or timeline creation failed. The
	// wrapped cause carries the underlying failure.
	ErrFeedUnavailable = errors.New("feed unavailable")

	// ErrAlreadyPaginating means a pagination call overlapped an in-flight
	// one on the same feed. No state is changed.
	ErrAlreadyPaginating = errors.New("pagination already in progress")

	// ErrFeedClosed means the feed was torn down; late completions are
	// discarded without mutating feed state.
	ErrFeedClosed = errors.New("feed is closed")
)
