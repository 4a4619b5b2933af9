package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quartzchat/feedline/internal/db"
	"github.com/quartzchat/feedline/internal/events"
	"github.com/quartzchat/feedline/internal/feed"
	"github.com/quartzchat/feedline/internal/homeserver"
	"github.com/quartzchat/feedline/internal/index"
	"github.com/quartzchat/feedline/internal/models"
)

func newFeedCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		pages  int
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "feed <room-id>",
		Short: "Show a room's file-event feed",
		Long:  "feed acquires a filtered timeline for the room and prints its file events, oldest first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(cmd.Context(), opts, args[0], limit, pages, follow)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "events per page (default from config)")
	cmd.Flags().IntVar(&pages, "pages", 0, "extra pages of history to fetch backwards")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep the feed open and print live events")

	return cmd
}

func runFeed(ctx context.Context, opts *rootOptions, roomID string, limit, pages int, follow bool) error {
	cfg := opts.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	if limit <= 0 {
		limit = cfg.Feed.PageSize
	}

	client, err := homeserver.NewClient(homeserver.Options{
		BaseURL:        cfg.Homeserver.URL,
		AccessToken:    cfg.Homeserver.AccessToken,
		RequestTimeout: cfg.Homeserver.RequestTimeout,
	})
	if err != nil {
		return err
	}

	var searchIndex *index.SearchIndex
	if cfg.Feed.UseLocalIndex {
		database, err := db.Open(cfg.DatabasePath(), db.Options{
			MaxConnections: cfg.Database.MaxConnections,
			BusyTimeout:    time.Duration(cfg.Database.BusyTimeoutMs) * time.Millisecond,
		})
		if err != nil {
			return fmt.Errorf("failed to open index database: %w", err)
		}
		defer database.Close()
		if _, err := database.MigrateUp(ctx); err != nil {
			return fmt.Errorf("failed to migrate index database: %w", err)
		}
		searchIndex = index.NewSearchIndex(database)
	}

	publisher := events.NewInMemoryPublisher()
	defer publisher.Close()

	ctrl, err := feed.NewController(feed.Options{
		Session:   client,
		Index:     searchIndex,
		Publisher: publisher,
		PageSize:  limit,
	})
	if err != nil {
		return err
	}

	ts, err := ctrl.AcquireFeed(ctx, roomID)
	if err != nil {
		return err
	}
	defer ts.Close()

	for pages > 0 {
		appended, err := ts.Paginate(ctx, models.DirectionBackwards, limit)
		if err != nil {
			return err
		}
		if !appended {
			break
		}
		pages--
	}

	for _, event := range ts.Events() {
		printEvent(os.Stdout, &event)
	}

	if !follow {
		return nil
	}

	subID := uuid.NewString()
	err = publisher.Subscribe(subID, events.Filter{RoomIDs: []string{roomID}}, func(event *models.Event) {
		printEvent(os.Stdout, event)
	})
	if err != nil {
		return err
	}
	defer publisher.Unsubscribe(subID)

	filterID, err := ctrl.FilterID(ctx)
	if err != nil {
		return err
	}

	syncer := feed.NewSyncer(client, filterID, cfg.Homeserver.SyncTimeout)
	syncer.Attach(ts)
	defer syncer.Detach(ts)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := syncer.Run(runCtx); err != nil && runCtx.Err() == nil {
		return err
	}
	return nil
}

func printEvent(w io.Writer, event *models.Event) {
	content, ok := event.Message()
	if !ok {
		return
	}
	line := fmt.Sprintf("%s  %s  %s", event.Timestamp.Format("2006-01-02 15:04:05"), event.Sender, content.Body)
	if content.URL != "" {
		line += "  " + content.URL
	}
	fmt.Fprintln(w, line)
}
