package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quartzchat/feedline/internal/db"
	"github.com/quartzchat/feedline/internal/index"
	"github.com/quartzchat/feedline/internal/models"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the local search index",
	}

	cmd.AddCommand(
		newIndexImportCmd(opts),
		newIndexStatsCmd(opts),
		newIndexClearCmd(opts),
	)

	return cmd
}

func newIndexImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <events.json>",
		Short: "Import decrypted events into the index",
		Long:  "import reads a JSON array of decrypted room events and appends them to the local search index. Re-importing the same events is a no-op.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := readEventsFile(args[0])
			if err != nil {
				return err
			}

			idx, database, err := openIndex(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := idx.Repository().AppendBatch(cmd.Context(), events); err != nil {
				return fmt.Errorf("failed to import events: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d events\n", len(events))
			return nil
		},
	}
}

func newIndexStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <room-id>",
		Short: "Show how many events the index holds for a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := models.ValidateRoomID(args[0]); err != nil {
				return err
			}

			idx, database, err := openIndex(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer database.Close()

			count, err := idx.Repository().CountByRoom(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d indexed events\n", args[0], count)
			return nil
		},
	}
}

func newIndexClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <room-id>",
		Short: "Remove a room's events from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := models.ValidateRoomID(args[0]); err != nil {
				return err
			}

			idx, database, err := openIndex(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer database.Close()

			removed, err := idx.Repository().DeleteByRoom(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d events\n", removed)
			return nil
		},
	}
}

func openIndex(ctx context.Context, opts *rootOptions) (*index.SearchIndex, *db.DB, error) {
	cfg := opts.cfg
	database, err := db.Open(cfg.DatabasePath(), db.Options{
		MaxConnections: cfg.Database.MaxConnections,
		BusyTimeout:    time.Duration(cfg.Database.BusyTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open index database: %w", err)
	}
	if _, err := database.MigrateUp(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to migrate index database: %w", err)
	}
	return index.NewSearchIndex(database), database, nil
}

func readEventsFile(path string) ([]models.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var events []models.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for i := range events {
		events[i].Decrypted = true
		events[i].Normalize()
	}
	return events, nil
}
