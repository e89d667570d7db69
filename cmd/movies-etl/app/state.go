package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/movies-etl/internal/checkpoint"
	"github.com/stacklok/movies-etl/internal/config"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and maintain the checkpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the checkpoint",
		RunE:  runStateShow,
	}
	show.Flags().String("format", "yaml", "Output format (yaml or json)")
	show.Flags().String("stream", "", "Print only the watermark of this stream")

	set := &cobra.Command{
		Use:   "set",
		Short: "Advance the watermark of one stream",
		Long: `Advance the watermark of one stream. Watermarks never move backwards, so
an older value than the committed one is ignored.`,
		RunE: runStateSet,
	}
	set.Flags().String("stream", "", "Stream to advance (person, genre or filmwork)")
	set.Flags().String("watermark", "", "New watermark, RFC 3339")
	for _, name := range []string{"stream", "watermark"} {
		if err := set.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	reset := &cobra.Command{
		Use:   "reset-run",
		Short: "Mark the run as idle",
		Long: `Mark the run as idle after a stopped run. The run guard is taken first, so
this fails while another process runs the loop.`,
		RunE: runStateResetRun,
	}

	cmd.AddCommand(show, set, reset)
	return cmd
}

func openStore(cmd *cobra.Command) (checkpoint.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openCheckpoint(cmd.Context(), cfg)
}

func openCheckpoint(ctx context.Context, cfg *config.Config) (checkpoint.Store, error) {
	store, err := checkpoint.NewStore(ctx, checkpoint.Backend(cfg.Checkpoint.Backend), cfg.Checkpoint.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	return store, nil
}

func parseStream(name string) (checkpoint.Stream, error) {
	stream := checkpoint.Stream(name)
	if !slices.Contains(checkpoint.Streams, stream) {
		return "", fmt.Errorf("unknown stream %q, use one of %v", name, checkpoint.Streams)
	}
	return stream, nil
}

func runStateShow(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	streamName, err := cmd.Flags().GetString("stream")
	if err != nil {
		return fmt.Errorf("failed to get stream flag: %w", err)
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if streamName != "" {
		stream, err := parseStream(streamName)
		if err != nil {
			return err
		}
		mark, err := store.Get(cmd.Context(), stream)
		if err != nil {
			return err
		}
		out := map[string]any{"stream": stream, "watermark": nil}
		if !mark.IsZero() {
			out["watermark"] = mark.UTC()
		}
		return printFormatted(cmd, out, format)
	}

	cp, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}
	return printFormatted(cmd, cp, format)
}

func runStateSet(cmd *cobra.Command, _ []string) error {
	streamName, err := cmd.Flags().GetString("stream")
	if err != nil {
		return fmt.Errorf("failed to get stream flag: %w", err)
	}
	stream, err := parseStream(streamName)
	if err != nil {
		return err
	}
	raw, err := cmd.Flags().GetString("watermark")
	if err != nil {
		return fmt.Errorf("failed to get watermark flag: %w", err)
	}
	mark, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fmt.Errorf("invalid watermark %q: %w", raw, err)
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Set(cmd.Context(), stream, mark); err != nil {
		return err
	}
	current, err := store.Get(cmd.Context(), stream)
	if err != nil {
		return err
	}
	slog.Info("Watermark updated", "stream", stream, "requested", mark.UTC(), "watermark", current)
	return nil
}

func runStateResetRun(cmd *cobra.Command, _ []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.AcquireRun(ctx, owner()); err != nil {
		return fmt.Errorf("cannot reset the run state: %w", err)
	}
	if err := store.ReleaseRun(ctx, checkpoint.RunStateIdle); err != nil {
		return err
	}
	slog.Info("Run state reset", "state", checkpoint.RunStateIdle)
	return nil
}
