package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arenalive/arenalive/internal/httpapi"
)

var replayCmd = &cobra.Command{
	Use:   "replay <match-id>",
	Short: "Play back a finished match",
	Long: `Connect to a finished match's replay channel.

The replay stream interleaves JPEG frames with the same JSON state
messages the live data channel carries, and finishes with the terminal
"ended" status. Frames are rendered latest-wins at a fixed tick.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().Duration("frame-interval", 33*time.Millisecond, "render tick interval")
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Stream.BaseURL == "" {
		return fmt.Errorf("stream.base_url is required (flag --base-url or ARENALIVE_STREAM_BASE_URL)")
	}

	logger := slog.Default()
	matchID := args[0]

	stack, err := buildStreamStack(cfg, logger, true)
	if err != nil {
		return err
	}
	defer stack.coordinator.Close()

	srv := httpapi.NewServer(cfg.Server, httpapi.NewRouter(stack.coordinator, stack.metrics), logger)
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Run(ctx) }()

	stack.coordinator.SetReplay(matchID, true)
	logger.Info("replaying match",
		slog.String("match_id", matchID),
		slog.String("session_id", stack.coordinator.SessionID()))

	interval, _ := cmd.Flags().GetDuration("frame-interval")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted")
			return <-srvErr
		case err := <-srvErr:
			return err
		case <-ticker.C:
			if _, err := stack.renderer.RenderPending(); err != nil {
				logger.Debug("frame render failed", slog.String("error", err.Error()))
			}
			if stack.coordinator.Ended() {
				logger.Info("replay finished",
					slog.Uint64("frames", stack.surface.FrameCount()))
				stop()
				return <-srvErr
			}
		}
	}
}
