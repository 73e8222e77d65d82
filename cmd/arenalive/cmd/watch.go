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
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/arenalive/arenalive/internal/archive"
	"github.com/arenalive/arenalive/internal/config"
	"github.com/arenalive/arenalive/internal/decode"
	"github.com/arenalive/arenalive/internal/httpapi"
	"github.com/arenalive/arenalive/internal/httpclient"
	"github.com/arenalive/arenalive/internal/matchmeta"
	"github.com/arenalive/arenalive/internal/observability"
	"github.com/arenalive/arenalive/internal/stream"
	"github.com/arenalive/arenalive/internal/wschannel"
)

var watchCmd = &cobra.Command{
	Use:   "watch [match-id]",
	Short: "Watch a live match",
	Long: `Connect to a live match's video and state channels and run until the
stream ends or the process is interrupted.

Without a match-id argument the metadata service is queried for the
currently live match. The local status server exposes /healthz, /status,
and /metrics while watching.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("base-url", "", "websocket base URL, e.g. wss://api.example.com/ws")
	watchCmd.Flags().String("decoder", "", "decode capability (auto, annexb, none)")
	watchCmd.Flags().Bool("archive", false, "record snapshots to the local archive")

	mustBindPFlag("stream.base_url", watchCmd.Flags().Lookup("base-url"))
	mustBindPFlag("stream.decoder", watchCmd.Flags().Lookup("decoder"))
	mustBindPFlag("archive.enabled", watchCmd.Flags().Lookup("archive"))
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}

// streamStack bundles the per-session stream machinery.
type streamStack struct {
	coordinator *stream.Coordinator
	surface     *decode.Surface
	renderer    *decode.JPEGRenderer
	metrics     *observability.Metrics
}

// buildStreamStack assembles decoder, surface, renderer, and coordinator
// from configuration.
func buildStreamStack(cfg *config.Config, logger *slog.Logger, withRenderer bool) (*streamStack, error) {
	metrics := observability.NewMetrics()

	capability, err := decode.ResolveCapability(cfg.Stream.Decoder)
	if err != nil {
		return nil, err
	}

	surface, err := decode.NewSurface(cfg.Stream.SurfaceWidth, cfg.Stream.SurfaceHeight)
	if err != nil {
		return nil, err
	}

	var dec decode.Decoder
	if capability == decode.CapabilityAnnexB {
		dec = decode.NewAnnexBDecoder(observability.WithComponent(logger, "decode"))
	}

	var renderer *decode.JPEGRenderer
	if withRenderer {
		renderer = decode.NewJPEGRenderer(surface, func() {
			metrics.FramesDropped.Inc()
		})
	}

	coord := stream.NewCoordinator(stream.CoordinatorOptions{
		BaseURL:    cfg.Stream.BaseURL,
		Capability: capability,
		Logger:     logger,
		Metrics:    metrics,
		Decoder:    dec,
		Surface:    surface,
		Renderer:   renderer,
		Reconnect: wschannel.Config{
			MaxRetries: cfg.Stream.MaxRetries,
			BaseDelay:  cfg.Stream.BaseDelay,
			MaxDelay:   cfg.Stream.MaxDelay,
		},
	})

	return &streamStack{
		coordinator: coord,
		surface:     surface,
		renderer:    renderer,
		metrics:     metrics,
	}, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	matchID := ""
	if len(args) == 1 {
		matchID = args[0]
	} else {
		if cfg.Services.MetadataURL == "" {
			return fmt.Errorf("no match-id given and services.metadata_url is not set")
		}
		meta := matchmeta.NewClient(newServiceHTTPClient(cfg, logger), cfg.Services.MetadataURL,
			observability.WithComponent(logger, "matchmeta"))
		m, err := meta.LiveMatch(ctx)
		if err != nil {
			return fmt.Errorf("looking up live match: %w", err)
		}
		matchID = m.ID
		logger.Info("live match found",
			slog.String("match_id", m.ID),
			slog.String("game", m.GameID),
			slog.Int("format", m.Format))
	}

	stack, err := buildStreamStack(cfg, logger, false)
	if err != nil {
		return err
	}
	defer stack.coordinator.Close()

	var store *archive.Archive
	if cfg.Archive.Enabled {
		store, err = archive.Open(cfg.Archive, observability.WithComponent(logger, "archive"))
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer store.Close()
	}

	srv := httpapi.NewServer(cfg.Server, httpapi.NewRouter(stack.coordinator, stack.metrics), logger)
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Run(ctx) }()

	stack.coordinator.SetMatch(matchID, true)
	logger.Info("watching match",
		slog.String("match_id", matchID),
		slog.String("session_id", stack.coordinator.SessionID()))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastArchived float64
	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted")
			return <-srvErr
		case err := <-srvErr:
			return err
		case <-ticker.C:
			if snap := stack.coordinator.Snapshot(); snap != nil && store != nil && snap.Timestamp != lastArchived {
				lastArchived = snap.Timestamp
				if err := store.SaveSnapshot(stack.coordinator.SessionID(), snap); err != nil {
					logger.Warn("archive write failed", slog.String("error", err.Error()))
				}
			}
			if stack.coordinator.Ended() {
				logger.Info("match over")
				stop()
				return <-srvErr
			}
		}
	}
}

// newServiceHTTPClient builds the shared REST client from config.
func newServiceHTTPClient(cfg *config.Config, logger *slog.Logger) *httpclient.Client {
	return httpclient.New(httpclient.Config{
		Timeout:       cfg.Services.HTTPTimeout,
		RetryAttempts: cfg.Services.RetryAttempts,
		RetryDelay:    cfg.Services.RetryDelay,
		Logger:        observability.WithComponent(logger, "httpclient"),
	})
}
