package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/story-forge/internal/config"
	"github.com/jwebster45206/story-forge/internal/logger"
	"github.com/jwebster45206/story-forge/internal/playback"
	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/services/events"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
)

// fastPace plays one simulated hour per real second.
const fastPace = 1.0 / 3600

func main() {
	var settingsFile string
	var fast bool
	root := &cobra.Command{
		Use:          "player",
		Short:        "Watch a random adventure unfold in real time",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settingsFile, fast)
		},
	}
	root.Flags().StringVar(&settingsFile, "settings", "", "settings file (overrides SETTINGS_FILE)")
	root.Flags().BoolVar(&fast, "fast", false, "play one simulated hour per second")

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, settingsFile string, fast bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.SetupWithWriter(cfg, io.Discard)
	defer func() { _ = logger.Close() }()

	if settingsFile == "" {
		settingsFile = cfg.SettingsFile
	}
	s, err := settings.Load(settingsFile)
	if err != nil {
		return err
	}
	store := storage.NewStore(s, log)

	pace := cfg.PlaybackPace
	if fast {
		pace = fastPace
	}
	player := playback.NewPlayer(store, s, log, playback.WithPace(pace))

	var pub publisher
	if redisSvc := connectRedis(ctx, cfg, log); redisSvc != nil {
		defer func() {
			if err := redisSvc.Close(); err != nil {
				logger.Error(logger.WithError(log, err), "Failed to close Redis client")
			}
		}()
		pub = events.NewBroadcaster(redisSvc.Client(), log)
		log.Info("Publishing playback events", "redis_url", cfg.RedisURL)
	}

	p := tea.NewProgram(NewPlayerUI(ctx, player, store, pub, log), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		return err
	}
	return nil
}

// connectRedis returns nil when REDIS_URL is unset or unreachable.
func connectRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) *services.RedisService {
	if cfg.RedisURL == "" {
		return nil
	}
	svc, err := services.NewRedisService(cfg.RedisURL, log)
	if err != nil {
		logger.Warning(logger.WithError(log, err), "Event publishing disabled")
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := svc.Ping(pingCtx); err != nil {
		logger.Warning(logger.WithError(log, err), "Event publishing disabled")
		_ = svc.Close()
		return nil
	}
	return svc
}
