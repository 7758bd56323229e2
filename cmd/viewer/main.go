package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/story-forge/internal/config"
	"github.com/jwebster45206/story-forge/internal/logger"
	"github.com/jwebster45206/story-forge/internal/progress"
	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
)

func main() {
	var area, adv, settingsFile string
	root := &cobra.Command{
		Use:          "viewer",
		Short:        "Browse, review and delete generated content",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settingsFile, area, adv)
		},
	}
	root.Flags().StringVar(&area, "area", "", "open this area directly")
	root.Flags().StringVar(&adv, "adv", "", "open this adventure of --area directly")
	root.Flags().StringVar(&settingsFile, "settings", "", "settings file (overrides SETTINGS_FILE)")

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, settingsFile, area, adv string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// The terminal belongs to the UI, so records only go to the log file.
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

	var status progress.Reader
	if cache := connectCache(ctx, cfg, log); cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Error(logger.WithError(log, err), "Failed to close Redis client")
			}
		}()
		status = progress.NewCachedTracker(progress.NewTracker(store, s), cache, log)
	}

	ui := NewViewerUI(ctx, newBrowser(store, s, status, log), area, adv, clipboard.WriteAll)
	p := tea.NewProgram(ui, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		return err
	}
	return nil
}

// connectCache returns nil when REDIS_URL is unset or unreachable.
func connectCache(ctx context.Context, cfg *config.Config, log *slog.Logger) *services.RedisService {
	if cfg.RedisURL == "" {
		return nil
	}
	cache, err := services.NewRedisService(cfg.RedisURL, log)
	if err != nil {
		logger.Warning(logger.WithError(log, err), "Progress cache disabled")
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		logger.Warning(logger.WithError(log, err), "Progress cache disabled")
		_ = cache.Close()
		return nil
	}
	return cache
}
