package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/story-forge/internal/config"
	"github.com/jwebster45206/story-forge/internal/logger"
	"github.com/jwebster45206/story-forge/internal/pipeline"
	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
)

type flags struct {
	model      string
	checkModel string
	checkOnly  bool
	debug      bool
	settings   string
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:          "generate",
		Short:        "Generate and review adventure content with an LLM",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.model, "model", "", "generation model, e.g. gemini/gemini-2.0-flash, groq/llama-3.3-70b, openrouter/openai:gpt-4o")
	root.PersistentFlags().StringVar(&f.checkModel, "check-model", "", "model used for checks (defaults to --model)")
	root.PersistentFlags().BoolVar(&f.checkOnly, "check-only", false, "only check existing content that has no check result")
	root.PersistentFlags().BoolVar(&f.debug, "debug", false, "stop after the first saved unit")
	root.PersistentFlags().StringVar(&f.settings, "settings", "", "settings file (overrides SETTINGS_FILE)")

	root.AddCommand(
		subcommand(f, pipeline.CommandArea, "area [count]", "Generate new areas", cobra.MaximumNArgs(1)),
		subcommand(f, pipeline.CommandLockedArea, "locked_area", "Generate areas unlocked by a great success", cobra.NoArgs),
		subcommand(f, pipeline.CommandAdventure, "adventure [result]", "Generate adventures for unlocked areas", cobra.MaximumNArgs(1)),
		subcommand(f, pipeline.CommandLockedAdventure, "locked_adventure [result]", "Generate adventures for locked areas", cobra.MaximumNArgs(1)),
		subcommand(f, pipeline.CommandLog, "log", "Generate adventure logs for unlocked areas", cobra.NoArgs),
		subcommand(f, pipeline.CommandLockedLog, "locked_log", "Generate adventure logs for locked areas", cobra.NoArgs),
		subcommand(f, pipeline.CommandLocation, "location", "Annotate logs with locations", cobra.NoArgs),
	)
	return root
}

func subcommand(f *flags, command, use, short string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) > 0 {
				arg = args[0]
			}
			return run(cmd.Context(), f, command, arg)
		},
	}
}

func run(ctx context.Context, f *flags, command, arg string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Setup(cfg)
	defer func() {
		if err := logger.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}()

	settingsFile := cfg.SettingsFile
	if f.settings != "" {
		settingsFile = f.settings
	}
	s, err := settings.Load(settingsFile)
	if err != nil {
		return err
	}

	client, backend, err := services.NewLLMService(ctx, cfg, f.model, "")
	if err != nil {
		return err
	}
	checkClient := client
	if f.checkModel != "" {
		checkClient, _, err = services.NewLLMService(ctx, cfg, f.checkModel, backend)
		if err != nil {
			return err
		}
	}

	templates, err := pipeline.LoadTemplates(s)
	if err != nil {
		return err
	}

	log.Info("Starting generation",
		"command", command,
		"backend", backend,
		"model", client.ModelName(),
		"check_model", checkClient.ModelName(),
		"check_only", f.checkOnly,
		"debug", f.debug)

	h := pipeline.NewHandler(pipeline.CommandContext{
		Client:      client,
		CheckClient: checkClient,
		ModelName:   client.ModelName(),
		DebugMode:   f.debug,
	}, s, storage.NewStore(s, log), templates, log)

	if err := h.Run(ctx, command, arg, f.checkOnly); err != nil {
		logger.Error(logger.WithError(log, err), "Command failed", "command", command)
		return err
	}
	log.Info("Command finished", "command", command)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Debug("generate exited with error", "error", err)
		stop()
		os.Exit(1)
	}
}
