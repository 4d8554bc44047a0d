package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veranemoloko/clip-downloader/internal/app"
	"github.com/veranemoloko/clip-downloader/internal/config"
	"github.com/veranemoloko/clip-downloader/internal/domain"
	"github.com/veranemoloko/clip-downloader/internal/service"
	"github.com/veranemoloko/clip-downloader/internal/validation"
)

var (
	platformName string
	cookie       string
	proxyURL     string
	quiet        bool

	cfg    *config.Config
	logger *slog.Logger
)

var errFailed = errors.New("download failed")

var rootCmd = &cobra.Command{
	Use:   "clipctl",
	Short: "Download Douyin and TikTok works from the command line",
	Long: `clipctl runs the same download pipeline as the HTTP service against the
local download root, printing the response envelope as JSON.

Examples:
  clipctl share "https://v.douyin.com/iRNBho6u/"
  clipctl favorite --sec-user-id MS4wLjABAAAA... --earliest 2024-01-01
  clipctl account --platform tiktok --text "https://www.tiktok.com/@user" --pages 2
  clipctl mix --detail-id 7345492945006595379

Configuration is read from the environment and .env, as for the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := domain.ParsePlatform(platformName); !ok {
			return fmt.Errorf("unknown platform %q", platformName)
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		logger = config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errFailed) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&platformName, "platform", "p", string(domain.PlatformDouyin), "platform: douyin or tiktok")
	rootCmd.PersistentFlags().StringVar(&cookie, "cookie", "", "cookie overriding settings.yaml for this run")
	rootCmd.PersistentFlags().StringVar(&proxyURL, "proxy", "", "proxy URL overriding settings.yaml for this run")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress the progress bar")

	rootCmd.AddCommand(shareCmd, favoriteCmd, accountCmd, mixCmd, detailCmd, resolveCmd)
}

func connection() domain.Connection {
	return domain.Connection{Cookie: cookie, Proxy: proxyURL}
}

// runOutcome validates req, builds the application, runs call and prints the envelope.
func runOutcome[T any](cmd *cobra.Command, req T, call func(*service.Orchestrator, context.Context, service.Target, T) domain.Outcome) error {
	if err := validation.Struct(req); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Error("failed to release resources", "error", err)
		}
	}()

	progress := newProgressTracker(quiet)
	a.Scheduler.SetProgress(progress.Update)

	p, _ := domain.ParsePlatform(platformName)
	out := call(a.Orchestrator, ctx, service.Target{Platform: p}, req)
	progress.Finish()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out.Envelope()); err != nil {
		return err
	}
	if !out.OK {
		return errFailed
	}
	return nil
}
