package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"spousedetails/internal/auth"
	"spousedetails/internal/config"
	"spousedetails/internal/ics"
	appLog "spousedetails/internal/log"
	"spousedetails/internal/reminder"
	"spousedetails/internal/store"
	"spousedetails/internal/web"
)

const version = "0.1.0"

// rootOptions holds persistent flag values shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
}

func main() {
	defer appLog.Sync()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "spousedetails",
		Short:        "Partner profile, custom field and reminder service",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "./config.yaml", "Path to config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newICSCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

// loadConfig reads the config and applies the log level.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	conf, err := config.Load(opts.configPath)
	if conf == nil {
		return nil, fmt.Errorf("load config %s: %w", opts.configPath, err)
	}
	if err != nil {
		appLog.Error("failed to write default config; continuing with defaults", err, "config_path", opts.configPath)
	}

	level := appLog.ParseLevel(conf.LogLevel)
	if opts.verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)
	return conf, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder scanner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if listen != "" {
				conf.Listen = listen
			}
			return runServe(cmd.Context(), conf)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func runServe(parent context.Context, conf *config.Config) error {
	if err := conf.Validate(); err != nil {
		return err
	}

	appLog.Info("spousedetails starting",
		"version", version,
		"listen", conf.Listen,
		"database", conf.DatabasePath,
		"timezone", conf.Timezone,
		"auth_mode", conf.Auth.Mode,
		"scan", conf.Reminders.Scan,
	)

	verifier, err := buildVerifier(conf)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(conf.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database dir: %w", err)
		}
	}
	st, err := store.Open(conf.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			appLog.Error("failed to close store", err)
		}
	}()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	scanner := reminder.NewScanner(st, reminder.LogNotifier{}, conf.Location())
	if err := scanner.Start(ctx, conf.Reminders.Scan); err != nil {
		return err
	}

	srv := web.NewServer(conf, st, verifier, newEncoder(conf))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		scanner.Stop()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	appLog.Info("spousedetails exiting")
	return nil
}

func buildVerifier(conf *config.Config) (auth.Verifier, error) {
	switch conf.Auth.Mode {
	case config.AuthModeRemote:
		return auth.NewRemoteVerifier(conf.Auth.ServiceURL, conf.Auth.ServiceKey), nil
	default:
		return auth.NewJWTVerifier(conf.Auth.JWTSecret, conf.Auth.Issuer, conf.Auth.Audience)
	}
}

func newEncoder(conf *config.Config) *ics.Encoder {
	return ics.NewEncoder(conf.Calendar.ProductID, conf.Calendar.UIDDomain, conf.Calendar.Placeholder)
}
