// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/driftsync/driftsync/internal/api"
	"github.com/driftsync/driftsync/internal/auth"
	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/database"
	"github.com/driftsync/driftsync/internal/license"
	"github.com/driftsync/driftsync/internal/metrics"
	"github.com/driftsync/driftsync/internal/scheduler"
	syncpkg "github.com/driftsync/driftsync/internal/sync"
)

var Version = "dev"

const licenseCheckJob = "license-check"

func main() {
	var rootCmd = &cobra.Command{
		Use:   "driftsync",
		Short: "Self-hosted directory mirroring with licensed premium features",
		Long: `driftsync - keep a target directory in sync with a source directory.
Premium mirroring is unlocked with a license key from the driftsync portal.`,
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.Version = Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())
	rootCmd.AddCommand(RunSetPasswordCommand())
	rootCmd.AddCommand(RunLicenseCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		dataDir   string
		logPath   string
		pprofFlag bool
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/driftsync/). For backward compatibility, can also be a direct path to a .toml file")
	command.Flags().StringVar(&dataDir, "data-dir", "", "data directory for database and other files (default is next to config file)")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stderr)")
	command.Flags().BoolVar(&pprofFlag, "pprof", false, "enable pprof server on :6060")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(Version, configDir, dataDir, logPath, pprofFlag)
		app.runServer()
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of driftsync",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/driftsync/config.toml
- Windows: %APPDATA%\driftsync\config.toml

You can specify either a directory path or a direct file path:
- Directory: driftsync generate-config --config-dir /path/to/config/
- File: driftsync generate-config --config-dir /path/to/myconfig.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if configDir != "" {
				if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
					configPath = configDir
				} else if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			} else {
				configPath = filepath.Join(config.GetDefaultConfigDir(), "config.toml")
			}

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

func readPassword(prompt string) (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print(prompt)
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(password), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	var password string
	if _, err := fmt.Scanln(&password); err != nil {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	return password, nil
}

func RunSetPasswordCommand() *cobra.Command {
	var configDir, dataDir, password string

	command := &cobra.Command{
		Use:   "set-password",
		Short: "Set or change the admin password",
		Long: `Set or change the admin password without starting the server.

driftsync has a single admin account. The web UI stays locked behind a
precondition error until this command has been run once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(configDir)
			if err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			if dataDir != "" {
				cfg.SetDataDir(dataDir)
			}

			db, err := database.New(cfg.GetDatabasePath())
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()

			authService := auth.NewService(database.NewStateStore(db), cfg.Config.SessionSecret)

			if password == "" {
				password, err = readPassword("Enter new password: ")
				if err != nil {
					return err
				}
			}

			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters long")
			}

			if err := authService.SetPassword(context.Background(), password); err != nil {
				return fmt.Errorf("failed to set password: %w", err)
			}

			cmd.Println("Admin password set successfully")
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")
	command.Flags().StringVar(&dataDir, "data-dir", "",
		"data directory path (defaults to next to config file)")
	command.Flags().StringVar(&password, "password", "",
		"new password (will prompt if not provided)")

	return command
}

type Application struct {
	version   string
	configDir string
	dataDir   string
	logPath   string
	pprofFlag bool
}

func NewApplication(version, configDir, dataDir, logPath string, pprofFlag bool) *Application {
	return &Application{
		version:   version,
		configDir: configDir,
		dataDir:   dataDir,
		logPath:   logPath,
		pprofFlag: pprofFlag,
	}
}

func (app *Application) runServer() {
	log.Info().Str("version", app.version).Msg("Starting driftsync")

	cfg, err := config.New(app.configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	// Override with CLI flags if provided
	if app.dataDir != "" {
		os.Setenv("DRIFTSYNC__DATA_DIR", app.dataDir)
		cfg.SetDataDir(app.dataDir)
	}
	if app.logPath != "" {
		os.Setenv("DRIFTSYNC__LOG_PATH", app.logPath)
		cfg.Config.LogPath = app.logPath
	}

	if app.pprofFlag {
		cfg.Config.PprofEnabled = true
	}

	cfg.ApplyLogConfig()
	cfg.WatchConfig()

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	states := database.NewStateStore(db)

	authService := auth.NewService(states, cfg.Config.SessionSecret)
	apiKeyStore := auth.NewAPIKeyStore(db.Conn())

	licenseService, err := newLicenseService(cfg, states)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize license service")
	}

	sched := scheduler.New()
	defer sched.Stop()

	syncManager := syncpkg.NewManager(
		cfg.Config.Sync.SourceDir,
		cfg.Config.Sync.TargetDir,
		time.Duration(cfg.Config.Sync.IntervalMinutes)*time.Minute,
		func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return licenseService.Entitled(ctx)
		},
		sched,
	)
	licenseService.SetSink(syncManager)

	// Daily reconciliation against the portal, plus one pass shortly
	// after startup so a stale verdict does not linger.
	checkInterval := time.Duration(cfg.Config.License.CheckIntervalHours) * time.Hour
	sched.Schedule(licenseCheckJob, checkInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		licenseService.Reconcile(ctx)
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		licenseService.Reconcile(ctx)
	}()

	var metricsManager *metrics.Manager
	if cfg.Config.MetricsEnabled {
		metricsManager = metrics.NewManager(licenseService)
		log.Info().Msg("Prometheus metrics enabled at /metrics endpoint")
	}

	deps := &api.Dependencies{
		Config:         cfg,
		AuthService:    authService,
		APIKeyStore:    apiKeyStore,
		LicenseService: licenseService,
		SyncManager:    syncManager,
		MetricsManager: metricsManager,
		Version:        app.version,
	}

	router := api.NewRouter(deps)

	// If baseURL is configured, mount the entire app under that path
	var handler http.Handler
	if cfg.Config.BaseURL != "" && cfg.Config.BaseURL != "/" {
		parentRouter := chi.NewRouter()

		mountPath := strings.TrimSuffix(cfg.Config.BaseURL, "/")
		parentRouter.Mount(mountPath, router)

		parentRouter.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, cfg.Config.BaseURL, http.StatusMovedPermanently)
		})

		handler = parentRouter
	} else {
		handler = router
	}

	readTimeout := time.Duration(cfg.Config.HTTPTimeouts.ReadTimeout) * time.Second
	writeTimeout := time.Duration(cfg.Config.HTTPTimeouts.WriteTimeout) * time.Second
	idleTimeout := time.Duration(cfg.Config.HTTPTimeouts.IdleTimeout) * time.Second

	if readTimeout == 0 {
		readTimeout = 60 * time.Second
	}
	if writeTimeout == 0 {
		writeTimeout = 120 * time.Second
	}
	if idleTimeout == 0 {
		idleTimeout = 180 * time.Second
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Config.Host, cfg.Config.Port),
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	go func() {
		log.Info().
			Str("address", srv.Addr).
			Dur("readTimeout", readTimeout).
			Dur("writeTimeout", writeTimeout).
			Dur("idleTimeout", idleTimeout).
			Msg("Starting HTTP server")
		if cfg.Config.BaseURL != "" {
			log.Info().Str("baseURL", cfg.Config.BaseURL).Msg("Serving under base URL")
		}

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	if cfg.Config.PprofEnabled {
		go func() {
			log.Info().Msg("Starting pprof server on :6060")
			if err := http.ListenAndServe(":6060", nil); err != nil {
				log.Error().Err(err).Msg("Profiling server failed")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// newLicenseService builds the portal client and reconciler from the
// config. The reported domain defaults to the baseUrl host.
func newLicenseService(cfg *config.AppConfig, states *database.StateStore) (*license.Service, error) {
	domain := cfg.Config.License.Domain
	if domain == "" {
		domain = license.ResolveDomain(cfg.Config.BaseURL)
	}

	client := license.NewClient(cfg.Config.License.PortalURL, cfg.Config.License.ProductSlug, domain)
	store := license.NewStore(states)

	return license.NewService(client, store, license.SystemClock())
}
