package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/retro-shifts/cmd/cli/commands"
	"github.com/jakechorley/retro-shifts/internal/config"
	"github.com/jakechorley/retro-shifts/pkg/clients/consoleclient"
	"github.com/jakechorley/retro-shifts/pkg/clients/gmailclient"
	"github.com/jakechorley/retro-shifts/pkg/core/services"
	"github.com/jakechorley/retro-shifts/pkg/db"
	"github.com/jakechorley/retro-shifts/pkg/postgres"
	"github.com/jakechorley/retro-shifts/pkg/utils"
	"github.com/jakechorley/retro-shifts/pkg/utils/clock"
	"github.com/jakechorley/retro-shifts/pkg/utils/logging"
)

const consoleHistoryFile = "console_posts.json"

var (
	env     string
	verbose bool
)

func main() {
	app := &commands.AppContext{Ctx: context.Background()}

	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Retro Shifts CLI - Manage bar shifts and signups",
		Long:  `A CLI tool for scheduling bar shifts, taking role signups, and sending reminders and backup alerts.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initApp(app); err != nil {
				return err
			}
			// run starts the service itself
			if cmd.Name() == "run" {
				return nil
			}
			return app.Service.Start(app.Ctx)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			shutdown(app)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs on the console")
	rootCmd.PersistentFlags().StringVar(&app.User, "as", "", "User ID to act as for signups")
	rootCmd.PersistentFlags().StringSliceVar(&app.UserRoles, "member-role", nil, "Member roles of the acting user (for event management permission)")

	rootCmd.AddCommand(commands.RunCmd(app))
	rootCmd.AddCommand(commands.CreateEventCmd(app))
	rootCmd.AddCommand(commands.CancelEventCmd(app))
	rootCmd.AddCommand(commands.EditEventTimeCmd(app))
	rootCmd.AddCommand(commands.ListEventsCmd(app))
	rootCmd.AddCommand(commands.NextShiftCmd(app))
	rootCmd.AddCommand(commands.AreWeOpenCmd(app))
	rootCmd.AddCommand(commands.RepostCmd(app))
	rootCmd.AddCommand(commands.RefreshCmd(app))
	rootCmd.AddCommand(commands.SignupCmd(app))
	rootCmd.AddCommand(commands.UnsignupCmd(app))
	rootCmd.AddCommand(commands.MySignupsCmd(app))
	rootCmd.AddCommand(commands.GenerateScheduleCmd(app))
	rootCmd.AddCommand(commands.PostScheduledCmd(app))
	rootCmd.AddCommand(commands.BlackoutCmd(app))
	rootCmd.AddCommand(commands.RoleCmd(app))
	rootCmd.AddCommand(commands.ShiftLogCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, storage, messenger and the shift service
func initApp(app *commands.AppContext) error {
	var err error

	app.Logger, err = logging.InitLogger(logging.Options{Env: env, Verbose: verbose})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env))

	app.Logger.Info("Loading configuration")
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully",
		zap.String("timezone", app.Cfg.Timezone),
		zap.Strings("openDays", app.Cfg.OpenDays))

	app.Database, err = openDatabase(app.Ctx, app.Cfg, app.Logger)
	if err != nil {
		return err
	}

	messenger, err := openMessenger(app.Ctx, app.Cfg, app.Logger)
	if err != nil {
		return err
	}

	app.Service, err = services.NewShiftService(services.Deps{
		Config:    app.Cfg,
		Database:  app.Database,
		Messenger: messenger,
		Clock:     clock.Real(),
		Logger:    app.Logger.Named("shifts"),
	})
	if err != nil {
		return fmt.Errorf("failed to create shift service: %w", err)
	}

	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (db.Database, error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		logger.Info("Connecting to postgres")
		pg, err := postgres.NewDB(ctx, cfg.Storage.PostgresURL, logger.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := pg.RunMigrations(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return pg, nil
	default:
		logger.Info("Using file storage", zap.String("dir", cfg.Storage.DataDir))
		fileDB, err := db.NewDB(cfg.Storage.DataDir, logger.Named("db"))
		if err != nil {
			return nil, fmt.Errorf("failed to open data directory: %w", err)
		}
		return fileDB, nil
	}
}

func openMessenger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.Messenger, error) {
	if cfg.Messenger.Kind != config.MessengerGmail {
		historyPath := filepath.Join(cfg.Storage.DataDir, consoleHistoryFile)
		return consoleclient.New(os.Stdout, cfg.Location(), historyPath, logger.Named("console")), nil
	}

	logger.Info("Loading OAuth client configuration")
	oauthCfg, err := config.LoadOAuthClient(cfg, env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, err
	}
	store, err := utils.NewTokenStore(cfg.Messenger.TokenFile, env)
	if err != nil {
		return nil, err
	}
	token, err := utils.GetTokenWithFlow(ctx, oauthConfig, store, logger.Named("oauth"))
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth token: %w", err)
	}

	logger.Info("Initializing gmail client")
	client, err := gmailclient.NewClient(ctx, oauthCfg, token, gmailclient.OptionsFromConfig(cfg), logger.Named("gmail"))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	return client, nil
}

func shutdown(app *commands.AppContext) {
	if app.Service != nil {
		app.Service.Stop()
	}
	if app.Database != nil {
		if err := app.Database.Close(); err != nil && app.Logger != nil {
			app.Logger.Warn("Failed to close database", zap.Error(err))
		}
	}
	if app.Logger != nil {
		app.Logger.Sync()
	}
}
