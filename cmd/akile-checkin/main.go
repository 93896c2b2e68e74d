package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/akile-checkin/internal/app"
	"github.com/ternarybob/akile-checkin/internal/common"
	"github.com/ternarybob/akile-checkin/internal/models"
	"github.com/ternarybob/akile-checkin/internal/services/auth"
	"github.com/ternarybob/arbor"
)

var (
	// Command-line flags
	configFiles    []string // Multiple -c flags supported, later files override earlier ones
	flagToken      string
	flagTokenFile  string
	flagSchedule   string
	flagEngine     string
	flagSaveToken  string
	flagOnce       bool
	flagDebug      bool
	flagNoHeadless bool
)

var rootCmd = &cobra.Command{
	Use:   "akile-checkin",
	Short: "Daily automatic check-in for akile.io",
	Long: `Opens a headless browser session with the stored token, reports the
account, checks in once and then repeats the check-in every day at the
scheduled time until interrupted.`,
	Args: cobra.NoArgs,
	Run:  runCheckin,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times)")
	flags.BoolVarP(&flagDebug, "debug", "d", false, "Enable debug logging")

	rootCmd.Flags().StringVarP(&flagToken, "token", "t", "", "Authorization token")
	rootCmd.Flags().StringVarP(&flagTokenFile, "token-file", "f", "", "File containing the authorization token")
	rootCmd.Flags().StringVarP(&flagSchedule, "schedule", "s", "", "Daily check-in time (HH:MM, default 08:30)")
	rootCmd.Flags().BoolVar(&flagOnce, "once", false, "Check in once and exit")
	rootCmd.Flags().BoolVar(&flagNoHeadless, "no-headless", false, "Show the browser window")
	rootCmd.Flags().StringVarP(&flagSaveToken, "save-token", "o", "", "Save the token to this file and exit")
	rootCmd.Flags().StringVar(&flagEngine, "engine", "", "Browser engine (chromedp, rod)")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves configuration: defaults -> files -> env -> flags
func loadConfig() (*common.Config, error) {
	paths := configFiles
	if len(paths) == 0 {
		paths = common.DiscoverConfigFiles()
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		return nil, err
	}

	common.ApplyFlagOverrides(config, common.FlagOverrides{
		Token:      flagToken,
		TokenFile:  flagTokenFile,
		Schedule:   flagSchedule,
		Engine:     flagEngine,
		Once:       flagOnce,
		Debug:      flagDebug,
		NoHeadless: flagNoHeadless,
	})

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func runCheckin(cmd *cobra.Command, args []string) {
	defer common.RecoverWithCrashFile()

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config and apply CLI overrides
	// 2. Initialize logger
	// 3. Print banner
	config, err := loadConfig()
	if err != nil {
		common.NewConsoleLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		return
	}

	logger := common.InitLogger(config)
	common.InstallCrashHandler(common.GetLogFilePath(logger))
	common.PrintBanner(config, logger)

	if flagSaveToken != "" {
		saveToken(logger, config.Credential.Token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(config, logger)
	if err != nil {
		if errors.Is(err, models.ErrMissingCredential) {
			logger.Error().Msg("A token is required: pass -t/--token or -f/--token-file")
			return
		}
		logger.Error().Err(err).Msg("Failed to initialize application")
		return
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Check-in run failed")
		return
	}

	if ctx.Err() != nil {
		logger.Info().Msg("Interrupt received, stopped")
	}
}

func saveToken(logger arbor.ILogger, token string) {
	if token == "" {
		logger.Error().Msg("--save-token requires a token (-t/--token)")
		return
	}
	if err := auth.NewService(logger).SaveToken(flagSaveToken, token); err != nil {
		logger.Error().Err(err).Str("path", flagSaveToken).Msg("Failed to save token")
	}
}
