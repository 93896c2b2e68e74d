package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/akile-checkin/internal/common"
	"github.com/ternarybob/akile-checkin/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent check-in attempts",
	Args:  cobra.NoArgs,
	Run:   runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of records to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) {
	config, err := loadConfig()
	if err != nil {
		common.NewConsoleLogger().Error().Err(err).Msg("Failed to load configuration")
		return
	}
	logger := common.NewConsoleLogger().WithLevelFromString(config.Logging.Level)

	manager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		logger.Error().Err(err).Str("path", config.Storage.Badger.Path).Msg("Failed to open history store")
		return
	}
	defer manager.Close()

	records, err := manager.HistoryStorage().List(context.Background(), historyLimit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list check-in history")
		return
	}
	if len(records) == 0 {
		fmt.Println("No check-in history")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tTRIGGER\tOUTCOME\tCODE\tDURATION\tMESSAGE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Trigger,
			r.Outcome,
			r.StatusCode,
			r.Duration().Round(time.Millisecond),
			r.Message,
		)
	}
	w.Flush()
}
