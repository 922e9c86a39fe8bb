package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrowd/harrow/pkg/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent ticks from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open journal: %v", err)
		}
		defer store.Close()

		ticks, err := store.ListTicks(limit)
		if err != nil {
			return fmt.Errorf("failed to read ticks: %v", err)
		}
		if len(ticks) == 0 {
			fmt.Println("No ticks recorded yet")
			return nil
		}

		last, err := store.LastTick()
		if err != nil {
			return fmt.Errorf("failed to read last tick: %v", err)
		}
		fmt.Printf("Last tick: target %s, phase %s, completed %s\n\n",
			last.TargetID, last.Phase, last.CompletedAt.Format("2006-01-02 15:04:05"))

		fmt.Printf("%-6s %-12s %-10s %-8s %-8s %-10s %-8s\n",
			"SEQ", "TARGET", "PHASE", "BATCHES", "THREADS", "SHORTFALL", "EXPIRED")
		for _, tick := range ticks {
			fmt.Printf("%-6d %-12s %-10s %-8d %-8d %-10d %-8t\n",
				tick.Seq, tick.TargetID, tick.Phase, tick.BatchCount,
				tick.Threads, tick.Shortfall, tick.Expired)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("data-dir", "./harrow-data", "Data directory for the batch journal")
	statusCmd.Flags().Int("limit", 20, "Maximum number of ticks to show")
}
