package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harrowd/harrow/pkg/alloc"
	"github.com/harrowd/harrow/pkg/config"
	"github.com/harrowd/harrow/pkg/dispatch"
	"github.com/harrowd/harrow/pkg/events"
	"github.com/harrowd/harrow/pkg/metrics"
	"github.com/harrowd/harrow/pkg/planner"
	"github.com/harrowd/harrow/pkg/pool"
	"github.com/harrowd/harrow/pkg/prep"
	"github.com/harrowd/harrow/pkg/provider/sim"
	"github.com/harrowd/harrow/pkg/sched"
	"github.com/harrowd/harrow/pkg/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduling loop against a target",
	Long: `Run the full scheduling loop: prepare the target if it has drifted,
then dispatch staggered batches continuously until interrupted.

Workers and targets come from a simulated grid described by a scenario
file; without one, a small built-in demo grid is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		targetID, _ := cmd.Flags().GetString("target")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		grid, err := buildGrid(cmd, cfg)
		if err != nil {
			return err
		}

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open journal: %v", err)
		}
		defer store.Close()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()
		go printEvents(broker)

		if metricsAddr != "" {
			go serveMetrics(metricsAddr)
			fmt.Printf("✓ Metrics listening on %s/metrics\n", metricsAddr)
		}

		p := pool.NewPool(grid, grid)
		pl := planner.NewPlanner(cfg, grid)
		a := alloc.NewAllocator(cfg)
		d := dispatch.NewDispatcher(cfg, grid, grid)
		pe := prep.NewEngine(cfg, p, pl, a, d, grid, broker)
		loop := sched.NewLoop(cfg, targetID, p, pl, a, d, pe, grid, broker, store)

		ctx, cancel := context.WithCancel(context.Background())
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Println("\nShutting down...")
			cancel()
		}()

		fmt.Printf("✓ Scheduling loop started for target %s. Press Ctrl+C to stop.\n", targetID)
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

var prepCmd = &cobra.Command{
	Use:   "prep",
	Short: "Prepare a target and exit",
	Long: `Run the preparation engine once: weaken the target to minimum
security and grow it to maximum money, then exit. Saturated targets
are a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		targetID, _ := cmd.Flags().GetString("target")

		grid, err := buildGrid(cmd, cfg)
		if err != nil {
			return err
		}

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()
		go printEvents(broker)

		p := pool.NewPool(grid, grid)
		pl := planner.NewPlanner(cfg, grid)
		a := alloc.NewAllocator(cfg)
		d := dispatch.NewDispatcher(cfg, grid, grid)
		pe := prep.NewEngine(cfg, p, pl, a, d, grid, broker)

		ctx, cancel := context.WithCancel(context.Background())
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		fmt.Printf("Preparing target %s...\n", targetID)
		if err := pe.Run(ctx, targetID); err != nil {
			return fmt.Errorf("preparation failed: %v", err)
		}
		fmt.Printf("✓ Target prepared in %d dispatches\n", pe.Dispatches())
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{runCmd, prepCmd} {
		cmd.Flags().String("config", "", "Path to config file (defaults apply if empty)")
		cmd.Flags().String("target", "alpha", "Target ID to farm")
		cmd.Flags().String("scenario", "", "Path to simulated grid scenario file")
	}
	runCmd.Flags().String("data-dir", "./harrow-data", "Data directory for the batch journal")
	runCmd.Flags().String("metrics-addr", "", "Address for the Prometheus endpoint (empty disables)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}
	return cfg, nil
}

// scenarioFile mirrors the sim specs with YAML-friendly duration strings
type scenarioFile struct {
	Targets []struct {
		ID             string  `yaml:"id"`
		Money          float64 `yaml:"money"`
		MaxMoney       float64 `yaml:"maxMoney"`
		Security       float64 `yaml:"security"`
		MinSecurity    float64 `yaml:"minSecurity"`
		BaseHackTime   string  `yaml:"baseHackTime"`
		DrainPerThread float64 `yaml:"drainPerThread"`
		GrowthFactor   float64 `yaml:"growthFactor"`
	} `yaml:"targets"`
	Workers []struct {
		ID    string  `yaml:"id"`
		RAM   float64 `yaml:"ram"`
		Cores int     `yaml:"cores"`
		Admin bool    `yaml:"admin"`
	} `yaml:"workers"`
}

func buildGrid(cmd *cobra.Command, cfg *config.Config) (*sim.Grid, error) {
	path, _ := cmd.Flags().GetString("scenario")
	if path == "" {
		return demoGrid(cfg), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %v", err)
	}
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %v", err)
	}

	targets := make([]sim.TargetSpec, 0, len(file.Targets))
	for _, t := range file.Targets {
		hackTime, err := time.ParseDuration(t.BaseHackTime)
		if err != nil {
			return nil, fmt.Errorf("invalid baseHackTime for target %s: %v", t.ID, err)
		}
		targets = append(targets, sim.TargetSpec{
			ID:             t.ID,
			Money:          t.Money,
			MaxMoney:       t.MaxMoney,
			Security:       t.Security,
			MinSecurity:    t.MinSecurity,
			BaseHackTime:   hackTime,
			DrainPerThread: t.DrainPerThread,
			GrowthFactor:   t.GrowthFactor,
		})
	}
	workers := make([]sim.WorkerSpec, 0, len(file.Workers))
	for _, w := range file.Workers {
		workers = append(workers, sim.WorkerSpec{ID: w.ID, RAM: w.RAM, Cores: w.Cores, Admin: w.Admin})
	}
	return sim.NewGrid(cfg, targets, workers), nil
}

// demoGrid is a small drifted scenario for kicking the tires without a
// scenario file
func demoGrid(cfg *config.Config) *sim.Grid {
	return sim.NewGrid(cfg,
		[]sim.TargetSpec{{
			ID:             "alpha",
			Money:          200_000,
			MaxMoney:       1_000_000,
			Security:       10,
			MinSecurity:    5,
			BaseHackTime:   2 * time.Second,
			DrainPerThread: 0.01,
			GrowthFactor:   50,
		}},
		[]sim.WorkerSpec{
			{ID: "w1", RAM: 128, Cores: 1, Admin: true},
			{ID: "w2", RAM: 64, Cores: 1, Admin: true},
			{ID: "w3", RAM: 32, Cores: 1, Admin: true},
		},
	)
}

func printEvents(broker *events.Broker) {
	sub := broker.Subscribe()
	for event := range sub {
		if event.Message != "" {
			fmt.Printf("[%s] %s %s: %s\n", event.Timestamp.Format(time.RFC3339), event.Type, event.TargetID, event.Message)
		} else {
			fmt.Printf("[%s] %s %s\n", event.Timestamp.Format(time.RFC3339), event.Type, event.TargetID)
		}
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "Metrics server error: %v\n", err)
	}
}
