// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/vigil/internal/log"
	"github.com/teradata-labs/vigil/pkg/config"
	"github.com/teradata-labs/vigil/pkg/evidence"
	"github.com/teradata-labs/vigil/pkg/intent"
	"github.com/teradata-labs/vigil/pkg/knowledge"
	"github.com/teradata-labs/vigil/pkg/mutation"
	"github.com/teradata-labs/vigil/pkg/orchestrator"
	"github.com/teradata-labs/vigil/pkg/probe"
	"github.com/teradata-labs/vigil/pkg/state"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the learning loop against a set of intents",
	Long: `Run loads the intents file, creates a probe watch per intent, and loops
observe -> evaluate -> experiment -> learn until the duration elapses or the
process receives SIGINT/SIGTERM. On shutdown it saves state and knowledge,
writes report.json and report.txt, and removes the run's watches unless
--resume is set.`,
	RunE: runOrchestration,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("intents", "", "path to the intents TOML file defining monitors and mutations")
	runCmd.Flags().Float64("duration", config.DefaultDurationHours, "total run duration in hours")
	runCmd.Flags().String("state-dir", config.DefaultStateDir, "directory for state, knowledge, logs, and reports")
	runCmd.Flags().Bool("resume", false, "resume from an existing state file instead of starting fresh")
	runCmd.Flags().Bool("dry-run", false, "show what would happen without invoking the probe")
	runCmd.Flags().Bool("verbose", false, "enable verbose logging")
	runCmd.Flags().String("e2e-server", config.DefaultE2EServerURL, "E2E mutation server URL")
	runCmd.Flags().Bool("live-validate", false, "run live monitors as validation only (no experiments)")
	runCmd.Flags().String("probe-binary", probe.DefaultBinary, "path to the kto probe binary")
	runCmd.Flags().Duration("probe-timeout", probe.DefaultTimeout, "per-invocation probe deadline")
	_ = runCmd.MarkFlagRequired("intents")

	_ = viper.BindPFlag("intents", runCmd.Flags().Lookup("intents"))
	_ = viper.BindPFlag("duration", runCmd.Flags().Lookup("duration"))
	_ = viper.BindPFlag("state_dir", runCmd.Flags().Lookup("state-dir"))
	_ = viper.BindPFlag("resume", runCmd.Flags().Lookup("resume"))
	_ = viper.BindPFlag("dry_run", runCmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("verbose", runCmd.Flags().Lookup("verbose"))
	_ = viper.BindPFlag("e2e_server", runCmd.Flags().Lookup("e2e-server"))
	_ = viper.BindPFlag("live_validate", runCmd.Flags().Lookup("live-validate"))
	_ = viper.BindPFlag("probe_binary", runCmd.Flags().Lookup("probe-binary"))
	_ = viper.BindPFlag("probe_timeout", runCmd.Flags().Lookup("probe-timeout"))

	viper.SetEnvPrefix("VIGIL")
	viper.AutomaticEnv()
}

func buildConfig() (*config.Config, error) {
	cfg := config.Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runOrchestration(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	logger, err := log.Setup(log.Options{StateDir: cfg.StateDir, Verbose: cfg.Verbose})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer func() { _ = log.Sync() }()

	logger.Info("orchestrator starting",
		zap.String("intents", cfg.IntentsPath),
		zap.Float64("duration_hours", cfg.DurationHours),
		zap.String("state_dir", cfg.StateDir),
		zap.Bool("resume", cfg.Resume),
		zap.Bool("dry_run", cfg.DryRun))

	fmt.Printf("Loading intents from %s ...\n", cfg.IntentsPath)
	defs, err := intent.Load(cfg.IntentsPath)
	if err != nil {
		return err
	}
	if errs := intent.Validate(defs); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  - %s\n", e)
		}
		return fmt.Errorf("intent validation failed with %d error(s)", len(errs))
	}

	fmt.Printf("Loaded %d intent(s)\n", len(defs))
	for _, def := range defs {
		fmt.Printf("  - %s (%s, %s)\n", def.Name, def.IntentType, def.Mode)
	}

	runMode := intent.ModeE2E
	if len(defs) > 0 {
		runMode = defs[0].Mode
	}

	if cfg.DryRun {
		printDryRun(cfg, defs, runMode)
		return nil
	}

	s, err := initState(cfg, runMode, logger)
	if err != nil {
		return err
	}
	fmt.Printf("Run ID: %s\n", s.RunID)

	kb := knowledge.New(cfg.KnowledgePath(), logger)
	if kb.Load() {
		removed := kb.ApplyDecay()
		fmt.Printf("Loaded knowledge base: %d rule(s) (%d decayed)\n", kb.Len(), removed)
	} else {
		fmt.Println("No existing knowledge base, starting fresh")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bridge, err := connectBridge(ctx, cfg, defs, logger)
	if err != nil {
		return err
	}

	prober := probe.NewClient(cfg.ProbeBinary, cfg.ProbeDBPath(), cfg.ProbeTimeout, logger)

	if !cfg.Resume || len(s.Monitors) == 0 {
		if err := createWatches(ctx, cfg, s, kb, prober, defs, logger); err != nil {
			return err
		}
	} else {
		fmt.Printf("Resuming with %d existing monitor(s)\n", len(s.Monitors))
	}

	archive, err := evidence.Open(cfg.EvidencePath(), s.RunID, logger)
	if err != nil {
		logger.Warn("evidence archive unavailable, cycles will not be archived", zap.Error(err))
		archive = nil
	} else {
		defer archive.Close()
	}

	var mutator orchestrator.Mutator
	if bridge != nil {
		mutator = bridge
	}
	runner := orchestrator.NewRunner(cfg, s, kb, prober, mutator, archive, defs, logger)

	fmt.Printf("\nStarting main loop (duration=%.2gh)\nPress Ctrl+C to stop gracefully\n\n", cfg.DurationHours)
	if err := runner.Run(ctx); err != nil {
		return err
	}

	fmt.Println("\nFinalizing run ...")
	// Finalization runs under a fresh context so a shutdown signal cannot
	// abort the state save or report.
	text, err := runner.Finalize(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(text)

	fmt.Printf("Run %s complete\n", s.RunID)
	fmt.Printf("  Total cycles:   %d\n", s.TotalCycles)
	fmt.Printf("  Monitors:       %d\n", len(s.Monitors))
	fmt.Printf("  Rules learned:  %d\n", kb.Len())
	fmt.Printf("  State:          %s\n", cfg.StatePath())
	fmt.Printf("  Knowledge:      %s\n", cfg.KnowledgePath())
	fmt.Printf("  Report:         %s\n", cfg.ReportDir())
	return nil
}

// initState resumes an existing run when asked or starts a new one. A
// missing or unreadable state file never aborts: it falls back to a fresh
// run.
func initState(cfg *config.Config, runMode intent.Mode, logger *zap.Logger) (*state.RunState, error) {
	if cfg.Resume {
		s, err := state.Load(cfg.StatePath())
		if err != nil {
			logger.Warn("failed to load prior state, starting fresh", zap.Error(err))
		}
		if s != nil {
			fmt.Printf("Resumed state from %s (run_id=%s, cycles=%d)\n", cfg.StatePath(), s.RunID, s.TotalCycles)
			logger.Info("resumed run",
				zap.String("run_id", s.RunID),
				zap.Int("total_cycles", s.TotalCycles))
			return s, nil
		}
		fmt.Println("No existing state file found, starting fresh")
	}

	s := state.NewRunState(runMode)
	logger.Info("created new run", zap.String("run_id", s.RunID))
	return s, nil
}

// connectBridge returns a mutation bridge when any intent runs in E2E mode.
// An unreachable E2E server is fatal: without mutations there is no ground
// truth to learn from.
func connectBridge(ctx context.Context, cfg *config.Config, defs []intent.Definition, logger *zap.Logger) (*mutation.Bridge, error) {
	hasE2E := false
	for _, def := range defs {
		if def.Mode == intent.ModeE2E {
			hasE2E = true
			break
		}
	}
	if !hasE2E {
		return nil, nil
	}

	bridge := mutation.NewBridge(cfg.E2EServerURL, cfg.BridgeTimeout, logger)
	if !bridge.Available(ctx) {
		return nil, fmt.Errorf("E2E test server not reachable at %s", cfg.E2EServerURL)
	}
	fmt.Printf("E2E test server available at %s\n", cfg.E2EServerURL)

	if err := bridge.Reset(ctx); err != nil {
		logger.Warn("failed to reset E2E server state", zap.Error(err))
	} else {
		logger.Info("E2E server state reset to defaults")
	}
	return bridge, nil
}

// createWatches registers one probe watch per intent. Individual failures
// skip that monitor; only a run with zero watches is fatal. The initial
// state is saved before the loop starts.
func createWatches(ctx context.Context, cfg *config.Config, s *state.RunState, kb *knowledge.Base, prober *probe.Client, defs []intent.Definition, logger *zap.Logger) error {
	fmt.Printf("\nCreating %d watch(es) ...\n", len(defs))
	for _, def := range defs {
		if rec := kb.GetRecommendation(def.IntentType, def.DomainClass); rec != nil && !rec.Empty() {
			logger.Info("knowledge recommendation available for intent",
				zap.String("intent", def.Name),
				zap.Any("recommendation", rec))
		}

		watchName := s.WatchName(def.Name)
		err := prober.CreateWatch(ctx, probe.CreateWatchOptions{
			Name:              watchName,
			URL:               def.URL,
			Engine:            def.Engine,
			Extraction:        def.Extraction,
			Selector:          def.Selector,
			IntervalSecs:      def.IntervalSecs,
			AgentInstructions: def.AgentInstructions,
			Tags:              def.Tags,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "  FAILED: %s -- %v\n", watchName, err)
			continue
		}
		fmt.Printf("  Created: %s\n", watchName)

		monitor := state.NewMonitorState(def, watchName)
		if def.Selector != "" {
			monitor.CurrentConfig["selector"] = def.Selector
		}
		if def.AgentInstructions != "" {
			monitor.CurrentConfig["agent_instructions"] = def.AgentInstructions
		}
		s.Monitors[def.Name] = monitor
	}

	if len(s.Monitors) == 0 {
		return fmt.Errorf("no watches were created, check logs for details")
	}

	if err := state.Save(s, cfg.StatePath()); err != nil {
		return fmt.Errorf("saving initial state: %w", err)
	}
	fmt.Printf("\nInitialized %d monitor(s)\n", len(s.Monitors))
	return nil
}

// printDryRun shows the watch plan without touching the probe or the server.
func printDryRun(cfg *config.Config, defs []intent.Definition, runMode intent.Mode) {
	fmt.Println("\n--- DRY RUN ---")
	fmt.Printf("Duration:     %gh\n", cfg.DurationHours)
	fmt.Printf("State dir:    %s\n", cfg.StateDir)
	fmt.Printf("E2E server:   %s\n", cfg.E2EServerURL)
	fmt.Printf("Probe binary: %s\n", probeBinaryName(cfg))
	fmt.Printf("Run mode:     %s\n", runMode)

	fmt.Printf("\nWould create %d watch(es):\n", len(defs))
	for _, def := range defs {
		fmt.Printf("  - %s: %s\n", def.Name, def.URL)
		fmt.Printf("    engine=%s, extraction=%s, interval=%ds\n", def.Engine, def.Extraction, def.IntervalSecs)
		if def.AgentInstructions != "" {
			preview := def.AgentInstructions
			if len(preview) > 80 {
				preview = preview[:80] + "..."
			}
			fmt.Printf("    agent_instructions: %s\n", preview)
		}
		if len(def.Mutations) > 0 {
			fmt.Printf("    mutations: %d step(s)\n", len(def.Mutations))
			for _, m := range def.Mutations {
				desc := m.Description
				if desc == "" {
					desc = "no description"
				}
				fmt.Printf("      cycle %d: %s=%s (%s)\n", m.Cycle, m.Field, m.Value, desc)
			}
		}
	}
	fmt.Println("\n--- END DRY RUN ---")
}

func probeBinaryName(cfg *config.Config) string {
	if cfg.ProbeBinary != "" {
		return cfg.ProbeBinary
	}
	return probe.DefaultBinary
}
