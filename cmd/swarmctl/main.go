package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskswarm/swarmctl/pkg/config"
	"github.com/taskswarm/swarmctl/pkg/log"
	"github.com/taskswarm/swarmctl/pkg/store"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Exit codes for process termination.
const (
	exitOK             = 0
	exitUsage          = 1
	exitUnrecoverable  = 2
	exitRunInterrupted = 3
	exitResumeRequired = 4
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "swarmctl",
	Short: "swarmctl - parallel task swarm orchestrator",
	Long: `swarmctl decomposes a development plan into file-scoped tasks and
executes them in parallel by spawning isolated worker processes, each
driving an external LLM coding agent inside a private git worktree.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"swarmctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("ralph-dir", "", "Coordination state directory (default: $RALPH_DIR or ~/.ralph)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Address to serve /metrics, /health, /ready, /live on (default: $SWARM_METRICS_ADDR, disabled if empty)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listRunsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(emergencyStopCmd)
	rootCmd.AddCommand(workerCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// loadConfig builds the coordinator's Config from the environment,
// overridden by the --ralph-dir persistent flag when set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("ralph-dir"); dir != "" {
		cfg.RalphDir = dir
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.MetricsAddr = addr
	}
	return cfg, nil
}

// openStore opens the coordination store at cfg's configured path,
// creating its parent directory if necessary.
func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.RalphDir, 0755); err != nil {
		return nil, fmt.Errorf("create ralph dir %s: %w", cfg.RalphDir, err)
	}
	return store.Open(cfg.DBPath())
}

// exitCodeFor maps an error from a RunE into one of the process exit
// codes above. Commands that need a specific code (run interrupted,
// resume required) set it via a *cliError; everything else is unrecoverable.
func exitCodeFor(err error) int {
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitUnrecoverable
}

// cliError carries a specific process exit code alongside the error
// cobra prints.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func newCliError(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}
