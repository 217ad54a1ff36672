// Package commands implements CLI command handlers for slabbench.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/slabtree/internal/bench"
	"github.com/Sumatoshi-tech/slabtree/internal/observability"
	"github.com/Sumatoshi-tech/slabtree/pkg/version"
)

// meterName scopes the workload instruments.
const meterName = "slabbench"

type benchExecutor func(ctx context.Context, workload *bench.Workload, opts bench.RunnerOptions) (*bench.RunResult, error)

type observabilityInitializer func(cfg observability.Config) (observability.Providers, error)

// RunCommand holds configuration and dependencies for the run command.
type RunCommand struct {
	workloadPath string
	jsonOut      bool
	chartPath    string
	metricsAddr  string
	otlpEndpoint string
	debugTrace   bool
	silent       bool
	seed         int64

	cpuprofile  string
	heapprofile string

	benchExec benchExecutor
	obsInit   observabilityInitializer
}

// NewRunCommand creates the workload run command.
func NewRunCommand() *cobra.Command {
	return newRunCommandWithDeps(executeWorkload, observability.Init)
}

func newRunCommandWithDeps(benchExec benchExecutor, obsInit observabilityInitializer) *cobra.Command {
	rc := &RunCommand{
		benchExec: benchExec,
		obsInit:   obsInit,
	}

	cmd := &cobra.Command{
		Use:   "run [workload.yaml]",
		Short: "Execute a workload and report results",
		Long:  "Execute the phases of a workload file against a fresh tree and report per-phase throughput.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  rc.run,
	}

	cmd.Flags().StringVarP(&rc.workloadPath, "workload", "w", "",
		"Workload file path (default: workload.yaml in the working directory)")
	cmd.Flags().BoolVar(&rc.jsonOut, "json", false, "Emit the report as JSON")
	cmd.Flags().StringVar(&rc.chartPath, "chart", "", "Write a throughput chart HTML page to file")
	cmd.Flags().StringVar(&rc.metricsAddr, "metrics", "",
		"Serve Prometheus metrics at this address while the run is in flight (e.g. ':9090')")
	cmd.Flags().StringVar(&rc.otlpEndpoint, "otlp", "", "OTLP gRPC collector endpoint (default: $OTEL_EXPORTER_OTLP_ENDPOINT)")
	cmd.Flags().BoolVar(&rc.debugTrace, "debug-trace", false, "Force full trace sampling")
	cmd.Flags().BoolVar(&rc.silent, "silent", false, "Disable progress output")
	cmd.Flags().Int64Var(&rc.seed, "seed", 0, "Override the workload seed")

	cmd.Flags().StringVar(&rc.cpuprofile, "cpuprofile", "", "Write CPU profile to file")
	cmd.Flags().StringVar(&rc.heapprofile, "heapprofile", "", "Write heap profile to file")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	silent := rc.isSilent(cmd)
	progressWriter := cmd.ErrOrStderr()

	workload, err := bench.LoadWorkload(rc.resolveWorkloadPath(args))
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("seed") {
		workload.Seed = rc.seed
	}

	rc.progressf(silent, progressWriter, "workload %s loaded: %d phases, policy %s, seed %d",
		workload.Name, len(workload.Phases), workload.Policy, workload.Seed)

	providers, err := rc.obsInit(rc.buildObservabilityConfig())
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil && providers.Logger != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	stopProfiler, err := bench.MaybeStartCPUProfile(rc.cpuprofile)
	if err != nil {
		return err
	}

	defer stopProfiler()
	defer bench.MaybeWriteHeapProfile(rc.heapprofile, providers.Logger)

	meter := providers.Meter

	if rc.metricsAddr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(rc.metricsAddr)
		if diagErr != nil {
			return diagErr
		}

		defer func() {
			closeErr := diag.Close()
			if closeErr != nil && providers.Logger != nil {
				providers.Logger.Warn("diagnostics server close failed", "error", closeErr)
			}
		}()

		meter = diag.MeterProvider().Meter(meterName)

		rc.progressf(silent, progressWriter, "metrics served at http://%s/metrics", diag.Addr())
	}

	startedAt := time.Now()

	result, err := rc.benchExec(cmd.Context(), workload, bench.RunnerOptions{
		Tracer: providers.Tracer,
		Meter:  meter,
	})
	if err != nil {
		return err
	}

	rc.progressf(silent, progressWriter, "run finished in %s", time.Since(startedAt).Round(time.Millisecond))

	err = bench.WriteReport(result, rc.jsonOut, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	return rc.writeChart(result, silent, progressWriter)
}

// resolveWorkloadPath prefers the positional argument over the --workload flag.
func (rc *RunCommand) resolveWorkloadPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	return rc.workloadPath
}

func (rc *RunCommand) writeChart(result *bench.RunResult, silent bool, progressWriter io.Writer) error {
	if rc.chartPath == "" {
		return nil
	}

	chartFile, err := os.Create(rc.chartPath)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}

	writeErr := bench.WriteChart(result, chartFile)

	closeErr := chartFile.Close()
	if writeErr != nil {
		return writeErr
	}

	if closeErr != nil {
		return fmt.Errorf("close chart file: %w", closeErr)
	}

	rc.progressf(silent, progressWriter, "throughput chart written to %s", rc.chartPath)

	return nil
}

func (rc *RunCommand) buildObservabilityConfig() observability.Config {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version

	cfg.OTLPEndpoint = rc.otlpEndpoint
	if cfg.OTLPEndpoint == "" {
		cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	cfg.DebugTrace = rc.debugTrace

	return cfg
}

func (rc *RunCommand) isSilent(cmd *cobra.Command) bool {
	if rc.silent {
		return true
	}

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return false
	}

	return quiet
}

func (rc *RunCommand) progressf(silent bool, writer io.Writer, format string, args ...any) {
	if silent {
		return
	}

	_, _ = fmt.Fprintf(writer, "progress: "+format+"\n", args...)
}

// executeWorkload is the production bench executor: one runner per run,
// closed after the workload completes.
func executeWorkload(ctx context.Context, workload *bench.Workload, opts bench.RunnerOptions) (*bench.RunResult, error) {
	runner, err := bench.NewRunner(workload, opts)
	if err != nil {
		return nil, err
	}

	result, runErr := runner.Run(ctx)

	closeErr := runner.Close()
	if runErr != nil {
		return nil, runErr
	}

	if closeErr != nil {
		return nil, closeErr
	}

	return result, nil
}
