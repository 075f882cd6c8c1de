package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"httpretry/internal/batch"
	"httpretry/pkg/storage"
	"httpretry/pkg/ui"
)

var (
	batchFile      string
	batchOutputDir string
	batchSkipSaved bool
	batchMethod    string
	batchHeaders   []string
	batchFail      bool
)

// batchCmd runs many independent calls concurrently
var batchCmd = &cobra.Command{
	Use:   "batch [url...]",
	Short: "Send many independent requests concurrently",
	Long: `Send one request per target on a pool of workers.

Targets come from the arguments and from --file (one URL per line, blank
lines and lines starting with # are ignored; "-" reads stdin). Every target
is its own call with its own attempt counter and budgets.

With --output-dir, 2xx bodies are saved under a name derived from the target
URL, and --skip-saved skips targets whose body is already there.`,
	Example: `  httpretry batch -F urls.txt --workers 8 --output-dir ./bodies
  cat urls.txt | httpretry batch -F - --retries 429=3`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchFile, "file", "F", "", "read targets from this file (\"-\" for stdin)")
	batchCmd.Flags().Int("workers", 0, "number of concurrent calls (default 4)")
	batchCmd.Flags().StringVarP(&batchOutputDir, "output-dir", "o", "", "save 2xx bodies in this directory")
	batchCmd.Flags().BoolVar(&batchSkipSaved, "skip-saved", false, "skip targets already saved in --output-dir")
	batchCmd.Flags().StringVarP(&batchMethod, "request", "X", http.MethodGet, "HTTP method")
	batchCmd.Flags().StringArrayVarP(&batchHeaders, "header", "H", nil, "request header 'Name: value' (repeatable)")
	batchCmd.Flags().BoolVarP(&batchFail, "fail", "f", false, "exit with code 22 when any final status is 400 or above")
	addPolicyFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	targets := append([]string(nil), args...)
	if batchFile != "" {
		fromFile, err := loadTargets(batchFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		targets = append(targets, fromFile...)
	}
	if len(targets) == 0 {
		return fmt.Errorf("no targets given; pass URLs as arguments or use --file")
	}
	if batchSkipSaved && batchOutputDir == "" {
		return fmt.Errorf("--skip-saved requires --output-dir")
	}

	req, err := buildRequest(batchMethod, batchHeaders, "", nil)
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	poolOpts := []batch.Option{
		batch.WithLogger(s.log),
		batch.WithSkipSaved(batchSkipSaved),
	}
	if batchOutputDir != "" {
		store, err := storage.NewManager(batchOutputDir)
		if err != nil {
			return err
		}
		poolOpts = append(poolOpts, batch.WithSink(store))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.printer.Highlight(fmt.Sprintf("Running %d calls on %d workers", len(targets), s.cfg.Batch.Workers))
	results := batch.Run(ctx, s.cfg.Batch.Workers, s.client, targets, req, poolOpts...)

	tracker := ui.NewBatchTracker(len(targets))
	printResults(cmd.OutOrStdout(), results, tracker)

	s.printer.Info("Progress", tracker.Bar(30))
	s.printer.Info("Summary", tracker.Summary())

	return batchExit(results, batchFail)
}

// loadTargets reads targets from path, or from stdin when path is "-"
func loadTargets(path string, stdin io.Reader) ([]string, error) {
	if path == "-" {
		return readTargets(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open targets file: %w", err)
	}
	defer f.Close()
	return readTargets(f)
}

// readTargets returns one target per non-blank line, skipping # comments
func readTargets(r io.Reader) ([]string, error) {
	var targets []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets: %w", err)
	}
	return targets, nil
}

// printResults writes one tab-separated line per target in input order and
// tallies each result
func printResults(w io.Writer, results []batch.Result, tracker *ui.BatchTracker) {
	for _, r := range results {
		switch {
		case r.Skipped:
			tracker.RecordSkipped()
			fmt.Fprintf(w, "SKIP\t%s\n", r.Job.Target)
		case r.Err != nil:
			tracker.RecordError()
			fmt.Fprintf(w, "ERR\t%s\t%v\n", r.Job.Target, r.Err)
		case r.Response.StatusCode >= 400:
			tracker.RecordStatusFailure()
			fmt.Fprintf(w, "%d\t%s\n", r.Response.StatusCode, r.Job.Target)
		default:
			tracker.RecordSuccess()
			fmt.Fprintf(w, "%d\t%s\n", r.Response.StatusCode, r.Job.Target)
		}
	}
}

// batchExit maps results to the process outcome: any error wins over status failures
func batchExit(results []batch.Result, failOnStatus bool) error {
	var errored, failed int
	for _, r := range results {
		switch {
		case r.Skipped:
		case r.Err != nil:
			errored++
		case r.Response.StatusCode >= 400:
			failed++
		}
	}
	if errored > 0 {
		return withExitCode(exitError, fmt.Errorf("%d of %d calls failed", errored, len(results)))
	}
	if failOnStatus && failed > 0 {
		return withExitCode(exitStatus, fmt.Errorf("%d of %d calls ended with a failure status", failed, len(results)))
	}
	return nil
}
