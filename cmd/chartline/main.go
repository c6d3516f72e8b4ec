// Command chartline extracts date anchors from Korean/English medical and
// insurance narrative text, resolves conflicting readings, and prints a
// ranked timeline. Runs can be persisted to a local SQLite history and the
// whole pipeline is also exposed as an MCP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/jinhwalab/chartline/internal/anchor"
	"github.com/jinhwalab/chartline/internal/config"
	chartmcp "github.com/jinhwalab/chartline/internal/mcp"
	"github.com/jinhwalab/chartline/internal/pipeline"
	"github.com/jinhwalab/chartline/internal/rank"
	"github.com/jinhwalab/chartline/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "analyze":
		if err := runAnalyze(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "history":
		if err := runHistory(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "mcp":
		if err := runMCP(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("chartline %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

type cliFlags struct {
	opts    config.ResolveOptions
	jsonOut bool
	noSave  bool
	verbose bool
	runID   string
	limit   string
	rest    []string
}

func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := func(name string) (string, error) {
			i++
			if i >= len(args) {
				return "", fmt.Errorf("%s requires a value", name)
			}
			return args[i], nil
		}

		var err error
		switch {
		case arg == "--config":
			f.opts.ConfigPath, err = next(arg)
		case arg == "--db":
			f.opts.CLIDBPath, err = next(arg)
		case arg == "--ref":
			f.opts.CLIReferenceDay, err = next(arg)
		case arg == "--merge-days":
			f.opts.CLIMergeDays, err = next(arg)
		case arg == "--min-score":
			f.opts.CLIMinScore, err = next(arg)
		case arg == "--id":
			f.runID, err = next(arg)
		case arg == "--limit":
			f.limit, err = next(arg)
		case arg == "--json":
			f.jsonOut = true
		case arg == "--no-save":
			f.noSave = true
		case arg == "--verbose":
			f.verbose = true
		case strings.HasPrefix(arg, "-") && arg != "-":
			return f, fmt.Errorf("unknown flag: %s", arg)
		default:
			f.rest = append(f.rest, arg)
		}
		if err != nil {
			return f, err
		}
	}
	return f, nil
}

func runAnalyze(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}

	text, err := readInput(f.rest)
	if err != nil {
		return err
	}

	resolved, err := config.ResolveConfig(f.opts)
	if err != nil {
		return err
	}
	cfg, err := resolved.PipelineConfig()
	if err != nil {
		return err
	}
	ref, err := resolved.ReferenceDate(time.Now().UTC())
	if err != nil {
		return err
	}

	engine := pipeline.New(cfg, pipeline.WithLogger(newLogger(f.verbose)))
	res, err := engine.AnalyzeWithRetry(context.Background(), text, ref, pipeline.DefaultRetryPolicy())
	if err != nil {
		return err
	}

	if !f.noSave {
		st, err := store.Open(resolved.DBPath.Value)
		if err != nil {
			return fmt.Errorf("opening history db: %w", err)
		}
		defer st.Close()
		if err := st.SaveResult(context.Background(), text, res); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
	}

	if f.jsonOut {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	printResult(res)
	return nil
}

func runHistory(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}

	resolved, err := config.ResolveConfig(f.opts)
	if err != nil {
		return err
	}
	st, err := store.Open(resolved.DBPath.Value)
	if err != nil {
		return fmt.Errorf("opening history db: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	if f.runID != "" {
		run, err := st.GetRun(ctx, f.runID)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	limit := 20
	if f.limit != "" {
		if _, err := fmt.Sscanf(f.limit, "%d", &limit); err != nil {
			return fmt.Errorf("invalid --limit %q", f.limit)
		}
	}

	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  ref=%s  anchors=%d  conflicts=%d  confidence=%.2f  %dms\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.ReferenceDate.Format("2006-01-02"),
			r.AnchorCount, r.ConflictCount, r.OverallConfidence, r.ProcessingMS)
	}
	return nil
}

func runMCP(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}

	resolved, err := config.ResolveConfig(f.opts)
	if err != nil {
		return err
	}
	cfg, err := resolved.PipelineConfig()
	if err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync()

	st, err := store.Open(resolved.DBPath.Value)
	if err != nil {
		return fmt.Errorf("opening history db: %w", err)
	}
	defer st.Close()

	engine := pipeline.New(cfg, pipeline.WithLogger(log))
	srv := chartmcp.NewServer(chartmcp.ServerConfig{
		Engine:  engine,
		Store:   st,
		Version: version,
	})

	log.Info("serving MCP over stdio", zap.String("db", resolved.DBPath.Value))
	return server.ServeStdio(srv)
}

// readInput takes the text from a file argument, a literal argument, or stdin.
func readInput(rest []string) (string, error) {
	if len(rest) == 0 || (len(rest) == 1 && rest[0] == "-") {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	}
	arg := rest[0]
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		b, err := os.ReadFile(arg)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", arg, err)
		}
		return string(b), nil
	}
	return strings.Join(rest, " "), nil
}

func printResult(res *pipeline.Result) {
	fmt.Printf("Run %s  (reference %s, %dms, confidence %.2f)\n\n",
		res.ID, res.ReferenceDate.Format("2006-01-02"), res.ProcessingMS, res.OverallConfidence)

	printTier := func(name string, tier []rank.MergedAnchor) {
		fmt.Printf("%s anchors (%d):\n", name, len(tier))
		for _, m := range tier {
			a := m.Representative
			fmt.Printf("  %s  %-20s %-18s score=%.1f conf=%.2f merged=%d  %q\n",
				a.Date.Format("2006-01-02"), a.Rule, contextType(a), a.HierarchyScore, a.FinalConfidence, m.MergedCount, a.RawText)
		}
	}
	printTier("Primary", res.Primary)
	fmt.Println()
	printTier("Secondary", res.Secondary)

	if len(res.Conflicts) > 0 {
		fmt.Printf("\nConflicts (%d):\n", len(res.Conflicts))
		for _, c := range res.Conflicts {
			fmt.Printf("  [%s] %q vs %q (severity %.2f)\n", c.Type, c.A.RawText, c.B.RawText, c.Severity)
		}
		for _, r := range res.Resolutions {
			fmt.Printf("    -> %s via %s: %s\n", r.State, r.Strategy, r.Reason)
		}
	}

	if len(res.Timeline) > 0 {
		fmt.Println("\nTimeline:")
		for _, ev := range res.Timeline {
			fmt.Printf("  %s  %q\n", ev.Anchor.Date.Format("2006-01-02"), ev.Anchor.RawText)
		}
	}

	if len(res.Degraded) > 0 {
		fmt.Printf("\nDegraded stages: %s\n", strings.Join(res.Degraded, ", "))
	}
}

func contextType(a anchor.DateAnchor) string {
	if a.Medical == nil {
		return "-"
	}
	return a.Medical.Type
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func printUsage() {
	fmt.Println(`chartline: temporal anchor extraction for medical/insurance text

Usage:
  chartline analyze [text|file|-] [flags]   Analyze text (stdin when omitted)
  chartline history [--id <run>] [flags]    List stored runs or show one
  chartline mcp [flags]                     Serve the MCP server over stdio
  chartline version                         Print version

Flags:
  --config <path>     Config file (default ~/.chartline/config.yaml)
  --db <path>         History database path
  --ref <YYYY-MM-DD>  Reference date for relative expressions
  --merge-days <n>    Day gap threshold for merging anchors
  --min-score <n>     Primary-tier hierarchy score threshold
  --limit <n>         Max runs to list (history)
  --json              JSON output (analyze)
  --no-save           Skip writing the run to history (analyze)
  --verbose           Debug logging (analyze)`)
}
