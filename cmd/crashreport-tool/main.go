package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/pflag"

	"github.com/stealthrocket/crashreport/internal/cluster"
	"github.com/stealthrocket/crashreport/internal/dialect"
	"github.com/stealthrocket/crashreport/internal/distance"
	"github.com/stealthrocket/crashreport/internal/frame"
	"github.com/stealthrocket/crashreport/internal/normalize"
	"github.com/stealthrocket/crashreport/internal/osinfo"
	"github.com/stealthrocket/crashreport/internal/report"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type program struct {
	mode     string
	dialect  string
	input    string
	output   string
	metric   string
	cutLevel float64
	minSize  int

	reporterName    string
	reporterVersion string
	reason          string
	osName          string
	osVersion       string
	osArch          string
}

func (prog *program) run(ctx context.Context) error {
	switch prog.mode {
	case "report":
		return prog.runReport()
	case "cluster":
		return prog.runCluster(ctx)
	default:
		return fmt.Errorf("unknown mode %q (want \"report\" or \"cluster\")", prog.mode)
	}
}

// runReport parses a single crash artifact, normalizes it where
// applicable, and emits the Report envelope as JSON.
func (prog *program) runReport() error {
	text, err := readInput(prog.input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	st, err := parseDialect(prog.dialect, text)
	if err != nil {
		return fmt.Errorf("parsing %s input: %w", prog.dialect, err)
	}

	for _, t := range st.Threads() {
		normalize.Normalize(t)
	}

	r := report.New(st)
	r.Reporter = report.Reporter{Name: prog.reporterName, Version: prog.reporterVersion}
	r.Reason = prog.reason
	r.OS = osinfo.OS{Name: prog.osName, Version: prog.osVersion, Architecture: prog.osArch}
	r.Architecture = prog.osArch

	data, err := r.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return writeOutput(prog.output, data)
}

// runCluster reads one GDB backtrace per file from the input directory,
// computes their pairwise distance matrix and prints the dendrogram cut
// at the requested level.
func (prog *program) runCluster(ctx context.Context) error {
	entries, err := os.ReadDir(prog.input)
	if err != nil {
		return fmt.Errorf("reading input directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var names []string
	var threads []*frame.Thread
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := prog.input + "/" + e.Name()
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		st, err := dialect.ParseGDB(text)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		t := st.CrashThread()
		if t == nil && len(st.Threads()) > 0 {
			t = st.Threads()[0]
		}
		if t == nil {
			continue
		}
		threads = append(threads, normalize.Normalize(t))
		names = append(names, e.Name())
	}

	metric, err := parseMetric(prog.metric)
	if err != nil {
		return err
	}

	parts := distance.ComputeParts(threads, metric, 0)
	matrix, err := distance.MergeParts(threads, metric, parts)
	if err != nil {
		return fmt.Errorf("merging distance matrix: %w", err)
	}

	dendrogram := cluster.Build(matrix)
	groups := dendrogram.Cut(prog.cutLevel, prog.minSize)

	for i, group := range groups {
		fmt.Fprintf(os.Stdout, "cluster %d:\n", i)
		for _, idx := range group {
			fmt.Fprintf(os.Stdout, "  %s\n", names[idx])
		}
	}
	return ctx.Err()
}

func parseMetric(name string) (distance.Metric, error) {
	switch name {
	case "jaccard":
		return distance.MetricJaccard, nil
	case "jarowinkler":
		return distance.MetricJaroWinkler, nil
	case "levenshtein":
		return distance.MetricLevenshtein, nil
	case "damerau":
		return distance.MetricDamerauLevenshtein, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", name)
	}
}

func parseDialect(name string, text []byte) (frame.Stacktrace, error) {
	switch name {
	case "gdb":
		return dialect.ParseGDB(text)
	case "core":
		return dialect.ParseCoreJSON(text)
	case "koops":
		return dialect.ParseKoops(text)
	case "python":
		return dialect.ParsePython(text)
	case "java":
		return dialect.ParseJava(text)
	case "ruby":
		return dialect.ParseRubyBacktrace(text)
	case "javascript":
		return dialect.ParseJS(text)
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "-" || path == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var (
	mode            string
	dialectName     string
	input           string
	output          string
	metric          string
	cutLevel        float64
	minSize         int
	reporterName    string
	reporterVersion string
	reason          string
	osName          string
	osVersion       string
	osArch          string
)

func init() {
	log.Default().SetOutput(os.Stderr)
	pflag.StringVarP(&mode, "mode", "m", "report", `Operation to perform: "report" or "cluster".`)
	pflag.StringVar(&dialectName, "dialect", "gdb", "Crash dialect to parse (report mode): gdb, core, koops, python, java, ruby, javascript.")
	pflag.StringVarP(&input, "input", "i", "-", "Input file (report mode) or directory of GDB backtraces (cluster mode); \"-\" reads stdin.")
	pflag.StringVarP(&output, "output", "o", "-", "Output file for the Report JSON (report mode); \"-\" writes stdout.")
	pflag.StringVar(&metric, "metric", "jaccard", "Thread distance metric for cluster mode: jaccard, jarowinkler, levenshtein, damerau.")
	pflag.Float64Var(&cutLevel, "cut-level", 0.5, "Dendrogram cut level (cluster mode).")
	pflag.IntVar(&minSize, "min-size", 1, "Minimum cluster size to emit (cluster mode).")
	pflag.StringVar(&reporterName, "reporter-name", "crashreport-tool", "Reporter name recorded in the report envelope.")
	pflag.StringVar(&reporterVersion, "reporter-version", "0.0.0", "Reporter version recorded in the report envelope.")
	pflag.StringVar(&reason, "reason", "", "Short human-readable crash reason.")
	pflag.StringVar(&osName, "os-name", "", "Operating system name.")
	pflag.StringVar(&osVersion, "os-version", "", "Operating system version.")
	pflag.StringVar(&osArch, "os-arch", "", "Operating system architecture.")
}

func run(ctx context.Context) error {
	pflag.Parse()

	return (&program{
		mode:            mode,
		dialect:         dialectName,
		input:           input,
		output:          output,
		metric:          metric,
		cutLevel:        cutLevel,
		minSize:         minSize,
		reporterName:    reporterName,
		reporterVersion: reporterVersion,
		reason:          reason,
		osName:          osName,
		osVersion:       osVersion,
		osArch:          osArch,
	}).run(ctx)
}
