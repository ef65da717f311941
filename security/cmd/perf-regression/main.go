// Command perf-regression compares two `go test -bench` outputs and fails
// when a tracked benchmark got slower than the allowed ratio.
//
//	go test -run '^$' -bench . -count 5 ./... > new.txt
//	go run ./security/cmd/perf-regression -baseline old.txt -candidate new.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

// defaultTracked covers the per-navigation hot path: route matching, the
// guard itself, metric counters and the exposition renderer.
var defaultTracked = map[string][]string{
	"BenchmarkMatch":              {"ns/op", "allocs/op"},
	"BenchmarkNavigateAllowed":    {"ns/op", "allocs/op"},
	"BenchmarkNavigateDenied":     {"ns/op", "allocs/op"},
	"BenchmarkMetricsIncParallel": {"ns/op"},
	"BenchmarkRender":             {"ns/op"},
}

type sampleSet map[string]map[string][]float64

// trackFlag parses repeated -track Name=metric,metric values.
type trackFlag map[string][]string

func (f trackFlag) String() string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func (f trackFlag) Set(v string) error {
	name, metrics, ok := strings.Cut(v, "=")
	if !ok || name == "" || metrics == "" {
		return fmt.Errorf("want Name=metric[,metric], got %q", v)
	}
	f[name] = strings.Split(metrics, ",")
	return nil
}

type row struct {
	benchmark string
	metric    string
	baseline  float64
	candidate float64
	delta     float64
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
		tracked       = trackFlag{}
	)

	flag.StringVar(&baselinePath, "baseline", "", "path to baseline benchmark output")
	flag.StringVar(&candidatePath, "candidate", "", "path to candidate benchmark output")
	flag.Float64Var(&threshold, "threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	flag.Var(tracked, "track", "benchmark to track as Name=metric,metric (repeatable; replaces the default set)")
	flag.Parse()

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}
	if len(tracked) == 0 {
		tracked = defaultTracked
	}

	baseline, err := parseBenchmarkFile(baselinePath, tracked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseBenchmarkFile(candidatePath, tracked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	rows, failures := compare(baseline, candidate, tracked, threshold)

	fmt.Println("perf regression check:")
	fmt.Println("benchmark metric baseline candidate delta")
	for _, r := range rows {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", r.benchmark, r.metric, r.baseline, r.candidate, r.delta*100)
	}

	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
		for _, failure := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", failure)
		}
		os.Exit(1)
	}
}

// compare walks the tracked benchmarks in name order and reports every
// metric whose median grew by more than threshold.
func compare(baseline, candidate sampleSet, tracked map[string][]string, threshold float64) ([]row, []string) {
	names := make([]string, 0, len(tracked))
	for name := range tracked {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		rows     []row
		failures []string
	)
	for _, benchmark := range names {
		for _, metric := range tracked[benchmark] {
			baseSamples := baseline[benchmark][metric]
			candidateSamples := candidate[benchmark][metric]
			if len(baseSamples) == 0 || len(candidateSamples) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", benchmark, metric))
				continue
			}

			baseMedian := median(baseSamples)
			candidateMedian := median(candidateSamples)
			if baseMedian <= 0 {
				// 0 allocs/op stays fine as long as it stays 0.
				if metric == "allocs/op" && candidateMedian == 0 {
					rows = append(rows, row{benchmark, metric, 0, 0, 0})
					continue
				}
				failures = append(failures, fmt.Sprintf("invalid baseline median for %s %s", benchmark, metric))
				continue
			}

			delta := (candidateMedian - baseMedian) / baseMedian
			rows = append(rows, row{benchmark, metric, baseMedian, candidateMedian, delta})
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", benchmark, metric, delta*100, threshold*100))
			}
		}
	}
	return rows, failures
}

func parseBenchmarkFile(path string, tracked map[string][]string) (sampleSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseBenchmarks(file, tracked)
}

func parseBenchmarks(r io.Reader, tracked map[string][]string) (sampleSet, error) {
	samples := sampleSet{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}

		name := normalizeBenchmarkName(fields[0])
		if _, ok := tracked[name]; !ok {
			continue
		}
		if _, ok := samples[name]; !ok {
			samples[name] = map[string][]float64{}
		}

		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			samples[name][fields[i+1]] = append(samples[name][fields[i+1]], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// normalizeBenchmarkName strips the -GOMAXPROCS suffix.
func normalizeBenchmarkName(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
