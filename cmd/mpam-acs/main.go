/*
Copyright 2025 Intel Corporation

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// This application runs the MPAM compliance tests against a platform
// description, using the simulated platform as the hardware backend.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/maps"

	"github.com/acs-suite/gompam/pkg/acs"
	"github.com/acs-suite/gompam/pkg/hal/sim"
	grclog "github.com/acs-suite/gompam/pkg/log"
	_ "github.com/acs-suite/gompam/pkg/mpam"
	"github.com/acs-suite/gompam/pkg/tables"
	"github.com/acs-suite/gompam/pkg/utils"
)

var (
	// Global command line flags
	platformFile string
	logLevel     = grclog.NewLevelFlag(slog.LevelInfo)
)

type subCmd struct {
	description string
	f           func([]string) error
}

var subCmds = map[string]subCmd{
	"help": {
		description: "Display this help",
		f:           subCmdHelp,
	},
	"info": {
		description: "Display the platform tables",
		f:           subCmdInfo,
	},
	"list": {
		description: "List the compliance tests",
		f:           subCmdList,
	},
	"run": {
		description: "Run compliance tests",
		f:           subCmdRun,
	},
	"serve": {
		description: "Run compliance tests and serve the results as prometheus metrics",
		f:           subCmdServe,
	},
}

func main() {
	flag.CommandLine.SetOutput(os.Stdout)
	flag.Usage = usage

	// Define the main help flag manually
	help := flag.Bool("help", false, "Display this help")
	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	slog.SetDefault(slog.New(grclog.NewLogHandler(os.Stderr, logLevel)))

	// Run sub-command
	cmd, ok := subCmds[args[0]]
	if !ok {
		fmt.Printf("unknown sub-command %q\n", args[0])
		flag.Usage()
		os.Exit(2)
	}

	if err := cmd.f(args[1:]); err != nil {
		fmt.Printf("sub-command %q failed: %v\n", args[0], err)
		os.Exit(1)
	}
}

// nolint:errcheck
func usage() {
	f := flag.CommandLine.Output()
	fmt.Fprint(f, `Usage: mpam-acs <command> [options]

Available commands:`)

	cmds := maps.Keys(subCmds)
	slices.Sort(cmds)
	for _, c := range cmds {
		fmt.Fprintf(f, "\n  %-12s %s", c, subCmds[c].description)
	}

	fmt.Fprint(f, `

Use "mpam-acs <command> --help" for more information about a command.
`)

	fmt.Fprint(f, "\nGlobal options:\n")
	flag.PrintDefaults()
}

func addGlobalFlags(flagset *flag.FlagSet) {
	flagset.StringVar(&platformFile, "platform", "", "platform description file")
	flagset.Var(logLevel, "log-level", "log level: debug, info, warn or error")
}

func subCmdHelp(args []string) error {
	// Parse command line args
	flags := flag.NewFlagSet("help", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	// Run sub-command
	flag.Usage()
	return nil
}

func subCmdInfo(args []string) error {
	// Parse command line args
	flags := flag.NewFlagSet("info", flag.ExitOnError)
	addGlobalFlags(flags)
	sysfs := flags.String("sysfs", "", "read the cache table from a sysfs cpu directory, e.g. "+tables.DefaultCPUSysfsPath)
	dump := flags.Bool("json", false, "dump the tables as JSON")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// Run sub-command
	var t *tables.Tables
	switch {
	case *sysfs != "":
		caches, err := tables.CacheTableFromSysfs(*sysfs)
		if err != nil {
			return err
		}
		t = &tables.Tables{Cache: caches}
	case platformFile != "":
		var err error
		if t, err = tables.LoadFile(platformFile); err != nil {
			return err
		}
	default:
		return fmt.Errorf("-platform or -sysfs must be specified")
	}

	if *dump {
		fmt.Println(utils.DumpJSON(t))
		return nil
	}
	printTables(t)
	return nil
}

func printTables(t *tables.Tables) {
	fmt.Printf("Caches: %d\n", t.Cache.Len())
	llc, llcErr := t.Cache.LLCIndex()
	for i, e := range t.Cache.Entries {
		id := "-"
		if v := t.Cache.Info(tables.CacheFieldID, i); v != tables.InvalidCacheInfo {
			id = strconv.FormatUint(v, 10)
		}
		size := "-"
		if v := t.Cache.Info(tables.CacheFieldSize, i); v != tables.InvalidCacheInfo {
			size = strconv.FormatUint(v, 10)
		}
		scope := "shared"
		if e.IsPrivate {
			scope = "private"
		}
		mark := ""
		if llcErr == nil && i == llc {
			mark = " (LLC)"
		}
		fmt.Printf("  - #%d id %s offset %#x size %s %s %s%s\n", i, id, e.Offset, size, scope, e.Type, mark)
	}

	fmt.Printf("MSCs: %d\n", t.Mpam.MscCount())
	for i := range t.Mpam.MscCount() {
		n := t.Mpam.Nodes[i]
		fmt.Printf("  - #%d identifier %d %s base %#x max-nrdy %dus\n", i, n.Identifier, n.InterfaceType, n.BaseAddress, n.MaxNrdyUsec)
		for _, r := range n.Resources {
			fmt.Printf("      ris %d %s descriptor %#x\n", r.RISIndex, r.LocatorType, r.Descriptor1)
		}
	}

	fmt.Printf("RAS nodes: %d PE, %d memory controller\n", t.Ras.NumPENodes(), t.Ras.NumMCNodes())
	fmt.Printf("RAS2 memory blocks: %d\n", t.Ras2.NumMemoryBlocks())

	if llcErr == nil {
		if id := t.Cache.Info(tables.CacheFieldID, llc); id != tables.InvalidCacheInfo {
			if i, ok := t.Pmu.Lookup(tables.PmuNodePECache, id); ok {
				fmt.Printf("LLC PMU: block #%d base %#x\n", i, t.Pmu.Blocks[i].Base0)
			}
		}
	}

	ranges := t.Srat.MemRanges()
	fmt.Printf("Memory ranges: %d\n", len(ranges))
	for _, m := range ranges {
		bw := "unknown"
		if e, ok := t.Hmat.Bandwidth(m.ProximityDomain); ok {
			bw = fmt.Sprintf("read %d MB/s write %d MB/s", e.ReadBw, e.WriteBw)
		}
		fmt.Printf("  - [%#x, %#x) domain %d bandwidth %s\n", m.AddrBase, m.AddrBase+m.AddrLen, m.ProximityDomain, bw)
	}

	for i := range t.Mpam.MscCount() {
		n := t.Mpam.Nodes[i]
		if n.InterfaceType != tables.MscInterfacePCC {
			continue
		}
		if ss, ok := t.Pcc.Subspace(uint32(n.BaseAddress)); ok {
			fmt.Printf("MSC %d PCC subspace %d type %d\n", n.Identifier, ss.SubspaceIndex, ss.SubspaceType)
		}
	}
}

func subCmdList(args []string) error {
	// Parse command line args
	flags := flag.NewFlagSet("list", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	// Run sub-command
	for _, t := range acs.Registered() {
		fmt.Printf("  %4d  %-8s %s\n", t.Num, t.Module, t.Description)
	}
	return nil
}

type runFlags struct {
	optionsFile  *string
	tests        *string
	skip         *string
	modules      *string
	cacheKey     *string
	metricsFile  *string
	otelExporter *string
	otelEndpoint *string
}

func addRunFlags(flagset *flag.FlagSet) *runFlags {
	addGlobalFlags(flagset)
	return &runFlags{
		optionsFile:  flagset.String("options", "", "suite options file"),
		tests:        flagset.String("tests", "", "comma-separated list of tests to run"),
		skip:         flagset.String("skip", "", "comma-separated list of tests to skip"),
		modules:      flagset.String("modules", "", "comma-separated list of modules to run"),
		cacheKey:     flagset.String("cache-key", "", "how MPAM resources reference caches: id or offset"),
		metricsFile:  flagset.String("metrics-file", "", "write results as prometheus metrics to this file"),
		otelExporter: flagset.String("otel-exporter", "", "push results as OpenTelemetry metrics: stdout, otlp-http or otlp-grpc"),
		otelEndpoint: flagset.String("otel-endpoint", "", "OTLP endpoint (host:port)"),
	}
}

func (f *runFlags) options() (*acs.Options, error) {
	opts := acs.DefaultOptions()
	if *f.optionsFile != "" {
		var err error
		if opts, err = acs.LoadOptions(*f.optionsFile); err != nil {
			return nil, err
		}
	}

	tests, err := parseNumList(*f.tests)
	if err != nil {
		return nil, fmt.Errorf("invalid -tests: %v", err)
	}
	skip, err := parseNumList(*f.skip)
	if err != nil {
		return nil, fmt.Errorf("invalid -skip: %v", err)
	}
	if len(tests) > 0 {
		opts.Tests = tests
	}
	opts.Skip = append(opts.Skip, skip...)
	if *f.modules != "" {
		opts.Modules = strings.Split(*f.modules, ",")
	}
	if *f.cacheKey != "" {
		opts.CacheKey = acs.CacheKey(*f.cacheKey)
	}
	return opts, opts.Validate()
}

// parseNumList parses a comma-separated list of test numbers.
func parseNumList(s string) ([]uint32, error) {
	if s == "" {
		return nil, nil
	}
	var nums []uint32
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(f), 10, 16)
		if err != nil {
			return nil, err
		}
		nums = append(nums, uint32(n))
	}
	return nums, nil
}

// runSuite runs the selected tests and reports the results to the
// collector and the configured OpenTelemetry exporter.
func runSuite(ctx context.Context, f *runFlags, collector *acs.Collector) ([]acs.Result, error) {
	if platformFile == "" {
		return nil, fmt.Errorf("-platform must be specified")
	}
	opts, err := f.options()
	if err != nil {
		return nil, err
	}

	platform, t, err := sim.NewFromFile(platformFile)
	if err != nil {
		return nil, err
	}

	observers := []acs.Observer{collector}
	if *f.otelExporter != "" {
		exp, err := acs.NewOtelExporter(ctx, *f.otelExporter, *f.otelEndpoint, os.Stdout)
		if err != nil {
			return nil, err
		}
		rec, err := acs.NewPushRecorder(exp)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := rec.Shutdown(context.Background()); err != nil {
				slog.Error("failed to flush otel metrics", "error", err)
			}
		}()
		observers = append(observers, rec)
	}

	env := &acs.Env{Platform: platform, Tables: t, Options: opts}
	runner := acs.NewRunner(env, observers...)
	results, err := runner.Run(ctx, opts.Select(acs.Registered()))

	fmt.Println("MPAM compliance test results:")
	acs.WriteReport(os.Stdout, results)
	return results, err
}

func subCmdRun(args []string) error {
	// Parse command line args
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	rf := addRunFlags(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	// Run sub-command
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	collector := acs.NewCollector()
	results, err := runSuite(ctx, rf, collector)
	if err != nil {
		return err
	}

	if *rf.metricsFile != "" {
		if err := acs.WriteTextfile(*rf.metricsFile, collector); err != nil {
			return fmt.Errorf("failed to write metrics: %v", err)
		}
	}

	if failed := acs.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d test(s) failed", len(failed))
	}
	return nil
}

func subCmdServe(args []string) error {
	// Parse command line args
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	rf := addRunFlags(flags)
	port := flags.Int("port", 8080, "port to serve metrics on")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// Run sub-command
	collector := acs.NewCollector()
	if _, err := runSuite(context.Background(), rf, collector); err != nil {
		return err
	}

	prometheusRegistry := prometheus.NewRegistry()
	prometheusRegistry.MustRegister(collector)
	http.Handle("/metrics", promhttp.HandlerFor(prometheusRegistry, promhttp.HandlerOpts{}))

	fmt.Printf("Serving prometheus metrics at :%d/metrics\n", *port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", *port), nil); err != nil {
		return fmt.Errorf("error running HTTP server: %v", err)
	}
	return nil
}
