// jmf finds every bytecode call site of a given Java method in a tree of
// compiled class files, without a JVM or source access.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"jmf/internal/callgraph"
	"jmf/internal/report"
	"jmf/internal/scanner"
)

const version = "0.1.0"

type options struct {
	targetClass  string
	targetMethod string
	scanDir      string
	format       string
	verbose      bool
	jars         bool
	graphPath    string
	workers      int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "jmf",
		Short:         "Java Method Finder",
		Long:          "jmf scans compiled .class files and reports every call site of a target method,\nwith source line numbers taken from debug line tables.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.targetClass, "class", "c", "", "fully-qualified target class (dotted form)")
	cmd.Flags().StringVarP(&opts.targetMethod, "method", "m", "", "target method name")
	cmd.Flags().StringVarP(&opts.scanDir, "scan", "s", "./target/classes", "directory to scan")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "txt", "output format: txt or json")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVar(&opts.jars, "jars", false, "also scan .jar/.war archives")
	cmd.Flags().StringVar(&opts.graphPath, "graph", "", "write a Graphviz call graph to this path")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "worker pool size (0 = number of CPUs)")
	_ = cmd.MarkFlagRequired("class")
	_ = cmd.MarkFlagRequired("method")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	log := newLogger(opts.verbose)

	if ctx == nil {
		ctx = context.Background()
	}
	result, err := scanner.Scan(ctx, scanner.Options{
		Root:         opts.scanDir,
		TargetClass:  opts.targetClass,
		TargetMethod: opts.targetMethod,
		Workers:      opts.workers,
		IncludeJars:  opts.jars,
		Log:          log,
	})
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		log.Warn("error analyzing", "path", w.Path, "message", w.Message)
	}

	if opts.graphPath != "" {
		target := opts.targetClass + "#" + opts.targetMethod
		if err := callgraph.WriteDOT(opts.graphPath, target, result.Calls); err != nil {
			return err
		}
	}

	out, err := report.New(opts.targetClass, opts.targetMethod, result.Calls).Render(format)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// newLogger builds the stderr logger. Debug level in verbose mode;
// timestamps are dropped so output is stable across runs.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
}
