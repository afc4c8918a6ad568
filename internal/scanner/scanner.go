// Package scanner orchestrates a parallel scan of a class file tree: it
// discovers candidate files, fans parsing and bytecode scanning out over a
// bounded worker pool, and aggregates matches and warnings into one ordered
// result.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"jmf/internal/bytecode"
	"jmf/internal/classfile"
	"jmf/internal/jar"
)

var (
	// ErrNoTargetClass is returned before scanning when the target class is empty.
	ErrNoTargetClass = errors.New("scanner: target class is empty")
	// ErrNoTargetMethod is returned before scanning when the target method is empty.
	ErrNoTargetMethod = errors.New("scanner: target method is empty")
)

// Options configures one scan run.
type Options struct {
	Root         string // directory to scan, recursive
	TargetClass  string // dotted fully-qualified class name
	TargetMethod string // method name, no descriptor
	Workers      int    // worker pool size; 0 means runtime.NumCPU()
	IncludeJars  bool   // also scan .jar/.war archives
	Log          *slog.Logger
}

// Warning is a non-fatal per-file or per-method failure. The scan continues
// past every warning.
type Warning struct {
	Path    string
	Message string
}

// Result is the aggregate of a whole run: matches sorted by (caller class,
// caller method, line) and warnings in discovery order.
type Result struct {
	Calls    []bytecode.Call
	Warnings []Warning
}

// fileResult is the share-nothing output of one worker.
type fileResult struct {
	calls    []bytecode.Call
	warnings []Warning
}

func (o Options) logger() *slog.Logger {
	if o.Log != nil {
		return o.Log
	}
	return slog.New(slog.DiscardHandler)
}

// Scan runs the full pipeline over every class file under opts.Root.
// Caller-input errors (empty target, bad root) fail immediately; everything
// discovered after that point degrades to warnings at worst. A run with zero
// matches is a valid empty result.
func Scan(ctx context.Context, opts Options) (*Result, error) {
	if opts.TargetClass == "" {
		return nil, ErrNoTargetClass
	}
	if opts.TargetMethod == "" {
		return nil, ErrNoTargetMethod
	}
	info, err := os.Stat(opts.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("scan folder does not exist: %s", opts.Root)
		}
		return nil, fmt.Errorf("scan folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan path is not a directory: %s", opts.Root)
	}

	log := opts.logger()
	log.Debug("start scanning folder", "root", opts.Root)

	files, walkWarnings := discover(opts.Root, opts.IncludeJars)
	target := bytecode.Target{Class: opts.TargetClass, Method: opts.TargetMethod}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}

	results := make([]fileResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = scanOne(path, target, log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Warnings: walkWarnings}
	for _, fr := range results {
		res.Calls = append(res.Calls, fr.calls...)
		res.Warnings = append(res.Warnings, fr.warnings...)
	}
	// Worker interleaving must not show in the output: fix one order.
	sort.Slice(res.Calls, func(i, j int) bool {
		a, b := res.Calls[i], res.Calls[j]
		if a.CallerClass != b.CallerClass {
			return a.CallerClass < b.CallerClass
		}
		if a.CallerMethod != b.CallerMethod {
			return a.CallerMethod < b.CallerMethod
		}
		return a.Line < b.Line
	})
	return res, nil
}

// discover walks root collecting .class files (and archives when enabled).
// The list is sorted so dispatch order is deterministic for a fixed tree.
// Unreadable directories become warnings, not failures.
func discover(root string, includeJars bool) ([]string, []Warning) {
	var files []string
	var warnings []Warning
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			warnings = append(warnings, Warning{Path: path, Message: err.Error()})
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".class") || (includeJars && jar.IsArchive(path)) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, warnings
}

// scanOne runs the parse-and-scan pipeline for a single discovered file.
// Every failure is folded into the returned warnings.
func scanOne(path string, target bytecode.Target, log *slog.Logger) fileResult {
	if jar.IsArchive(path) {
		return scanArchive(path, target, log)
	}

	var fr fileResult
	log.Debug("analyzing class file", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		fr.warnings = append(fr.warnings, Warning{Path: path, Message: err.Error()})
		return fr
	}
	fr.calls, fr.warnings = scanClassBytes(path, data, target, log)
	return fr
}

// scanArchive feeds every class member of a jar/war through the pipeline.
// Warnings inside an archive are keyed "<archive>!<entry>".
func scanArchive(path string, target bytecode.Target, log *slog.Logger) fileResult {
	var fr fileResult
	log.Debug("analyzing archive", "path", path)
	entries, entryErrs, err := jar.ReadClasses(path)
	if err != nil {
		fr.warnings = append(fr.warnings, Warning{Path: path, Message: err.Error()})
		return fr
	}
	for _, ee := range entryErrs {
		fr.warnings = append(fr.warnings, Warning{
			Path:    path + "!" + ee.Name,
			Message: ee.Err.Error(),
		})
	}
	for _, e := range entries {
		calls, warns := scanClassBytes(path+"!"+e.Name, e.Data, target, log)
		fr.calls = append(fr.calls, calls...)
		fr.warnings = append(fr.warnings, warns...)
	}
	return fr
}

// scanClassBytes parses one class file image and scans its methods.
func scanClassBytes(path string, data []byte, target bytecode.Target, log *slog.Logger) ([]bytecode.Call, []Warning) {
	f, err := classfile.Parse(data)
	if err != nil {
		return nil, []Warning{{Path: path, Message: err.Error()}}
	}
	if name, err := f.ThisClassName(); err == nil {
		log.Debug("visiting class", "class", name)
	}
	calls, methodWarnings, err := bytecode.ScanClass(f, target)
	if err != nil {
		return nil, []Warning{{Path: path, Message: err.Error()}}
	}
	var warnings []Warning
	for _, mw := range methodWarnings {
		warnings = append(warnings, Warning{
			Path:    path,
			Message: fmt.Sprintf("method %s: %v", mw.Method, mw.Err),
		})
	}
	for _, c := range calls {
		log.Debug("found method call",
			"caller", c.CallerClass+"#"+c.CallerMethod, "line", c.Line)
	}
	return calls, warnings
}
