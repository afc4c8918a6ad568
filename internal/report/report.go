// Package report renders a scan result to the tool's text and JSON output
// contracts.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"jmf/internal/bytecode"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "txt"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name from the command line.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (want txt or json)", s)
	}
}

// Call is one matched invocation in the output model. LineNumber is nil when
// the call site has no covering LineNumberTable entry.
type Call struct {
	ClassName  string `json:"class_name"`
	MethodName string `json:"method_name"`
	LineNumber *int   `json:"line_number"`
}

// Result is the complete output of one scan.
type Result struct {
	Target string `json:"target"`
	Calls  []Call `json:"calls"`
}

// New builds a Result for the given target from scanner matches.
func New(targetClass, targetMethod string, calls []bytecode.Call) *Result {
	r := &Result{
		Target: targetClass + "#" + targetMethod,
		Calls:  make([]Call, 0, len(calls)),
	}
	for _, c := range calls {
		out := Call{ClassName: c.CallerClass, MethodName: c.CallerMethod}
		if c.Line >= 0 {
			line := c.Line
			out.LineNumber = &line
		}
		r.Calls = append(r.Calls, out)
	}
	return r
}

// Text renders the result as plain text: the target on the first line, then
// one call per line, or "No results" when nothing matched.
func (r *Result) Text() string {
	var b strings.Builder
	b.WriteString(r.Target)
	if len(r.Calls) == 0 {
		b.WriteString("\nNo results")
		return b.String()
	}
	for _, c := range r.Calls {
		fmt.Fprintf(&b, "\n - %s#%s", c.ClassName, c.MethodName)
		if c.LineNumber != nil {
			fmt.Fprintf(&b, " (L%d)", *c.LineNumber)
		}
	}
	return b.String()
}

// JSON renders the result as an indented JSON object with a nullable
// line_number per call.
func (r *Result) JSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: encode: %w", err)
	}
	return string(data), nil
}

// Render returns the result in the requested format.
func (r *Result) Render(f Format) (string, error) {
	switch f {
	case FormatJSON:
		return r.JSON()
	default:
		return r.Text(), nil
	}
}
