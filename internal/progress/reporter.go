// Package progress reports the advance of long CLI operations such as
// bulk seeding.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter provides progress feedback for a batch of items.
type Reporter interface {
	Start(total int, description string)
	Increment()
	Finish()
}

// NewReporter returns a TerminalReporter on an interactive terminal, or a
// LineReporter writing to stderr when the CI environment variable is set.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &LineReporter{Out: os.Stderr}
	}
	return &TerminalReporter{}
}

// TerminalReporter displays a progress bar in the terminal.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int, description string) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Increment() {
	if r.bar != nil {
		_ = r.bar.Add(1)
	}
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// LineReporter prints one line per item, suitable for CI logs.
type LineReporter struct {
	Out         io.Writer
	total       int
	current     int
	description string
}

func (r *LineReporter) Start(total int, description string) {
	r.total = total
	r.current = 0
	r.description = description
	fmt.Fprintf(r.Out, "%s: %d registros\n", description, total)
}

func (r *LineReporter) Increment() {
	r.current++
	fmt.Fprintf(r.Out, "[%d/%d] %s\n", r.current, r.total, r.description)
}

func (r *LineReporter) Finish() {
	fmt.Fprintf(r.Out, "%s: concluído\n", r.description)
}
