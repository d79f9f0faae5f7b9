package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// cliProgress wraps a schollz/progressbar bar for the byte-granularity
// progress callbacks the transfer, upload, and sync engines emit.
type cliProgress struct {
	bar *progressbar.ProgressBar
}

// newCLIProgress starts a bar with the given total and description.
// Quiet mode and non-terminal stderr (piped output, CI logs) both render
// to io.Discard: a redrawing bar corrupts anything that isn't a real tty.
func newCLIProgress(total int64, description string) *cliProgress {
	var writer io.Writer = os.Stderr
	if flagQuiet || !isatty.IsTerminal(os.Stderr.Fd()) {
		writer = io.Discard
	}

	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(writer),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() { fmt.Fprint(writer, "\n") }),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &cliProgress{bar: bar}
}

func (p *cliProgress) set(current int64) {
	_ = p.bar.Set64(current)
}

func (p *cliProgress) finish() {
	_ = p.bar.Finish()
}
