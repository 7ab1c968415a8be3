package main

import (
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"
)

// barProgress shows per-planet search progress on a terminal. A failed
// terminal write is logged and the search carries on.
type barProgress struct {
	w      io.Writer
	logger *slog.Logger
	bar    *progressbar.ProgressBar
}

func (p *barProgress) Start(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("searching"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *barProgress) Step(body string) {
	p.bar.Describe(body)
	if err := p.bar.Add(1); err != nil {
		p.logger.Debug("progress bar update failed", "body", body, "error", err)
	}
}

func (p *barProgress) Finish() {
	if p.bar == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		p.logger.Debug("progress bar finish failed", "error", err)
	}
}
