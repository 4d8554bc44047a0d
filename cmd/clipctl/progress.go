package main

import (
	"os"
	"sync"

	"github.com/cheggaaa/pb/v3"
)

const progressTemplate = `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{etime . }}`

// progressTracker renders scheduler progress as a file counter. Each batch
// restarts the bar with its own total.
type progressTracker struct {
	mu    sync.Mutex
	quiet bool
	bar   *pb.ProgressBar
	total int
}

func newProgressTracker(quiet bool) *progressTracker {
	return &progressTracker{quiet: quiet}
}

// Update is a worker.ProgressFunc.
func (p *progressTracker) Update(done, total int) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || total != p.total || done < int(p.bar.Current()) {
		if p.bar != nil {
			p.bar.Finish()
		}
		p.bar = pb.ProgressBarTemplate(progressTemplate).New(total)
		p.bar.SetWriter(os.Stderr)
		p.bar.Set("prefix", "Downloading: ")
		p.bar.Start()
		p.total = total
	}
	p.bar.SetCurrent(int64(done))
}

// Finish closes the current bar.
func (p *progressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}
