package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressBar prints a single updating transfer line.
type ProgressBar struct {
	out      io.Writer
	now      func() time.Time
	interval time.Duration

	mu      sync.Mutex
	title   string
	total   int64
	started time.Time
	last    time.Time
	drawn   bool
}

// NewProgressBar creates a progress bar that redraws at most every 200ms.
func NewProgressBar(out io.Writer) *ProgressBar {
	return &ProgressBar{out: out, now: time.Now, interval: 200 * time.Millisecond}
}

// Start begins a new transfer.
func (p *ProgressBar) Start(title string, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.title = shorten(title, 40)
	p.total = total
	p.started = p.now()
	p.last = time.Time{}
	p.drawn = false
	fmt.Fprintf(p.out, "%s (%s)\n", p.title, humanize.Bytes(uint64(max(total, 0))))
}

// Update redraws the line; calls closer together than the interval are dropped
// except the final one.
func (p *ProgressBar) Update(done, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if total <= 0 {
		total = p.total
	}
	now := p.now()
	if done < total && !p.last.IsZero() && now.Sub(p.last) < p.interval {
		return
	}
	p.last = now
	p.drawn = true
	fmt.Fprintf(p.out, "\r%s", progressLine(done, total, now.Sub(p.started)))
}

// Finish ends the line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.out)
	}
	p.drawn = false
}

func progressLine(done, total int64, elapsed time.Duration) string {
	const width = 30

	var pct float64
	if total > 0 {
		pct = float64(done) / float64(total)
	}
	pct = min(max(pct, 0), 1)
	filled := int(pct * width)

	speed := ""
	if secs := elapsed.Seconds(); secs > 0 {
		speed = humanize.Bytes(uint64(float64(done)/secs)) + "/s"
	}

	return fmt.Sprintf("[%s%s] %3.0f%% %s / %s %s",
		strings.Repeat("=", filled),
		strings.Repeat(" ", width-filled),
		pct*100,
		humanize.Bytes(uint64(max(done, 0))),
		humanize.Bytes(uint64(max(total, 0))),
		speed,
	)
}

// shorten cuts s to n characters, marking the cut with "...".
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
