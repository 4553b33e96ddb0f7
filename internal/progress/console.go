package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ConsoleOptions configures the console reporter.
type ConsoleOptions struct {
	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// Workers is the number of fetch workers (for display).
	Workers int

	// PartSize is the size of each range request (for display).
	PartSize int64
}

// Console periodically prints human-readable progress lines. Transfers are
// tracked by Update.ID, so concurrent transfers and repeated labels are
// counted separately.
type Console struct {
	opts ConsoleOptions

	mu         sync.Mutex
	transfers  map[uint64]*consoleTransfer
	completed  int
	failed     int
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	stopCh     chan struct{}
	doneCh     chan struct{}
	stopped    bool
}

type consoleTransfer struct {
	label       string
	transferred int64
	total       int64
	done        bool
}

// NewConsole creates a new console reporter.
func NewConsole(opts ConsoleOptions) *Console {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Console{
		opts:      opts,
		transfers: make(map[uint64]*consoleTransfer),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (c *Console) Start() {
	c.mu.Lock()
	c.startTime = time.Now()
	c.lastUpdate = c.startTime
	c.mu.Unlock()

	fmt.Fprintf(c.opts.Output, "[rangeget] Parts: %s | Workers: %d\n",
		FormatBytes(c.opts.PartSize),
		c.opts.Workers,
	)

	go c.updateLoop()
}

// Stop stops the reporter and prints the final status.
func (c *Console) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	close(c.stopCh)
	<-c.doneCh
}

// Report records the latest state of a transfer.
func (c *Console) Report(u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.transfers[u.ID]
	if !ok {
		t = &consoleTransfer{label: u.Label}
		c.transfers[u.ID] = t
	}
	if t.done {
		return
	}
	t.transferred = u.Transferred
	t.total = u.Total

	if u.Done {
		t.done = true
		if u.Err != nil {
			c.failed++
		} else {
			c.completed++
		}
	}
}

// updateLoop periodically updates the progress display.
func (c *Console) updateLoop() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			c.printFinalStatus()
			return
		case <-ticker.C:
			c.printProgress()
		}
	}
}

// printProgress outputs the combined progress of the running transfers.
func (c *Console) printProgress() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		all, transferred, total int64
		active                  int
		label                   string
	)
	for _, t := range c.transfers {
		all += t.transferred
		if t.done {
			continue
		}
		active++
		label = t.label
		transferred += t.transferred
		total += t.total
	}

	now := time.Now()
	elapsed := now.Sub(c.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(all-c.lastBytes) / elapsed

	c.lastUpdate = now
	c.lastBytes = all

	if active == 0 {
		return
	}
	if active > 1 {
		label = fmt.Sprintf("%d files", active)
	}

	var percent float64
	eta := "calculating..."
	if total > 0 {
		percent = float64(transferred) / float64(total) * 100
		if speed > 0 {
			remaining := float64(total - transferred)
			eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
		}
	}

	fmt.Fprintf(c.opts.Output, "\r[rangeget] %s: %.1f%% | %s / %s | Speed: %s/s | ETA: %s    ",
		label,
		percent,
		FormatBytes(transferred),
		FormatBytes(total),
		FormatBytes(int64(speed)),
		eta,
	)
}

// printFinalStatus outputs the final status.
func (c *Console) printFinalStatus() {
	c.mu.Lock()
	defer c.mu.Unlock()

	duration := time.Since(c.startTime)
	status := fmt.Sprintf("Files: %d", c.completed)
	if c.failed > 0 {
		status += fmt.Sprintf(" | Failed: %d", c.failed)
	}
	fmt.Fprintf(c.opts.Output, "\n[rangeget] %s | Total time: %s\n",
		status,
		formatDuration(duration),
	)
}
