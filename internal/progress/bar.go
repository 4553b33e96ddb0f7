package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Bar renders one terminal progress bar per running transfer. A bar is
// completed only by its transfer's successful final update; failed or
// abandoned transfers keep the state they reached.
type Bar struct {
	out io.Writer

	mu   sync.Mutex
	bars map[uint64]*progressbar.ProgressBar
}

// NewBar creates a bar reporter writing to out (default os.Stderr).
func NewBar(out io.Writer) *Bar {
	if out == nil {
		out = os.Stderr
	}
	return &Bar{out: out, bars: make(map[uint64]*progressbar.ProgressBar)}
}

// Report moves the bar of the transfer u belongs to.
func (b *Bar) Report(u Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bar, ok := b.bars[u.ID]
	if !ok {
		bar = b.newBar(u)
		b.bars[u.ID] = bar
	}
	_ = bar.Set64(u.Transferred)

	if !u.Done {
		return
	}
	delete(b.bars, u.ID)
	if u.Err == nil {
		_ = bar.Finish()
		return
	}
	b.exit(bar)
}

// Close stops every bar that is still running without completing it.
func (b *Bar) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, bar := range b.bars {
		b.exit(bar)
		delete(b.bars, id)
	}
}

func (b *Bar) newBar(u Update) *progressbar.ProgressBar {
	return progressbar.NewOptions64(u.Total,
		progressbar.OptionSetWriter(b.out),
		progressbar.OptionSetDescription(u.Label),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(b.out) }),
	)
}

func (b *Bar) exit(bar *progressbar.ProgressBar) {
	_ = bar.Exit()
	fmt.Fprintln(b.out)
}
