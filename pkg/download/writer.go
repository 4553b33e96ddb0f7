package download

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ligustah/rangeget/internal/bufpool"
	"github.com/ligustah/rangeget/internal/progress"
)

// writer is the only owner of the destination file.
type writer struct {
	path    string
	size    int64
	tracker *progress.Tracker
	pool    *bufpool.Pool
	metrics Metrics
}

// writeStats summarises what the writer did.
type writeStats struct {
	Payloads int
	Bytes    int64
}

// run writes payloads at their offsets until the data queue is closed and
// drained. Arrival order does not matter.
func (w *writer) run(ctx context.Context, data *Queue[Payload]) (stats writeStats, err error) {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return stats, fmt.Errorf("open destination: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close destination: %w", cerr)
		}
	}()

	// Pre-allocate
	if w.size > 0 {
		if err := f.Truncate(w.size); err != nil {
			return stats, fmt.Errorf("allocate destination: %w", err)
		}
	}

	for {
		p, err := data.Get(ctx)
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}

		err = w.write(f, p)
		n := len(p.Data)
		w.pool.Put(p.Data)
		data.Done()
		if err != nil {
			return stats, err
		}

		stats.Payloads++
		stats.Bytes += int64(n)
		w.tracker.Add(int64(n))
		w.metrics.AddBytes(int64(n))
	}
}

func (w *writer) write(f *os.File, p Payload) error {
	end := p.Offset + int64(len(p.Data))
	if p.Offset < 0 || end > w.size {
		return fmt.Errorf("payload [%d,%d) outside file of %d bytes", p.Offset, end, w.size)
	}
	if _, err := f.WriteAt(p.Data, p.Offset); err != nil {
		return fmt.Errorf("write at offset %d: %w", p.Offset, err)
	}
	return nil
}
