package progress

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1024 * 1024, "1.0 MiB"},
		{256 * 1024 * 1024, "256 MiB"},
		{1024 * 1024 * 1024, "1.0 GiB"},
		{1024 * 1024 * 1024 * 1024, "1.0 TiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatBytes(tt.input), "FormatBytes(%d)", tt.input)
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"100", 100},
		{"100B", 100},
		{"1KiB", 1024},
		{"1.5KiB", 1536},
		{"8MiB", 8 * 1024 * 1024},
		{"16 KiB", 16 * 1024},
		{"1GiB", 1024 * 1024 * 1024},
		{"1KB", 1000},
		{"1MB", 1000 * 1000},
	}

	for _, tt := range tests {
		got, err := ParseBytes(tt.input)
		require.NoError(t, err, "ParseBytes(%q)", tt.input)
		assert.Equal(t, tt.expected, got, "ParseBytes(%q)", tt.input)
	}
}

func TestParseBytesInvalid(t *testing.T) {
	_, err := ParseBytes("invalid")
	assert.Error(t, err)
}

func TestTrackerReportsEveryAdd(t *testing.T) {
	var got []Update
	reporter := ReporterFunc(func(u Update) { got = append(got, u) })

	tracker := NewTracker(100, "file.bin", reporter)
	base := tracker.start
	tracker.now = func() time.Time { return base.Add(2 * time.Second) }

	tracker.Add(40)
	tracker.Add(0)
	tracker.Add(-5)
	tracker.Add(60)
	tracker.Finish(nil)
	tracker.Add(10)
	tracker.Finish(errors.New("late"))

	id := tracker.ID()
	require.Len(t, got, 3)
	assert.Equal(t, Update{ID: id, Label: "file.bin", Transferred: 40, Total: 100, Elapsed: 2 * time.Second}, got[0])
	assert.Equal(t, Update{ID: id, Label: "file.bin", Transferred: 100, Total: 100, Elapsed: 2 * time.Second}, got[1])
	assert.Equal(t, Update{ID: id, Label: "file.bin", Transferred: 100, Total: 100, Elapsed: 2 * time.Second, Done: true}, got[2])
	assert.Equal(t, int64(100), tracker.Transferred())
	assert.Equal(t, int64(100), tracker.Total())
	assert.Equal(t, 2*time.Second, tracker.Elapsed())
}

func TestTrackerIDsAreUnique(t *testing.T) {
	a := NewTracker(1, "same.bin", nil)
	b := NewTracker(1, "same.bin", nil)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestTrackerConcurrentAdds(t *testing.T) {
	tracker := NewTracker(1000, "x", nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), tracker.Transferred())
}

func TestMulti(t *testing.T) {
	var a, b int64
	r := Multi(
		ReporterFunc(func(u Update) { a = u.Transferred }),
		nil,
		ReporterFunc(func(u Update) { b = u.Transferred }),
	)
	r.Report(Update{Transferred: 7, Total: 10, Label: "f"})
	assert.Equal(t, int64(7), a)
	assert.Equal(t, int64(7), b)
}

// interleave reports two transfers alternately, the way parallel downloads
// share one reporter.
func interleave(a, b *Tracker, steps int, step int64) {
	for range steps {
		a.Add(step)
		b.Add(step)
	}
}

func TestConsoleStartStop(t *testing.T) {
	var buf safeBuffer
	console := NewConsole(ConsoleOptions{
		Output:         &buf,
		UpdateInterval: 10 * time.Millisecond,
		Workers:        4,
		PartSize:       8 * 1024 * 1024,
	})

	console.Start()
	a := NewTracker(1024, "a.bin", console)
	a.Add(512)
	time.Sleep(50 * time.Millisecond)
	a.Add(512)
	a.Finish(nil)
	b := NewTracker(20, "b.bin", console)
	b.Add(10)
	b.Finish(nil)
	console.Stop()
	console.Stop()

	out := buf.String()
	assert.Contains(t, out, "Workers: 4")
	assert.Contains(t, out, "a.bin")
	assert.Contains(t, out, "Files: 2")
}

func TestConsoleCountsTransfersNotLabels(t *testing.T) {
	var buf safeBuffer
	console := NewConsole(ConsoleOptions{Output: &buf, UpdateInterval: time.Hour})
	console.Start()

	a := NewTracker(300, "a.bin", console)
	b := NewTracker(300, "b.bin", console)
	interleave(a, b, 3, 100)

	// Same label, different transfer.
	again := NewTracker(10, "a.bin", console)
	again.Add(10)

	a.Finish(nil)
	b.Finish(errors.New("aborted"))
	again.Finish(nil)
	console.Stop()

	assert.Contains(t, buf.String(), "Files: 2 | Failed: 1")
}

func TestConsoleCombinesConcurrentTransfers(t *testing.T) {
	var buf safeBuffer
	console := NewConsole(ConsoleOptions{Output: &buf})

	a := NewTracker(100, "a.bin", console)
	b := NewTracker(300, "b.bin", console)
	interleave(a, b, 1, 50)

	console.printProgress()
	assert.Contains(t, buf.String(), "2 files: 25.0%")

	a.Add(50)
	a.Finish(nil)
	console.printProgress()
	assert.Contains(t, buf.String(), "b.bin: 16.7%")
}

func TestBarKeepsOneBarPerTransfer(t *testing.T) {
	var buf safeBuffer
	bar := NewBar(&buf)

	a := NewTracker(100, "a.bin", bar)
	b := NewTracker(100, "b.bin", bar)
	a.Add(10)
	b.Add(10)
	a.Add(10)

	bar.mu.Lock()
	assert.Len(t, bar.bars, 2)
	bar.mu.Unlock()

	bar.Close()
	assert.NotContains(t, buf.String(), "100%", "unfinished transfers drawn as complete")
}

func TestBarFinishesOnlyOnSuccess(t *testing.T) {
	var buf safeBuffer
	bar := NewBar(&buf)

	ok := NewTracker(100, "ok.bin", bar)
	failed := NewTracker(100, "failed.bin", bar)
	ok.Add(100)
	failed.Add(40)
	ok.Finish(nil)
	failed.Finish(errors.New("aborted"))

	bar.mu.Lock()
	assert.Empty(t, bar.bars)
	bar.mu.Unlock()

	assert.NotContains(t, buf.String(), "failed.bin 100%")
	bar.Close()
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
