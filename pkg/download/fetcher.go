package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ligustah/rangeget/internal/bufpool"
	rghttp "github.com/ligustah/rangeget/internal/http"
	"github.com/ligustah/rangeget/pkg/location"
)

// Payload is a piece of a range response tagged with its absolute offset in
// the destination file.
type Payload struct {
	Offset int64
	Data   []byte
}

// fetchState is where a range is in its request lifecycle.
type fetchState int

const (
	stateRequesting fetchState = iota
	stateRetrying
	stateStreaming
	stateAborted
)

func (s fetchState) String() string {
	switch s {
	case stateRequesting:
		return "requesting"
	case stateRetrying:
		return "retrying"
	case stateStreaming:
		return "streaming"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// nextState decides what follows a range request after attempts requests in
// total. accepted reports whether the response was a 206 for the range asked.
func nextState(accepted bool, attempts, maxRetries int) fetchState {
	switch {
	case accepted:
		return stateStreaming
	case attempts >= maxRetries:
		return stateAborted
	default:
		return stateRetrying
	}
}

// fetcher turns byte ranges into payloads.
type fetcher struct {
	id         int
	client     *rghttp.Client
	provider   *location.Provider
	size       int64
	pool       *bufpool.Pool
	maxRetries int
	logger     *slog.Logger
	metrics    Metrics
}

// run fetches ranges until the range queue is closed and drained.
func (f *fetcher) run(ctx context.Context, ranges *Queue[ByteRange], data *Queue[Payload]) error {
	for {
		r, err := ranges.Get(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		err = f.fetchRange(ctx, r, data)
		ranges.Done()
		if err != nil {
			return err
		}
	}
}

// fetchRange downloads one range, re-resolving the signed URL on every
// attempt so a retry never reuses an expired link.
func (f *fetcher) fetchRange(ctx context.Context, r ByteRange, data *Queue[Payload]) error {
	var (
		state      = stateRequesting
		attempts   int
		lastStatus int
		resp       *rghttp.RangeResponse
	)

	for {
		switch state {
		case stateRequesting, stateRetrying:
			info, err := f.provider.Info(ctx)
			if err != nil {
				return err
			}

			resp, err = f.client.GetRange(ctx, info.URL, r.Start, r.End-1)
			if err != nil {
				return fmt.Errorf("range %s: %w", r, err)
			}
			attempts++
			lastStatus = resp.StatusCode
			f.metrics.ObserveRangeAttempt(resp.StatusCode)

			accepted := resp.StatusCode == http.StatusPartialContent
			if accepted && !startsAt(resp.ContentRange, r.Start) {
				f.logger.Warn("range response for a different offset",
					"worker", f.id,
					"range", r.String(),
					"content_range", resp.ContentRange,
				)
				accepted = false
			}
			state = nextState(accepted, attempts, f.maxRetries)
			if state != stateStreaming {
				discard(resp.Body)
			}
			if state == stateRetrying {
				f.metrics.ObserveRetry()
				f.logger.Debug("retrying range",
					"worker", f.id,
					"range", r.String(),
					"status", resp.StatusCode,
					"attempt", attempts,
				)
			}

		case stateStreaming:
			err := f.stream(ctx, r, resp.Body, data)
			resp.Body.Close()
			return err

		case stateAborted:
			f.logger.Warn("range aborted",
				"worker", f.id,
				"range", r.String(),
				"status", lastStatus,
				"attempts", attempts,
			)
			return &TransferAbortedError{Range: r, Attempts: attempts, LastStatus: lastStatus}
		}
	}
}

// stream splits body into payloads. Each payload's offset is the running
// cursor, advanced by exactly the bytes read, so offsets stay contiguous no
// matter how the transport chunks the body.
func (f *fetcher) stream(ctx context.Context, r ByteRange, body io.Reader, data *Queue[Payload]) error {
	want := r.Clamp(f.size)
	body = io.LimitReader(body, want.Len())
	cursor := r.Start

	for {
		buf := f.pool.Get()
		n, err := io.ReadFull(body, buf)
		if n > 0 {
			if perr := data.Put(ctx, Payload{Offset: cursor, Data: buf[:n]}); perr != nil {
				f.pool.Put(buf)
				return perr
			}
			cursor += int64(n)
		} else {
			f.pool.Put(buf)
		}

		switch err {
		case nil:
			continue
		case io.EOF, io.ErrUnexpectedEOF:
			if cursor != want.End {
				return fmt.Errorf("range %s: %w: body ended at offset %d", r, ErrSizeMismatch, cursor)
			}
			return nil
		default:
			return fmt.Errorf("range %s: read at offset %d: %w", r, cursor, err)
		}
	}
}

// startsAt reports whether a Content-Range header describes bytes beginning
// at offset.
func startsAt(contentRange string, offset int64) bool {
	start, _, _, err := rghttp.ParseContentRange(contentRange)
	return err == nil && start == offset
}

// discard drains and closes a body so the connection can be reused.
func discard(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	body.Close()
}
