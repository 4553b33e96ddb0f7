package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ligustah/rangeget/internal/logging"
)

// ErrSignedURLUnavailable is returned when the resolver cannot produce a
// download location.
var ErrSignedURLUnavailable = errors.New("location: signed URL unavailable")

// DefaultExpiryBuffer is how long before expiry a cached URL is refreshed.
const DefaultExpiryBuffer = 5 * time.Second

// Target identifies the remote object a download location is requested for.
type Target struct {
	FileHandleID string
	ObjectID     string
	ObjectType   string
}

// Location is what a Resolver hands back: the object's file name and a
// (usually time-limited) URL to fetch it from.
type Location struct {
	FileName string
	URL      string
}

// Resolver looks up download locations. It is the only way the engine talks
// to the repository's metadata service.
type Resolver interface {
	ResolveDownloadLocation(ctx context.Context, target Target) (Location, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, target Target) (Location, error)

// ResolveDownloadLocation calls f.
func (f ResolverFunc) ResolveDownloadLocation(ctx context.Context, target Target) (Location, error) {
	return f(ctx, target)
}

// Info is a resolved location together with its expiration.
// A zero Expiration means the URL does not expire.
type Info struct {
	FileName   string
	URL        string
	Expiration time.Time
}

// State is the lifecycle state of a Provider's cached location.
type State int32

const (
	// StateExpired means the cached URL is missing or within the expiry buffer.
	StateExpired State = iota
	// StateValid means the cached URL can be handed out.
	StateValid
	// StateRefreshing means a resolver call is in flight.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateExpired:
		return "expired"
	case StateValid:
		return "valid"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Metrics observes refresh outcomes. A nil Metrics is allowed.
type Metrics interface {
	ObserveRefresh(err error)
}

// Options configures a Provider.
type Options struct {
	// ExpiryBuffer refreshes URLs this long before they expire.
	// Default: 5s
	ExpiryBuffer time.Duration

	// Logger receives refresh events. Nil discards.
	Logger *slog.Logger

	// Metrics is optional.
	Metrics Metrics

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Provider caches the signed location of one object and refreshes it through
// its Resolver shortly before it expires. Safe for concurrent use: the check
// and the refresh happen under one lock, so concurrent callers never trigger
// duplicate refreshes.
type Provider struct {
	resolver Resolver
	target   Target
	buffer   time.Duration
	now      func() time.Time
	logger   *slog.Logger
	metrics  Metrics

	mu        sync.Mutex
	info      Info
	state     atomic.Int32
	refreshes atomic.Int64
}

// NewProvider creates a Provider and resolves the initial location.
func NewProvider(ctx context.Context, resolver Resolver, target Target, opts Options) (*Provider, error) {
	if opts.ExpiryBuffer <= 0 {
		opts.ExpiryBuffer = DefaultExpiryBuffer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	p := &Provider{
		resolver: resolver,
		target:   target,
		buffer:   opts.ExpiryBuffer,
		now:      opts.Now,
		logger:   logging.OrDiscard(opts.Logger),
		metrics:  opts.Metrics,
	}
	p.state.Store(int32(StateExpired))

	if _, err := p.Info(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Info returns a location that is not expired at the moment of return,
// refreshing it first when needed.
func (p *Provider) Info(ctx context.Context) (Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.evaluate(p.now())
	p.state.Store(int32(state))
	if state == StateValid {
		return p.info, nil
	}

	p.state.Store(int32(StateRefreshing))
	info, err := p.refresh(ctx)
	if p.metrics != nil {
		p.metrics.ObserveRefresh(err)
	}
	if err != nil {
		p.state.Store(int32(StateExpired))
		return Info{}, err
	}

	p.info = info
	p.state.Store(int32(StateValid))
	return info, nil
}

// State reports the current state without triggering a refresh.
func (p *Provider) State() State {
	return State(p.state.Load())
}

// Refreshes returns how many times the resolver was called.
func (p *Provider) Refreshes() int64 {
	return p.refreshes.Load()
}

// Target returns the object this provider serves.
func (p *Provider) Target() Target {
	return p.target
}

// evaluate must be called with mu held.
func (p *Provider) evaluate(now time.Time) State {
	if p.info.URL == "" {
		return StateExpired
	}
	if p.info.Expiration.IsZero() {
		return StateValid
	}
	if !now.Add(p.buffer).Before(p.info.Expiration) {
		return StateExpired
	}
	return StateValid
}

func (p *Provider) refresh(ctx context.Context) (Info, error) {
	p.refreshes.Add(1)

	loc, err := p.resolver.ResolveDownloadLocation(ctx, p.target)
	if err != nil {
		return Info{}, fmt.Errorf("%w: file handle %s: %w", ErrSignedURLUnavailable, p.target.FileHandleID, err)
	}
	if loc.URL == "" {
		return Info{}, fmt.Errorf("%w: file handle %s: resolver returned no URL", ErrSignedURLUnavailable, p.target.FileHandleID)
	}

	expiration, _ := ParseExpiry(loc.URL)
	p.logger.Debug("resolved download location",
		"file_handle_id", p.target.FileHandleID,
		"file_name", loc.FileName,
		"expires", expiration,
	)

	return Info{
		FileName:   loc.FileName,
		URL:        loc.URL,
		Expiration: expiration,
	}, nil
}
