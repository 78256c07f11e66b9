// Package poll blocks until a directory contains a file with an accepted
// suffix, re-checking on a fixed interval.
package poll

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/splatpipe/splatpipe/internal/errors"
	"github.com/splatpipe/splatpipe/internal/logging"
	"github.com/splatpipe/splatpipe/internal/timeutil"

	"github.com/fsnotify/fsnotify"
)

// DefaultInterval is used when Options.Interval is not positive.
const DefaultInterval = 5 * time.Second

// ErrTimeout is wrapped in the IOError returned when Options.Timeout elapses.
var ErrTimeout = apperrors.New("timed out waiting for file")

// Options configures a Poller.
type Options struct {
	// Interval is the delay between checks.
	Interval time.Duration
	// Timeout bounds a single Await call. 0 waits indefinitely.
	Timeout time.Duration
	// SettleChecks is the number of consecutive checks a local match must
	// keep the same non-zero size before it is returned. 0 returns at once.
	SettleChecks int
	// WatchEvents re-checks early when a watched directory changes.
	WatchEvents bool
	// Clock drives the waits. Defaults to the real clock.
	Clock timeutil.Clock
	// Logger receives progress. Defaults to a no-op logger.
	Logger *logging.Logger
}

// Poller waits for files to appear in directories.
type Poller struct {
	interval     time.Duration
	timeout      time.Duration
	settleChecks int
	watchEvents  bool
	clock        timeutil.Clock
	logger       *logging.Logger
}

// New creates a Poller.
func New(opts Options) *Poller {
	p := &Poller{
		interval:     opts.Interval,
		timeout:      opts.Timeout,
		settleChecks: opts.SettleChecks,
		watchEvents:  opts.WatchEvents,
		clock:        opts.Clock,
		logger:       opts.Logger,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.clock == nil {
		p.clock = timeutil.RealClock{}
	}
	if p.logger == nil {
		p.logger = logging.NopLogger()
	}
	return p
}

// Interval returns the delay between checks.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Await lists the directory until an entry whose name ends with one of
// suffixes (case-insensitively) appears, and returns the first such entry in
// listing order. Absence is never an error: Await keeps waiting until ctx is
// done, in which case ctx.Err() is returned, or until the optional timeout
// elapses. Listing failures other than a missing directory are returned.
func (p *Poller) Await(ctx context.Context, lister Lister, suffixes []string) (Entry, error) {
	logger := p.logger.With("dir", lister.Dir(), "suffixes", strings.Join(suffixes, ","))
	logger.Info("waiting for file", "interval", p.interval.String())

	events, stop := p.watch(lister, logger)
	defer stop()

	start := p.clock.Now()
	settle := newSettleTracker(p.settleChecks)
	checks := 0

	for {
		if err := ctx.Err(); err != nil {
			return Entry{}, err
		}

		entries, err := lister.List(ctx)
		if err != nil {
			return Entry{}, err
		}
		checks++

		if entry, ok := firstMatch(entries, suffixes); ok {
			if settle.ready(entry) {
				logger.Info("file detected", "path", entry.Path, "checks", checks)
				return entry, nil
			}
			logger.Debug("file still changing", "path", entry.Path, "size", entry.Size)
		}

		wait := p.interval
		if p.timeout > 0 {
			remaining := p.timeout - p.clock.Since(start)
			if remaining <= 0 {
				return Entry{}, apperrors.NewIOError("await", lister.Dir(), ErrTimeout)
			}
			wait = min(wait, remaining)
		}

		timer := p.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Entry{}, ctx.Err()
		case <-timer.C():
		case event := <-events:
			timer.Stop()
			logger.Debug("directory changed", "event", event.String())
		}
	}
}

// watch subscribes to file system events for local listers when enabled.
// The returned channel is nil (blocks forever) when watching is off or fails.
func (p *Poller) watch(lister Lister, logger *logging.Logger) (<-chan fsnotify.Event, func()) {
	nop := func() {}
	if !p.watchEvents {
		return nil, nop
	}
	w, ok := lister.(Watchable)
	if !ok {
		return nil, nop
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("file watching unavailable, polling only", "error", err.Error())
		return nil, nop
	}
	if err := watcher.Add(w.WatchDir()); err != nil {
		// The directory may not exist yet; the interval check still covers it
		logger.Warn("cannot watch directory, polling only", "error", err.Error())
		watcher.Close()
		return nil, nop
	}

	events := make(chan fsnotify.Event, 1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case events <- event:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error", "error", err.Error())
			}
		}
	}()

	return events, func() {
		close(done)
		watcher.Close()
	}
}

// HasSuffix reports whether name ends with one of suffixes, ignoring case.
func HasSuffix(name string, suffixes []string) bool {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func firstMatch(entries []Entry, suffixes []string) (Entry, bool) {
	for _, e := range entries {
		if HasSuffix(e.Name, suffixes) {
			return e, true
		}
	}
	return Entry{}, false
}

// settleTracker decides when a matched file has stopped growing.
type settleTracker struct {
	required int
	path     string
	size     int64
	stable   int
}

func newSettleTracker(required int) *settleTracker {
	return &settleTracker{required: required, size: -1}
}

func (s *settleTracker) ready(e Entry) bool {
	// Foreign listings carry no size
	if s.required <= 0 || e.Size < 0 {
		return true
	}
	if e.Path != s.path || e.Size != s.size || e.Size == 0 {
		s.path, s.size, s.stable = e.Path, e.Size, 0
		return false
	}
	s.stable++
	return s.stable >= s.required
}
