// Package watcher detects changes to save files under a set of directory roots.
//
// Raw notifications are filtered by extension, debounced per path and delayed on creation so
// an emulator has time to finish writing. The resulting events are delivered on a bounded
// channel; when the consumer falls behind, delivery blocks.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/retrosync/retrosync/internal/savefile"
	"github.com/retrosync/retrosync/internal/utils"
	"github.com/rjeczalik/notify"
)

const (
	DefaultDebounce      = 2 * time.Second
	DefaultCreateDelay   = 500 * time.Millisecond
	DefaultQueueSize     = 64
	DefaultIgnoreTimeout = 5 * time.Second

	cleanupInterval = 15 * time.Second
)

var (
	ErrPathNotFound   = errors.New("watcher: path not found")
	ErrAlreadyStarted = errors.New("watcher: already started")
	ErrStopped        = errors.New("watcher: stopped")
)

var watchEvents = []notify.Event{notify.Create, notify.Write, notify.Remove, notify.Rename}

type Option func(*Detector)

func WithDebounce(d time.Duration) Option {
	return func(w *Detector) { w.debounce = d }
}

func WithCreateDelay(d time.Duration) Option {
	return func(w *Detector) { w.createDelay = d }
}

func WithQueueSize(n int) Option {
	return func(w *Detector) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// WithMatcher replaces the save file extension check.
func WithMatcher(match func(path string) bool) Option {
	return func(w *Detector) { w.match = match }
}

func WithClock(now func() time.Time) Option {
	return func(w *Detector) { w.now = now }
}

type Detector struct {
	debounce    time.Duration
	createDelay time.Duration
	queueSize   int
	match       func(string) bool
	now         func() time.Time

	mu       sync.Mutex
	roots    mapset.Set[string]
	lastSent map[string]time.Time
	pending  map[string]*time.Timer
	raw      chan notify.EventInfo
	started  bool
	stopped  bool

	ignoreMu sync.Mutex
	ignore   map[string]time.Time

	events   chan ChangeEvent
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func New(opts ...Option) *Detector {
	d := &Detector{
		debounce:    DefaultDebounce,
		createDelay: DefaultCreateDelay,
		queueSize:   DefaultQueueSize,
		match:       savefile.IsSaveFile,
		now:         time.Now,
		roots:       mapset.NewThreadUnsafeSet[string](),
		lastSent:    make(map[string]time.Time),
		pending:     make(map[string]*time.Timer),
		ignore:      make(map[string]time.Time),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.events = make(chan ChangeEvent, d.queueSize)
	return d
}

// Events is closed by Stop.
func (d *Detector) Events() <-chan ChangeEvent {
	return d.events
}

// Roots returns the watched roots in no particular order.
func (d *Detector) Roots() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.roots.ToSlice()
}

// AddWatch begins recursive monitoring of a directory. Adding a root twice is a no-op.
func (d *Detector) AddWatch(path string) error {
	root, err := normalizeRoot(path)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrStopped
	}
	if d.roots.Contains(root) {
		return nil
	}
	if d.started {
		if err := notify.Watch(recursive(root), d.raw, watchEvents...); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}
	d.roots.Add(root)
	slog.Info("watcher add", "root", root)
	return nil
}

// RemoveWatch stops delivering events under path. notify cannot drop a single watchpoint from a
// shared channel, so removed roots are filtered out when raw events arrive.
func (d *Detector) RemoveWatch(path string) {
	root, err := utils.ResolvePath(path)
	if err != nil {
		return
	}
	root = utils.RealPath(root)

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.roots.Contains(root) {
		return
	}
	d.roots.Remove(root)
	for p, t := range d.pending {
		if utils.IsUnder(root, p) && !d.underRootLocked(p) {
			d.cancelPendingLocked(p, t)
		}
	}
	for p := range d.lastSent {
		if utils.IsUnder(root, p) {
			delete(d.lastSent, p)
		}
	}
	slog.Info("watcher remove", "root", root)
}

// Start registers every root with notify. Stop is called when ctx is done.
func (d *Detector) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrStopped
	}
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}

	d.raw = make(chan notify.EventInfo, d.queueSize)
	for _, root := range d.roots.ToSlice() {
		if err := notify.Watch(recursive(root), d.raw, watchEvents...); err != nil {
			notify.Stop(d.raw)
			d.mu.Unlock()
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}
	d.started = true
	n := d.roots.Cardinality()
	d.mu.Unlock()

	slog.Info("watcher start", "roots", n, "debounce", d.debounce)

	d.wg.Add(1)
	go d.loop()

	go func() {
		select {
		case <-ctx.Done():
			d.Stop()
		case <-d.done:
		}
	}()
	return nil
}

// Stop releases the notify watch, cancels pending creation timers, waits for in-flight delivery
// and closes the events channel. Safe to call more than once.
func (d *Detector) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		if d.raw != nil {
			notify.Stop(d.raw)
		}
		close(d.done)
		for p, t := range d.pending {
			d.cancelPendingLocked(p, t)
		}
		d.mu.Unlock()

		d.wg.Wait()
		close(d.events)
		slog.Info("watcher stopped")
	})
}

// IgnoreOnce suppresses the next event for path if it arrives within ttl.
func (d *Detector) IgnoreOnce(path string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultIgnoreTimeout
	}
	path = utils.RealPath(path)
	d.ignoreMu.Lock()
	defer d.ignoreMu.Unlock()
	d.ignore[path] = d.now().Add(ttl)
}

func (d *Detector) consumeIgnore(path string, now time.Time) bool {
	d.ignoreMu.Lock()
	defer d.ignoreMu.Unlock()

	expiry, ok := d.ignore[path]
	if !ok {
		return false
	}
	delete(d.ignore, path)
	return !now.After(expiry)
}

func (d *Detector) loop() {
	defer d.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case ei, ok := <-d.raw:
			if !ok {
				return
			}
			d.handle(ei.Path(), ei.Event())
		case <-ticker.C:
			d.prune()
		}
	}
}

func (d *Detector) handle(path string, e notify.Event) {
	kind, ok := kindOf(e)
	if !ok || kind == KindRemove {
		return
	}
	if !d.match(path) {
		return
	}

	d.mu.Lock()
	under := d.underRootLocked(path)
	d.mu.Unlock()
	if !under {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		// gone already, or a rename away from this path
		return
	}

	if kind == KindCreate && d.createDelay > 0 {
		d.scheduleCreate(path)
		return
	}
	d.deliver(path, kind)
}

func (d *Detector) scheduleCreate(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if _, ok := d.pending[path]; ok {
		return
	}

	d.wg.Add(1)
	d.pending[path] = time.AfterFunc(d.createDelay, func() {
		defer d.wg.Done()

		d.mu.Lock()
		if _, ok := d.pending[path]; !ok {
			d.mu.Unlock()
			return
		}
		delete(d.pending, path)
		d.mu.Unlock()

		if _, err := os.Stat(path); err != nil {
			return
		}
		d.deliver(path, KindCreate)
	})
}

// cancelPendingLocked drops a creation timer. A timer that already fired finds itself missing
// from the table and returns.
func (d *Detector) cancelPendingLocked(path string, t *time.Timer) {
	if t.Stop() {
		d.wg.Done()
	}
	delete(d.pending, path)
}

func (d *Detector) deliver(path string, kind Kind) {
	d.mu.Lock()
	if d.stopped || !d.underRootLocked(path) {
		d.mu.Unlock()
		return
	}
	if _, ok := d.pending[path]; ok {
		// absorbed by the pending create
		d.mu.Unlock()
		return
	}
	now := d.now()
	if last, ok := d.lastSent[path]; ok && now.Sub(last) < d.debounce {
		d.mu.Unlock()
		return
	}
	d.lastSent[path] = now
	d.mu.Unlock()

	if d.consumeIgnore(path, now) {
		slog.Debug("watcher ignored", "path", path, "kind", kind)
		return
	}

	ev := ChangeEvent{Path: path, Kind: kind, At: now}
	select {
	case d.events <- ev:
		slog.Debug("watcher", "kind", kind, "path", path)
	case <-d.done:
	}
}

func (d *Detector) underRootLocked(path string) bool {
	found := false
	d.roots.Each(func(root string) bool {
		found = utils.IsUnder(root, path)
		return found
	})
	return found
}

func (d *Detector) prune() {
	now := d.now()

	d.mu.Lock()
	for p, last := range d.lastSent {
		if now.Sub(last) >= d.debounce {
			delete(d.lastSent, p)
		}
	}
	d.mu.Unlock()

	d.ignoreMu.Lock()
	for p, expiry := range d.ignore {
		if now.After(expiry) {
			delete(d.ignore, p)
		}
	}
	d.ignoreMu.Unlock()
}

func normalizeRoot(path string) (string, error) {
	root, err := utils.ResolvePath(path)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrPathNotFound, path)
	}
	// events are reported on the real path, e.g. /private/var on macOS
	root = utils.RealPath(root)
	if !utils.DirExists(root) {
		return "", fmt.Errorf("%w: %s", ErrPathNotFound, root)
	}
	return root, nil
}

func recursive(root string) string {
	return filepath.Join(root, "...")
}
