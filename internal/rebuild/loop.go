// Package rebuild keeps a build up to date: it runs one pass immediately and
// a fresh pass after every batch of source changes.
package rebuild

import (
	"context"
	"errors"
	"time"

	"github.com/conneroisu/tagc/internal/build"
	"github.com/conneroisu/tagc/internal/compiler"
	tagcerrors "github.com/conneroisu/tagc/internal/errors"
	"github.com/conneroisu/tagc/internal/flow"
	"github.com/conneroisu/tagc/internal/logging"
	"github.com/conneroisu/tagc/internal/watcher"
)

// DefaultDebounce coalesces the create and write events of one save.
const DefaultDebounce = 100 * time.Millisecond

// PassHook observes the outcome of every pass, including the initial one.
type PassHook func(rep *build.Report, err error)

// Loop re-runs a build whenever its sources change.
type Loop struct {
	runner   *build.Runner
	spec     flow.Spec
	opts     compiler.Options
	logger   logging.Logger
	debounce time.Duration
	hooks    []PassHook
	ready    []func(glob string)
	metrics  *build.Metrics
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(l logging.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// WithDebounce sets how long changes are collected before a pass. Zero
// starts a pass for every event.
func WithDebounce(d time.Duration) Option {
	return func(lp *Loop) { lp.debounce = d }
}

// WithPassHook adds a hook called after every pass.
func WithPassHook(h PassHook) Option {
	return func(lp *Loop) { lp.hooks = append(lp.hooks, h) }
}

// WithReadyHook adds a callback fired once the watcher is subscribed.
func WithReadyHook(fn func(glob string)) Option {
	return func(lp *Loop) { lp.ready = append(lp.ready, fn) }
}

// New creates a loop building spec with runner.
func New(runner *build.Runner, spec flow.Spec, opts compiler.Options, options ...Option) *Loop {
	l := &Loop{
		runner:   runner,
		spec:     spec.Normalized(),
		opts:     opts,
		logger:   logging.NewNopLogger(),
		debounce: DefaultDebounce,
		metrics:  build.NewMetrics(),
	}
	for _, opt := range options {
		opt(l)
	}
	l.logger = l.logger.WithComponent("watch")
	return l
}

// Session is a running loop. It ends when Stop is called or the context
// given to Start is done.
type Session struct {
	glob    string
	metrics *build.Metrics
	cancel  context.CancelFunc
	done    chan struct{}
}

// Glob returns the pattern being watched.
func (s *Session) Glob() string { return s.glob }

// Metrics returns the pass totals so far, the initial pass included.
func (s *Session) Metrics() build.MetricsSnapshot { return s.metrics.Snapshot() }

// Stop asks the session to end and returns without waiting, so it may be
// called from a pass hook. Use Wait to block until the watcher is closed.
// It is safe to call more than once.
func (s *Session) Stop() {
	s.cancel()
}

// Wait blocks until the session has stopped and no pass is running.
func (s *Session) Wait() error {
	<-s.done
	return nil
}

// Start runs the initial pass and subscribes to changes. A failed pass,
// initial or not, is logged and the loop keeps watching. Start fails only
// when the build spec is invalid or the source cannot be watched.
func (l *Loop) Start(ctx context.Context) (*Session, error) {
	if err := l.spec.Validate(); err != nil {
		return nil, err
	}

	l.pass(ctx)

	f := l.runner.Flow(l.spec)
	glob := flow.WatchGlob(l.spec, f)
	filter, err := watcher.GlobFilter(glob)
	if err != nil {
		return nil, err
	}

	fw, err := watcher.NewFileWatcher(l.debounce, l.logger)
	if err != nil {
		return nil, err
	}
	fw.AddFilter(filter)

	root := watcher.Root(glob)
	if f.Source == flow.SourceFile {
		err = fw.AddPath(root)
	} else {
		err = fw.AddRecursive(root)
	}
	if err != nil {
		_ = fw.Stop()
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		glob:    glob,
		metrics: l.metrics,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		l.logger.Debug(sctx, "sources changed", "events", len(events), "first", events[0].Path)
		l.pass(sctx)
		return nil
	})
	fw.OnReady(func() {
		l.logger.Info(sctx, "watching "+glob)
		for _, fn := range l.ready {
			fn(glob)
		}
	})

	if err := fw.Start(sctx); err != nil {
		cancel()
		_ = fw.Stop()
		return nil, err
	}

	go func() {
		defer close(s.done)
		<-sctx.Done()
		if err := fw.Stop(); err != nil {
			l.logger.Warn(context.Background(), err, "cannot close file watcher")
		}
		m := s.Metrics()
		l.logger.Info(context.Background(), "watch stopped",
			"passes", m.Passes, "failed", m.Failed, "avg", m.AverageDuration)
	}()
	return s, nil
}

// Run starts the loop and blocks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	s, err := l.Start(ctx)
	if err != nil {
		return err
	}
	return s.Wait()
}

// pass runs one build. Failures are logged with the offending file and
// handed to the hooks; a pass interrupted by shutdown is not reported.
func (l *Loop) pass(ctx context.Context) {
	rep, err := l.runner.Run(ctx, l.spec, l.opts)
	if err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil) {
		return
	}
	l.metrics.Record(rep, err)
	if err != nil {
		l.logger.Error(ctx, err, "build failed", "file", tagcerrors.FilePath(err))
	}
	for _, h := range l.hooks {
		h(rep, err)
	}
}
