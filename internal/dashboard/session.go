package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"sentinel/internal/config"
	"sentinel/internal/logger"
	"sentinel/internal/model"
)

var errPushClosed = errors.New("closed by server")

// API is the server API used by a dashboard session.
type API interface {
	StatusSource
	BudgetSource
	AnomalySource
	AIStatusSource
	Subscribe(ctx context.Context, handler func(model.PushMessage)) error
}

// Session wires the dashboard components to one server.
type Session struct {
	Metrics *MetricsPoller
	Privacy *PrivacyViewer
	Feed    *AnomalyFeed
	AI      *AIStatusMonitor

	api      API
	notifier Notifier
	logger   *logger.Logger
}

func NewSession(api API, cfg *config.DashboardConfig, notifier Notifier, logger *logger.Logger) *Session {
	return &Session{
		Metrics:  NewMetricsPoller(api, logger),
		Privacy:  NewPrivacyViewer(api, cfg.BudgetCeiling),
		Feed:     NewAnomalyFeed(api, logger),
		AI:       NewAIStatusMonitor(api, cfg.AIStatusInterval),
		api:      api,
		notifier: notifier,
		logger:   logger,
	}
}

// Load fetches every component concurrently. Each failure is notified; the
// joined failures are returned and the other components still load.
func (s *Session) Load(ctx context.Context) error {
	return s.load(ctx, true)
}

type loader struct {
	name string
	load func(context.Context) error
}

func (s *Session) load(ctx context.Context, withAI bool) error {
	loaders := []loader{
		{"metrics", s.Metrics.Load},
		{"privacy budget", s.Privacy.Load},
		{"anomalies", s.Feed.Load},
	}
	if withAI {
		loaders = append(loaders, loader{"AI status", s.AI.Refresh})
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, l := range loaders {
		l := l
		g.Go(func() error {
			if err := l.load(ctx); err != nil {
				notify(s.notifier, LevelError, "Failed to load "+l.name, err.Error())
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	return errors.Join(errs...)
}

// Dispatch routes a push message to its component. Unknown types are ignored.
// It reports whether any state changed.
func (s *Session) Dispatch(msg model.PushMessage) bool {
	switch msg.Type {
	case model.MessageMetricsUpdate:
		return s.Metrics.HandlePush(msg)
	case model.MessageAnomalyDetected:
		if !s.Feed.HandlePush(msg) {
			return false
		}
		if latest := s.Feed.Items(); len(latest) > 0 {
			a := latest[0]
			notify(s.notifier, LevelWarning, "Anomaly detected",
				fmt.Sprintf("%s (%s, %.0f%%)", a.Type, model.ClassifySeverity(a.Severity), a.Confidence*100))
		}
		return true
	default:
		s.logger.Info("Ignoring push message of type %q", msg.Type)
		return false
	}
}

// Run subscribes to the push channel, loads the components and polls the AI
// status until ctx is done or the push channel fails. onUpdate is called after
// every state change and must be safe for concurrent use.
func (s *Session) Run(ctx context.Context, onUpdate func()) error {
	if onUpdate == nil {
		onUpdate = func() {}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.api.Subscribe(ctx, func(msg model.PushMessage) {
			if s.Dispatch(msg) {
				onUpdate()
			}
		})
		if err == nil && ctx.Err() == nil {
			err = errPushClosed
		}
		if err != nil {
			notify(s.notifier, LevelError, "Push channel lost", err.Error())
			return fmt.Errorf("push channel: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.load(ctx, false)
		onUpdate()
		return nil
	})

	g.Go(func() error {
		s.AI.Run(ctx, onUpdate)
		return nil
	})

	return g.Wait()
}
