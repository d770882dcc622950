// Package worker consumes the event bus and dispatches each message to the
// handlers registered for its topic and event type.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/messaging"
)

const maxBackoff = 30 * time.Second

// HandlerRegistration binds a topic, and optionally one event type, to a
// handler. An empty EventType receives every message of the topic.
type HandlerRegistration struct {
	Topic     string
	EventType string
	Handler   messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine orchestrates background message consumption.
type Engine struct {
	client        messaging.Client
	logger        *zap.Logger
	cfg           config.Config
	registrations map[string][]HandlerRegistration
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	reg := make(map[string][]HandlerRegistration, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		reg[r.Topic] = append(reg[r.Topic], r)
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{client: p.Client, logger: logger, cfg: p.Config, registrations: reg}
}

// Module wires the engine into the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{OnStart: engine.start, OnStop: engine.stop})
	}),
)

// enabled reports whether start should spawn consumers.
func (e *Engine) enabled() (bool, string) {
	switch {
	case !e.cfg.Messaging.Enabled:
		return false, "messaging disabled"
	case !e.cfg.Messaging.Workers.Enabled:
		return false, "workers disabled"
	case len(e.registrations) == 0:
		return false, "no handlers registered"
	}
	return true, ""
}

func (e *Engine) start(context.Context) error {
	if ok, reason := e.enabled(); !ok {
		e.logger.Info("worker engine idle", zap.String("reason", reason))
		return nil
	}

	workers := max(e.cfg.Messaging.Workers.Concurrency, 1)
	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	for id := range workers {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, id)
		}()
	}

	topics := make([]string, 0, len(e.registrations))
	for topic := range e.registrations {
		topics = append(topics, topic)
	}
	e.logger.Info("worker engine started", zap.Int("workers", workers), zap.Strings("topics", topics))
	return nil
}

// stop cancels the consumers and waits for in-flight handlers until ctx
// expires.
func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.logger.Info("worker engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch runs every handler matching msg. Handler errors are joined.
func (e *Engine) Dispatch(ctx context.Context, msg messaging.Message) error {
	regs, ok := e.registrations[msg.Topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", msg.Topic))
		return nil
	}

	eventType := msg.Headers[messaging.HeaderEventType]
	var errs []error
	for _, r := range regs {
		if r.EventType != "" && r.EventType != eventType {
			continue
		}
		if err := r.Handler(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// consumeLoop keeps one consumer attached, restarting it with capped
// exponential backoff when the bus fails.
func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := retry.WithCappedDuration(maxBackoff, retry.NewExponential(time.Second))
	handle := func(msgCtx context.Context, msg messaging.Message) error {
		e.logger.Debug("processing message",
			zap.String("topic", msg.Topic),
			zap.String("event_type", msg.Headers[messaging.HeaderEventType]),
			zap.Int64("offset", msg.Offset),
			zap.Int("worker", workerID),
		)
		return e.Dispatch(msgCtx, msg)
	}

	_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := e.client.Consume(ctx, handle)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		e.logger.Error("consumer failed; restarting", zap.Int("worker", workerID), zap.Error(err))
		return retry.RetryableError(err)
	})
}
