package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"visra.app/studio/internal/datauri"
	"visra.app/studio/internal/imagegen"
	"visra.app/studio/pkg/logger"
	"visra.app/studio/pkg/metrics"
)

const (
	DefaultGenerationTimeout = 45 * time.Second
	DefaultRevealInterval    = 15 * time.Millisecond
)

// Ticker is the clock driving the typewriter reveal.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type OrchestratorConfig struct {
	Timeout        time.Duration
	RevealInterval time.Duration
	NewTicker      TickerFactory
}

// replySink receives the reply of one generation. Every method reports false
// once the generation's token is stale, and the orchestrator then gives up.
type replySink interface {
	beginReply(token uint64, image string) bool
	revealReply(token uint64, content string) bool
	finishReply(token uint64) bool
	failReply(token uint64) bool
}

// Orchestrator performs one model call per sent message and reveals the answer.
type Orchestrator struct {
	generator imagegen.Generator
	cfg       OrchestratorConfig
	log       *logger.Logger
}

func NewOrchestrator(generator imagegen.Generator, cfg OrchestratorConfig, log *logger.Logger) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGenerationTimeout
	}
	if cfg.RevealInterval <= 0 {
		cfg.RevealInterval = DefaultRevealInterval
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTimeTicker
	}
	return &Orchestrator{generator: generator, cfg: cfg, log: log.Named("orchestrator")}
}

// run drives gen to completion and always closes gen.Done.
func (o *Orchestrator) run(gen *Generation, sink replySink) {
	var err error
	defer func() { gen.finish(err) }()
	err = o.generate(gen, sink)
}

func (o *Orchestrator) generate(gen *Generation, sink replySink) (err error) {
	log := o.log.WithSession(gen.sessionID).With(zap.Uint64("token", gen.token))
	provider := o.generator.Name()

	defer func() {
		if r := recover(); r != nil {
			log.Error("generation panicked", zap.Any("panic", r))
			sink.failReply(gen.token)
			err = fmt.Errorf("generation panicked: %v", r)
		}
	}()

	msg := gen.message
	req := BuildRequest(msg.Content, msg.Image, msg.Mask)

	start := time.Now()
	callCtx, cancel := context.WithTimeout(gen.ctx, o.cfg.Timeout)
	resp, callErr := o.generator.Generate(callCtx, req)
	cancel()
	elapsed := time.Since(start)

	if gen.ctx.Err() != nil {
		metrics.RecordGeneration(provider, metrics.OutcomeStopped, elapsed.Seconds())
		log.Info("generation stopped before the reply arrived")
		return ErrGenerationStopped
	}
	if callErr != nil {
		metrics.RecordGeneration(provider, metrics.OutcomeFailure, elapsed.Seconds())
		log.Error("generation failed", zap.Error(callErr), zap.Duration("elapsed", elapsed))
		if !sink.failReply(gen.token) {
			return ErrGenerationStopped
		}
		return fmt.Errorf("failed to generate design: %w", callErr)
	}

	text := resp.Text()
	var image string
	if img, ok := resp.FirstImage(); ok {
		image = datauri.Encode(img.MIMEType, img.Data)
	}
	log.Info("generation completed",
		zap.Duration("elapsed", elapsed),
		zap.Int("text_runes", len([]rune(text))),
		zap.Bool("image", image != ""))

	if !sink.beginReply(gen.token, image) {
		metrics.RecordGeneration(provider, metrics.OutcomeStopped, elapsed.Seconds())
		return ErrGenerationStopped
	}
	// The outcome is only known once the reveal ends: Stop may still cut it short.
	err = o.reveal(gen, text, sink)
	if err != nil {
		metrics.RecordGeneration(provider, metrics.OutcomeStopped, elapsed.Seconds())
		log.Info("generation stopped during the reveal")
		return err
	}
	metrics.RecordGeneration(provider, metrics.OutcomeSuccess, elapsed.Seconds())
	return nil
}

// reveal grows the reply one character per tick, then clears the generating flag.
func (o *Orchestrator) reveal(gen *Generation, text string, sink replySink) error {
	runes := []rune(text)
	if len(runes) > 0 {
		ticker := o.cfg.NewTicker(o.cfg.RevealInterval)
		defer ticker.Stop()

		for i := 1; i <= len(runes); i++ {
			select {
			case <-gen.ctx.Done():
				return ErrGenerationStopped
			case <-ticker.C():
			}
			if !sink.revealReply(gen.token, string(runes[:i])) {
				return ErrGenerationStopped
			}
		}
	}
	if !sink.finishReply(gen.token) {
		return ErrGenerationStopped
	}
	return nil
}
