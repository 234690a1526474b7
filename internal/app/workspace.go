// Package app assembles the workspace from configuration. Both binaries use it.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"visra.app/studio/internal/config"
	"visra.app/studio/internal/core"
	"visra.app/studio/internal/imagegen"
	"visra.app/studio/internal/store"
	"visra.app/studio/pkg/logger"
)

// Workspace is the persisted part of the workspace: the store, the session
// directory and the preferences.
type Workspace struct {
	cfg   *config.Config
	kv    *store.SQLiteKV
	Store *store.Store
	Dir   *core.Directory
	Prefs *core.Preferences
	log   *logger.Logger

	closers []func() error
}

func OpenWorkspace(cfg *config.Config, log *logger.Logger) (*Workspace, error) {
	kv, err := store.NewSQLiteKV(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	st := store.New(kv)

	dir, err := core.NewDirectory(st, log)
	if err != nil {
		kv.Close()
		return nil, err
	}

	return &Workspace{
		cfg:   cfg,
		kv:    kv,
		Store: st,
		Dir:   dir,
		Prefs: core.NewPreferences(st, log),
		log:   log,
	}, nil
}

// NewGenerator builds the provider selected by GENERATION_PROVIDER.
func (w *Workspace) NewGenerator(ctx context.Context) (imagegen.Generator, error) {
	switch w.cfg.GenerationProvider {
	case config.ProviderGemini:
		if w.cfg.GeminiAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable is required")
		}
		gen, err := imagegen.NewGeminiGenerator(ctx, w.cfg.GeminiAPIKey, w.cfg.GeminiModel, w.log)
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, gen.Close)
		return gen, nil
	case config.ProviderOpenAI:
		if w.cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY environment variable is required")
		}
		return imagegen.NewOpenAIGenerator(w.cfg.OpenAIAPIKey, w.cfg.OpenAIImageModel, w.log), nil
	}
	return nil, fmt.Errorf("unknown generation provider %q", w.cfg.GenerationProvider)
}

// Conversation restores the live conversation on top of the workspace.
func (w *Workspace) Conversation(gen imagegen.Generator) *core.Conversation {
	orch := core.NewOrchestrator(gen, core.OrchestratorConfig{
		Timeout:        w.cfg.GenerationTimeout,
		RevealInterval: w.cfg.RevealInterval,
	}, w.log)
	w.log.Info("generation provider ready",
		zap.String("provider", gen.Name()),
		zap.Duration("timeout", w.cfg.GenerationTimeout))
	return core.NewConversation(w.Store, w.Dir, orch, w.log)
}

func (w *Workspace) Close() error {
	var errs []error
	for i := len(w.closers) - 1; i >= 0; i-- {
		errs = append(errs, w.closers[i]())
	}
	errs = append(errs, w.kv.Close())
	return errors.Join(errs...)
}
