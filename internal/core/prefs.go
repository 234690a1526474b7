package core

import (
	"sync"

	"go.uber.org/zap"

	"visra.app/studio/internal/store"
	"visra.app/studio/pkg/logger"
	"visra.app/studio/pkg/metrics"
)

// Preferences holds the theme and the landing-page flag.
type Preferences struct {
	mu          sync.Mutex
	store       *store.Store
	log         *logger.Logger
	theme       store.Theme
	skipLanding bool
}

// PreferencesView is the wire form of Preferences.
type PreferencesView struct {
	Theme       store.Theme `json:"theme"`
	SkipLanding bool        `json:"skipLanding"`
}

// NewPreferences loads saved preferences. Unreadable values fall back to the
// light theme and showing the landing page.
func NewPreferences(st *store.Store, log *logger.Logger) *Preferences {
	p := &Preferences{store: st, log: log.Named("preferences"), theme: store.ThemeLight}

	var theme store.Theme
	if ok, err := st.Load(store.KeyTheme, &theme); err != nil {
		p.log.Warn("failed to load theme", zap.Error(err))
	} else if ok && theme.Valid() {
		p.theme = theme
	}

	var skip bool
	if ok, err := st.Load(store.KeySkipLanding, &skip); err != nil {
		p.log.Warn("failed to load landing flag", zap.Error(err))
	} else if ok {
		p.skipLanding = skip
	}
	return p
}

func (p *Preferences) View() PreferencesView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PreferencesView{Theme: p.theme, SkipLanding: p.skipLanding}
}

func (p *Preferences) Theme() store.Theme {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.theme
}

// SetTheme applies the theme even when it cannot be saved.
func (p *Preferences) SetTheme(theme store.Theme) error {
	if !theme.Valid() {
		return ErrInvalidTheme
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.theme = theme
	p.save(store.KeyTheme, theme)
	return nil
}

func (p *Preferences) SkipLanding() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipLanding
}

func (p *Preferences) SetSkipLanding(skip bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skipLanding = skip
	p.save(store.KeySkipLanding, skip)
}

func (p *Preferences) save(key string, value any) {
	if err := p.store.Save(key, value); err != nil {
		metrics.PersistFailuresTotal.WithLabelValues(key).Inc()
		p.log.Warn("failed to save preference", zap.String("key", key), zap.Error(err))
	}
}
