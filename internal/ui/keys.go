// Package ui holds presentation rules that do not depend on a renderer.
package ui

// Overlays describes which transient surfaces are open.
type Overlays struct {
	ImageViewer bool `json:"imageViewer"`
	Settings    bool `json:"settings"`
	Pricing     bool `json:"pricing"`
	MaskEditor  bool `json:"maskEditor"`
	MobileNav   bool `json:"mobileNav"`
	Generating  bool `json:"generating"`
}

// EscapeAction is what a single Escape press does.
type EscapeAction string

const (
	EscapeNone             EscapeAction = "none"
	EscapeCloseImageViewer EscapeAction = "close-image-viewer"
	EscapeCloseSettings    EscapeAction = "close-settings"
	EscapeClosePricing     EscapeAction = "close-pricing"
	EscapeCloseMaskEditor  EscapeAction = "close-mask-editor"
	EscapeStopGeneration   EscapeAction = "stop-generation"
	EscapeCloseMobileNav   EscapeAction = "close-mobile-nav"
)

// ResolveEscape closes the topmost surface. A generation is stopped only when
// no overlay is open above the chat.
func ResolveEscape(o Overlays) EscapeAction {
	switch {
	case o.ImageViewer:
		return EscapeCloseImageViewer
	case o.Settings:
		return EscapeCloseSettings
	case o.Pricing:
		return EscapeClosePricing
	case o.MaskEditor:
		return EscapeCloseMaskEditor
	case o.Generating:
		return EscapeStopGeneration
	case o.MobileNav:
		return EscapeCloseMobileNav
	}
	return EscapeNone
}

type EnterAction string

const (
	EnterSubmit  EnterAction = "submit"
	EnterNewline EnterAction = "newline"
)

// ResolveEnter submits the input on a bare Enter; with a modifier held it
// inserts a newline instead.
func ResolveEnter(modifier bool) EnterAction {
	if modifier {
		return EnterNewline
	}
	return EnterSubmit
}
