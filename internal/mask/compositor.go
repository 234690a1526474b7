// Package mask implements the freehand mask editor: strokes painted over a source
// image are kept at the source's natural resolution and exported as a mask where
// bright pixels mark the region to edit and black pixels are left as-is.
package mask

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // source decoders
	_ "image/jpeg" // source decoders
	"image/png"
	"math"

	"visra.app/studio/internal/datauri"
)

// StrokeWidth is the brush diameter in source pixels.
const StrokeWidth = 40

// minInkLuma is the lowest luminance (0-255) a stroke may have once composited over
// black. Dimmer highlight colours are swapped for white ink on export.
const minInkLuma = 128

var (
	// ErrNoSource is returned when the source has no pixels to paint over.
	ErrNoSource = errors.New("mask source has zero size")
	// ErrUnreadableSource is returned when the source image cannot be decoded.
	ErrUnreadableSource = errors.New("mask source is not a readable image")
	// ErrSourceTooLarge is returned when the source declares more than MaxSourcePixels.
	ErrSourceTooLarge = errors.New("mask source is too large")
)

// MaxSourcePixels bounds the canvas a source image may ask for. The header alone
// decides the allocation, so it is checked before any pixels are read.
const MaxSourcePixels = 40_000_000

// Highlight is the default on-screen stroke colour.
var Highlight = color.NRGBA{R: 255, G: 255, B: 255, A: 128}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Compositor holds the painted coverage of one source image.
type Compositor struct {
	width, height int
	displayW      float64
	displayH      float64
	highlight     color.NRGBA
	coverage      *image.Alpha

	drawing bool
	last    Point
}

// NewCompositor returns a blank overlay for a source of the given natural size.
// A zero-sized source yields a compositor on which drawing is a no-op.
func NewCompositor(width, height int) *Compositor {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Compositor{
		width:     width,
		height:    height,
		displayW:  float64(width),
		displayH:  float64(height),
		highlight: Highlight,
		coverage:  image.NewAlpha(image.Rect(0, 0, width, height)),
	}
}

// FromDataURI sizes a compositor from an encoded source image.
func FromDataURI(uri string) (*Compositor, error) {
	_, data, err := datauri.Decode(uri)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrSourceTooLarge, cfg.Width, cfg.Height)
	}
	return NewCompositor(cfg.Width, cfg.Height), nil
}

func (c *Compositor) Size() (int, int) { return c.width, c.height }

func (c *Compositor) loaded() bool { return c.width > 0 && c.height > 0 }

// SetDisplaySize records how large the source is shown on screen. Non-positive
// values fall back to the natural size.
func (c *Compositor) SetDisplaySize(w, h float64) {
	if w <= 0 || h <= 0 {
		w, h = float64(c.width), float64(c.height)
	}
	c.displayW, c.displayH = w, h
}

// SetHighlight changes the stroke colour shown while drawing.
func (c *Compositor) SetHighlight(col color.NRGBA) {
	c.highlight = col
}

// ToSource maps a point relative to the displayed image's top-left corner to
// source pixel coordinates.
func (c *Compositor) ToSource(p Point) Point {
	if c.displayW <= 0 || c.displayH <= 0 {
		return p
	}
	return Point{
		X: p.X * float64(c.width) / c.displayW,
		Y: p.Y * float64(c.height) / c.displayH,
	}
}

// Begin starts a stroke at a display-space point.
func (c *Compositor) Begin(p Point) {
	if !c.loaded() {
		return
	}
	c.drawing = true
	c.last = c.ToSource(p)
}

// Move extends the current stroke to p, painting a round-capped segment.
func (c *Compositor) Move(p Point) {
	if !c.drawing || !c.loaded() {
		return
	}
	next := c.ToSource(p)
	c.paintSegment(c.last, next)
	c.last = next
}

// End finishes the current stroke.
func (c *Compositor) End() {
	c.drawing = false
}

// Reset clears every painted stroke.
func (c *Compositor) Reset() {
	c.drawing = false
	for i := range c.coverage.Pix {
		c.coverage.Pix[i] = 0
	}
}

// Painted reports whether any pixel is covered.
func (c *Compositor) Painted() bool {
	for _, a := range c.coverage.Pix {
		if a != 0 {
			return true
		}
	}
	return false
}

// paintSegment covers every pixel whose centre lies within StrokeWidth/2 of the
// segment a-b. Consecutive segments share endpoints, which gives round joins.
func (c *Compositor) paintSegment(a, b Point) {
	r := StrokeWidth / 2.0
	minX := int(math.Floor(math.Min(a.X, b.X) - r))
	maxX := int(math.Ceil(math.Max(a.X, b.X) + r))
	minY := int(math.Floor(math.Min(a.Y, b.Y) - r))
	maxY := int(math.Ceil(math.Max(a.Y, b.Y) + r))

	bounds := image.Rect(minX, minY, maxX+1, maxY+1).Intersect(c.coverage.Rect)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if segmentDistance(float64(x)+0.5, float64(y)+0.5, a, b) <= r {
				c.coverage.SetAlpha(x, y, color.Alpha{A: 0xff})
			}
		}
	}
}

func segmentDistance(px, py float64, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = ((px-a.X)*dx + (py-a.Y)*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}
	cx, cy := a.X+t*dx, a.Y+t*dy
	return math.Hypot(px-cx, py-cy)
}

// Overlay renders the strokes in the highlight colour over transparency, as shown
// on top of the source while drawing.
func (c *Compositor) Overlay() *image.NRGBA {
	dst := image.NewNRGBA(c.coverage.Rect)
	draw.DrawMask(dst, dst.Rect, image.NewUniform(c.highlight), image.Point{}, c.coverage, image.Point{}, draw.Over)
	return dst
}

// Export composites the strokes over an opaque black canvas of the source's exact
// size.
func (c *Compositor) Export() (*image.RGBA, error) {
	if !c.loaded() {
		return nil, ErrNoSource
	}
	dst := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	draw.Draw(dst, dst.Rect, image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.DrawMask(dst, dst.Rect, image.NewUniform(exportInk(c.highlight)), image.Point{}, c.coverage, image.Point{}, draw.Over)
	return dst, nil
}

// ExportDataURI exports the mask as a PNG data URI.
func (c *Compositor) ExportDataURI() (string, error) {
	img, err := c.Export()
	if err != nil {
		return "", err
	}
	return EncodePNG(img)
}

// exportInk keeps the highlight colour when it stays bright over black and
// otherwise substitutes white at no less than half opacity.
func exportInk(h color.NRGBA) color.NRGBA {
	if compositeLuma(h) >= minInkLuma {
		return h
	}
	a := h.A
	if a < 128 {
		a = 128
	}
	return color.NRGBA{R: 255, G: 255, B: 255, A: a}
}

// compositeLuma is the Rec. 601 luminance of c drawn over black.
func compositeLuma(c color.NRGBA) float64 {
	l := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
	return l * float64(c.A) / 255
}

// EncodePNG encodes img as a PNG data URI.
func EncodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return datauri.Encode("image/png", buf.Bytes()), nil
}
