package mask

import (
	"image"
	"image/color"
)

// Stroke is one pointer-down..pointer-up path in display coordinates.
type Stroke []Point

// Replay paints strokes in order, as if the pointer had traced them.
func (c *Compositor) Replay(strokes []Stroke) {
	for _, s := range strokes {
		if len(s) == 0 {
			continue
		}
		c.Begin(s[0])
		for _, p := range s[1:] {
			c.Move(p)
		}
		c.End()
	}
}

// Compose sizes a compositor from source, replays strokes drawn at the given
// display size and returns the exported mask as a PNG data URI.
func Compose(source string, displayW, displayH float64, strokes []Stroke) (string, error) {
	c, err := FromDataURI(source)
	if err != nil {
		return "", err
	}
	c.SetDisplaySize(displayW, displayH)
	c.Replay(strokes)
	return c.ExportDataURI()
}

// ToAlpha converts a black/bright mask into the transparency convention used by
// some edit endpoints: bright pixels become fully transparent (edit here) and
// everything else opaque black.
func ToAlpha(m image.Image) *image.NRGBA {
	b := m.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(m.At(x, y)).(color.Gray)
			if g.Y >= minInkLuma/2 {
				continue
			}
			dst.SetNRGBA(x-b.Min.X, y-b.Min.Y, color.NRGBA{A: 0xff})
		}
	}
	return dst
}
