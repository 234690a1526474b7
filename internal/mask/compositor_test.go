package mask

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"visra.app/studio/internal/datauri"
)

func pngURI(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return datauri.Encode("image/png", buf.Bytes())
}

func decodeURI(t *testing.T, uri string) image.Image {
	t.Helper()
	_, data, err := datauri.Decode(uri)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	return img
}

// TestExportMatchesSourceSize checks square and non-square sources.
func TestExportMatchesSourceSize(t *testing.T) {
	sizes := []struct{ w, h int }{{64, 64}, {120, 45}, {37, 200}}
	for _, sz := range sizes {
		c, err := FromDataURI(pngURI(t, sz.w, sz.h))
		if err != nil {
			t.Fatalf("FromDataURI(%dx%d): %v", sz.w, sz.h, err)
		}
		c.SetDisplaySize(float64(sz.w)/2, float64(sz.h)/2)
		c.Replay([]Stroke{{{X: 1, Y: 1}, {X: 10, Y: 10}}})

		uri, err := c.ExportDataURI()
		if err != nil {
			t.Fatalf("ExportDataURI: %v", err)
		}
		b := decodeURI(t, uri).Bounds()
		if b.Dx() != sz.w || b.Dy() != sz.h {
			t.Errorf("export size = %dx%d, want %dx%d", b.Dx(), b.Dy(), sz.w, sz.h)
		}
	}
}

// headerOnlyPNG is a PNG that declares w x h but carries no pixel data.
func headerOnlyPNG(w, h uint32) string {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := make([]byte, 4+13)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], w)
	binary.BigEndian.PutUint32(chunk[8:], h)
	chunk[12] = 8 // bit depth
	chunk[13] = 6 // RGBA
	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return datauri.Encode("image/png", buf.Bytes())
}

func TestSourceTooLarge(t *testing.T) {
	huge := headerOnlyPNG(8000, 8000)
	if _, err := FromDataURI(huge); !errors.Is(err, ErrSourceTooLarge) {
		t.Errorf("FromDataURI error = %v, want ErrSourceTooLarge", err)
	}
	if _, err := Compose(huge, 100, 100, []Stroke{{{X: 1, Y: 1}}}); !errors.Is(err, ErrSourceTooLarge) {
		t.Errorf("Compose error = %v, want ErrSourceTooLarge", err)
	}

	c, err := FromDataURI(headerOnlyPNG(4000, 3000))
	if err != nil {
		t.Fatalf("FromDataURI within the budget: %v", err)
	}
	if w, h := c.Size(); w != 4000 || h != 3000 {
		t.Errorf("size = %dx%d", w, h)
	}
}

func TestExportZeroSizeSource(t *testing.T) {
	c := NewCompositor(0, 0)
	c.Begin(Point{X: 1, Y: 1})
	c.Move(Point{X: 5, Y: 5})
	if c.Painted() {
		t.Error("drawing on an unloaded source painted pixels")
	}
	if _, err := c.Export(); !errors.Is(err, ErrNoSource) {
		t.Fatalf("err = %v, want ErrNoSource", err)
	}
}

func TestToSourceScaling(t *testing.T) {
	c := NewCompositor(1000, 500)
	c.SetDisplaySize(250, 250)
	got := c.ToSource(Point{X: 100, Y: 50})
	if got.X != 400 || got.Y != 100 {
		t.Errorf("ToSource = %+v, want {400 100}", got)
	}
}

// TestStrokeIsBrightOverBlack paints a horizontal stroke and checks pixels on the
// path are bright, pixels far from it are black, and the brush radius holds.
func TestStrokeIsBrightOverBlack(t *testing.T) {
	c := NewCompositor(200, 100)
	c.Begin(Point{X: 50, Y: 50})
	c.Move(Point{X: 150, Y: 50})
	c.End()

	img, err := c.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	on := img.RGBAAt(100, 50)
	if on.R < minInkLuma || on.A != 0xff {
		t.Errorf("pixel on stroke = %+v, want bright and opaque", on)
	}
	// Round cap: within the radius beyond the end point.
	if cap := img.RGBAAt(165, 50); cap.R < minInkLuma {
		t.Errorf("pixel in round cap = %+v, want bright", cap)
	}
	// Outside the brush radius.
	if off := img.RGBAAt(100, 75); off != (color.RGBA{A: 0xff}) {
		t.Errorf("pixel outside stroke = %+v, want opaque black", off)
	}
	if corner := img.RGBAAt(0, 0); corner != (color.RGBA{A: 0xff}) {
		t.Errorf("corner pixel = %+v, want opaque black", corner)
	}
}

func TestBeginWithoutMovePaintsNothing(t *testing.T) {
	c := NewCompositor(50, 50)
	c.Begin(Point{X: 25, Y: 25})
	c.End()
	if c.Painted() {
		t.Error("a press without movement painted pixels")
	}
}

func TestMoveAfterEndIsIgnored(t *testing.T) {
	c := NewCompositor(50, 50)
	c.Begin(Point{X: 5, Y: 5})
	c.End()
	c.Move(Point{X: 45, Y: 45})
	if c.Painted() {
		t.Error("Move after End painted pixels")
	}
}

func TestReset(t *testing.T) {
	c := NewCompositor(80, 80)
	c.Replay([]Stroke{{{X: 10, Y: 10}, {X: 70, Y: 70}}})
	if !c.Painted() {
		t.Fatal("stroke painted nothing")
	}
	c.Reset()
	if c.Painted() {
		t.Error("Reset left painted pixels")
	}
}

// TestDimHighlightExportsBright verifies a dark on-screen colour still yields a
// mask distinguishable from the black background.
func TestDimHighlightExportsBright(t *testing.T) {
	c := NewCompositor(60, 60)
	c.SetHighlight(color.NRGBA{R: 200, G: 0, B: 0, A: 80})
	c.Replay([]Stroke{{{X: 10, Y: 30}, {X: 50, Y: 30}}})

	img, err := c.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	px := img.RGBAAt(30, 30)
	luma := compositeLuma(color.NRGBA{R: px.R, G: px.G, B: px.B, A: 0xff})
	if luma < minInkLuma {
		t.Errorf("stroke luma = %.1f, want >= %d", luma, minInkLuma)
	}
}

func TestOverlayUsesHighlight(t *testing.T) {
	c := NewCompositor(40, 40)
	c.Replay([]Stroke{{{X: 0, Y: 20}, {X: 40, Y: 20}}})
	ov := c.Overlay()
	if got := ov.NRGBAAt(20, 20); got.R < 254 || got.A < 127 || got.A > 129 {
		t.Errorf("overlay pixel = %+v, want about %+v", got, Highlight)
	}
	if got := ov.NRGBAAt(20, 0); got.A != 0 {
		t.Errorf("overlay off-stroke alpha = %d, want 0", got.A)
	}
}

func TestToAlpha(t *testing.T) {
	c := NewCompositor(40, 40)
	c.Replay([]Stroke{{{X: 0, Y: 20}, {X: 40, Y: 20}}})
	img, err := c.Export()
	if err != nil {
		t.Fatal(err)
	}
	a := ToAlpha(img)
	if got := a.NRGBAAt(20, 20).A; got != 0 {
		t.Errorf("alpha on stroke = %d, want 0", got)
	}
	if got := a.NRGBAAt(20, 0).A; got != 0xff {
		t.Errorf("alpha off stroke = %d, want 255", got)
	}
}

func TestComposeRejectsMalformedSource(t *testing.T) {
	if _, err := Compose("not-a-data-uri", 10, 10, nil); !errors.Is(err, datauri.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}
