package explain

import (
	"bytes"
	"image/png"
	"testing"

	"xrayd/internal/preprocess"
	"xrayd/internal/runtime"
)

func testImage(size int) *preprocess.Image {
	gray := make([]uint8, size*size)
	for i := range gray {
		gray[i] = uint8(i % 256)
	}
	return &preprocess.Image{Width: size, Height: size, Gray: gray}
}

func hotCornerActivations(ch, side int) *runtime.Activations {
	maps := make([][]float32, ch)
	for c := range maps {
		m := make([]float32, side*side)
		// top-left quadrant hot
		for y := 0; y < side/2; y++ {
			for x := 0; x < side/2; x++ {
				m[y*side+x] = 1
			}
		}
		maps[c] = m
	}
	return &runtime.Activations{Maps: maps, Height: side, Width: side}
}

func TestGenerateProducesDecodablePNG(t *testing.T) {
	hm, err := Generate(hotCornerActivations(4, 7), testImage(64))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if hm.Width != 64 || hm.Height != 64 {
		t.Fatalf("dims %dx%d", hm.Width, hm.Height)
	}
	img, err := png.Decode(bytes.NewReader(hm.PNG))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("decoded dims %dx%d", b.Dx(), b.Dy())
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate(hotCornerActivations(3, 8), testImage(32))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := Generate(hotCornerActivations(3, 8), testImage(32))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !bytes.Equal(a.PNG, b.PNG) {
		t.Fatalf("heatmaps differ across identical inputs")
	}
}

func TestGenerateRejectsMissingActivations(t *testing.T) {
	if _, err := Generate(nil, testImage(32)); err == nil {
		t.Fatalf("expected error for nil activations")
	}
	if _, err := Generate(&runtime.Activations{}, testImage(32)); err == nil {
		t.Fatalf("expected error for empty activations")
	}
}

func TestGenerateRejectsShapeMismatch(t *testing.T) {
	act := &runtime.Activations{Maps: [][]float32{make([]float32, 10)}, Height: 4, Width: 4}
	if _, err := Generate(act, testImage(32)); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
}

func TestGenerateRejectsDeadMaps(t *testing.T) {
	act := &runtime.Activations{Maps: [][]float32{make([]float32, 16)}, Height: 4, Width: 4}
	if _, err := Generate(act, testImage(32)); err == nil {
		t.Fatalf("expected error for all-zero maps")
	}
}

func TestJetEndpoints(t *testing.T) {
	r0, _, b0 := jet(0)
	r1, _, b1 := jet(1)
	if b0 <= r0 {
		t.Fatalf("low intensity should be blue-ish: r=%d b=%d", r0, b0)
	}
	if r1 <= b1 {
		t.Fatalf("high intensity should be red-ish: r=%d b=%d", r1, b1)
	}
}
