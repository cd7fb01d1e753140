// Package preprocess normalizes raw X-ray images for inference: decode,
// contrast enhancement, resize, tensor conversion. The pipeline is
// deterministic, so results are cacheable by content hash.
package preprocess

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// Options are the preprocessing parameters for one request. They take part
// in the cache key, so two requests with different options never share an
// entry.
type Options struct {
	// Square side length of the output tensor.
	TargetSize int
	// Reject inputs whose smaller dimension is below this.
	MinDimension int
	// Apply grayscale histogram equalization before resizing.
	Equalize bool
}

func (o Options) key() string {
	return fmt.Sprintf("s=%d,m=%d,eq=%t", o.TargetSize, o.MinDimension, o.Equalize)
}

// Image is the preprocessed result: an immutable CHW float32 tensor plus the
// metadata needed for explainability overlays and idempotence checks.
type Image struct {
	// Hash of the raw input bytes and the options used.
	Hash string
	// Output spatial dimensions (TargetSize x TargetSize).
	Width  int
	Height int
	// Original decoded dimensions.
	SourceWidth  int
	SourceHeight int
	// Normalized tensor, 3 channels x Height x Width. Chest films are
	// single-channel; the gray plane is replicated across all three so
	// ImageNet-pretrained backbones accept it.
	Tensor []float32
	// Equalized grayscale at target size, for heatmap overlays.
	Gray []uint8
	// Options the tensor was produced with.
	Options Options
}

// Preprocessor runs the pipeline with an optional content-addressed cache.
type Preprocessor struct {
	cache *Cache
}

// New constructs a Preprocessor. cacheEntries <= 0 disables caching.
func New(cacheEntries int) *Preprocessor {
	p := &Preprocessor{}
	if cacheEntries > 0 {
		p.cache = NewCache(cacheEntries)
	}
	return p
}

// Cache exposes the underlying cache for status reporting; may be nil.
func (p *Preprocessor) Cache() *Cache { return p.cache }

// Run decodes and normalizes raw image bytes. Re-submission of the same
// bytes with the same options returns the cached Image.
func (p *Preprocessor) Run(ctx context.Context, raw []byte, opts Options) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.TargetSize <= 0 {
		opts.TargetSize = 224
	}
	key := ContentKey(raw, opts)
	if p.cache != nil {
		if img, ok := p.cache.Get(key); ok {
			cacheHits.Inc()
			return img, nil
		}
		cacheMisses.Inc()
	}
	img, err := run(raw, key, opts)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		p.cache.Put(key, img)
	}
	return img, nil
}

// ContentKey derives the cache key for raw bytes under the given options.
func ContentKey(raw []byte, opts Options) string {
	h := sha256.New()
	h.Write(raw)
	h.Write([]byte(opts.key()))
	return hex.EncodeToString(h.Sum(nil))
}

func run(raw []byte, key string, opts Options) (*Image, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidImage("empty image payload")
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrInvalidImage("undecodable image: " + err.Error())
	}
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if opts.MinDimension > 0 && (sw < opts.MinDimension || sh < opts.MinDimension) {
		return nil, ErrInvalidImage(fmt.Sprintf("image too small: %dx%d below minimum %d", sw, sh, opts.MinDimension))
	}

	gray := toGray(src)
	if opts.Equalize {
		equalize(gray)
	}
	size := uint(opts.TargetSize)
	resized := resize.Resize(size, size, gray, resize.Lanczos3)

	w, h := opts.TargetSize, opts.TargetSize
	plane := make([]uint8, w*h)
	tensor := make([]float32, 3*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g, _, _, _ := resized.At(x, y).RGBA()
			v := uint8(g >> 8)
			i := y*w + x
			plane[i] = v
			norm := float32(v) / 255.0
			tensor[i] = norm
			tensor[w*h+i] = norm
			tensor[2*w*h+i] = norm
		}
	}
	return &Image{
		Hash:         key,
		Width:        w,
		Height:       h,
		SourceWidth:  sw,
		SourceHeight: sh,
		Tensor:       tensor,
		Gray:         plane,
		Options:      opts,
	}, nil
}

func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, src.At(x, y))
		}
	}
	return out
}

// equalize applies in-place histogram equalization over the gray plane.
// Deterministic: same input pixels always map to the same output.
func equalize(img *image.Gray) {
	var hist [256]int
	for _, v := range img.Pix {
		hist[v]++
	}
	total := len(img.Pix)
	if total == 0 {
		return
	}
	// CDF, skipping the lowest occupied bin so black stays black
	var cdf [256]int
	sum := 0
	for i := 0; i < 256; i++ {
		sum += hist[i]
		cdf[i] = sum
	}
	cdfMin := 0
	for i := 0; i < 256; i++ {
		if hist[i] > 0 {
			cdfMin = cdf[i]
			break
		}
	}
	if total == cdfMin {
		return // flat image
	}
	var lut [256]uint8
	for i := 0; i < 256; i++ {
		v := (cdf[i] - cdfMin) * 255 / (total - cdfMin)
		if v < 0 {
			v = 0
		}
		lut[i] = uint8(v)
	}
	for i, v := range img.Pix {
		img.Pix[i] = lut[v]
	}
}
