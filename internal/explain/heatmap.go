// Package explain renders class-activation heatmaps from a model's cached
// convolutional feature maps. It is a pure transformation: no accelerator
// access, no side effects, best-effort from the engine's point of view.
package explain

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"

	"xrayd/internal/preprocess"
	"xrayd/internal/runtime"
)

// Heatmap is a rendered overlay highlighting the regions that drove a
// prediction.
type Heatmap struct {
	PNG    []byte
	Width  int
	Height int
}

// Generate builds a heatmap overlay from activation maps and the
// preprocessed image they were computed on. Channel importance is
// approximated by each map's mean activation; the weighted sum is rectified,
// normalized, upscaled to the image and blended over the grayscale film.
func Generate(act *runtime.Activations, img *preprocess.Image) (*Heatmap, error) {
	if act == nil || len(act.Maps) == 0 || act.Height <= 0 || act.Width <= 0 {
		return nil, errors.New("no activation maps available")
	}
	if img == nil || len(img.Gray) != img.Width*img.Height {
		return nil, errors.New("preprocessed image missing gray plane")
	}
	plane := act.Height * act.Width
	for _, m := range act.Maps {
		if len(m) != plane {
			return nil, errors.New("activation map shape mismatch")
		}
	}

	cam := make([]float32, plane)
	for _, m := range act.Maps {
		var sum float32
		for _, v := range m {
			sum += v
		}
		w := sum / float32(plane)
		if w <= 0 {
			continue
		}
		for i, v := range m {
			cam[i] += w * v
		}
	}
	// ReLU + max-normalize
	var max float32
	for i, v := range cam {
		if v < 0 {
			cam[i] = 0
		} else if v > max {
			max = v
		}
	}
	if max == 0 {
		return nil, errors.New("activation maps carry no positive signal")
	}
	for i := range cam {
		cam[i] /= max
	}

	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			h := sample(cam, act.Width, act.Height, x, y, img.Width, img.Height)
			r, g, b := jet(h)
			gray := float64(img.Gray[y*img.Width+x])
			// heat over film at fixed opacity
			const alpha = 0.45
			out.SetRGBA(x, y, color.RGBA{
				R: blend(gray, float64(r), alpha),
				G: blend(gray, float64(g), alpha),
				B: blend(gray, float64(b), alpha),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, err
	}
	return &Heatmap{PNG: buf.Bytes(), Width: img.Width, Height: img.Height}, nil
}

// sample bilinearly interpolates the CAM at image coordinates.
func sample(cam []float32, cw, ch, x, y, iw, ihh int) float32 {
	fx := (float32(x) + 0.5) / float32(iw) * float32(cw)
	fy := (float32(y) + 0.5) / float32(ihh) * float32(ch)
	fx -= 0.5
	fy -= 0.5
	x0 := int(fx)
	y0 := int(fy)
	tx := fx - float32(x0)
	ty := fy - float32(y0)
	get := func(cx, cy int) float32 {
		if cx < 0 {
			cx = 0
		}
		if cy < 0 {
			cy = 0
		}
		if cx >= cw {
			cx = cw - 1
		}
		if cy >= ch {
			cy = ch - 1
		}
		return cam[cy*cw+cx]
	}
	top := get(x0, y0)*(1-tx) + get(x0+1, y0)*tx
	bot := get(x0, y0+1)*(1-tx) + get(x0+1, y0+1)*tx
	return top*(1-ty) + bot*ty
}

// jet maps a [0,1] intensity to the JET colormap.
func jet(v float32) (uint8, uint8, uint8) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	r := clampUnit(1.5 - abs(4*v-3))
	g := clampUnit(1.5 - abs(4*v-2))
	b := clampUnit(1.5 - abs(4*v-1))
	return uint8(r * 255), uint8(g * 255), uint8(b * 255)
}

func blend(base, heat, alpha float64) uint8 {
	v := base*(1-alpha) + heat*alpha
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
