package media

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "sigmabot/pkg/errors"
)

// noiseGIF builds an animation whose frames are random pixels, which
// compresses poorly and forces the shrink loop to work
func noiseGIF(w, h, frames int, seed int64) *gif.GIF {
	rng := rand.New(rand.NewSource(seed))
	g := &gif.GIF{Config: image.Config{ColorModel: color.Palette(palette.Plan9), Width: w, Height: h}}
	for i := 0; i < frames; i++ {
		img := image.NewPaletted(image.Rect(0, 0, w, h), palette.Plan9)
		for p := range img.Pix {
			img.Pix[p] = uint8(rng.Intn(len(palette.Plan9)))
		}
		g.Image = append(g.Image, img)
		g.Delay = append(g.Delay, 10)
	}
	return g
}

func solidFrame(w, h int, p color.Palette, idx uint8) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, w, h), p)
	for i := range img.Pix {
		img.Pix[i] = idx
	}
	return img
}

func decode(t *testing.T, data []byte) *gif.GIF {
	t.Helper()
	g, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	return g
}

func TestFitAlreadySmallReturnsOriginalEncoding(t *testing.T) {
	src := noiseGIF(16, 16, 2, 1)
	fitter := NewFitter(DefaultFitterOptions())

	res, err := fitter.Fit(src, DefaultBudget)
	require.NoError(t, err)
	assert.True(t, res.Fits)
	assert.Zero(t, res.Iterations)
	assert.Equal(t, 16, res.Width)
	assert.Equal(t, 16, res.Height)

	again, err := fitter.Fit(src, DefaultBudget)
	require.NoError(t, err)
	assert.Equal(t, res.Data, again.Data, "fitting is deterministic")

	out := decode(t, res.Data)
	assert.Equal(t, 0, out.LoopCount)
	assert.Equal(t, 16, out.Config.Width)
}

func TestFitShrinksUntilUnderBudget(t *testing.T) {
	src := noiseGIF(64, 64, 3, 2)
	fitter := NewFitter(DefaultFitterOptions())

	initial, err := fitter.Fit(src, DefaultBudget)
	require.NoError(t, err)
	budget := len(initial.Data) / 2

	res, err := fitter.Fit(src, budget)
	require.NoError(t, err)
	assert.True(t, res.Fits)
	assert.Positive(t, res.Iterations)
	assert.LessOrEqual(t, len(res.Data), budget)
	assert.Less(t, res.Width, 64)

	out := decode(t, res.Data)
	assert.Equal(t, res.Width, out.Config.Width)
	assert.Equal(t, res.Height, out.Config.Height)
}

func TestFitTerminatesWithTinyBudget(t *testing.T) {
	var attempts []Attempt
	opts := DefaultFitterOptions()
	opts.Observe = func(a Attempt) { attempts = append(attempts, a) }

	res, err := NewFitter(opts).Fit(noiseGIF(48, 30, 2, 3), 10)
	require.NoError(t, err)
	assert.False(t, res.Fits)
	assert.NotEmpty(t, res.Data)
	assert.LessOrEqual(t, len(attempts), DefaultMaxIterations+1)

	for _, a := range attempts {
		assert.LessOrEqual(t, len(res.Data), a.Size, "result is the smallest attempt")
	}

	last := attempts[len(attempts)-1]
	assert.Equal(t, 1, last.Width)
	assert.Equal(t, 1, last.Height)
	decode(t, res.Data)
}

func TestFitRespectsMaxIterations(t *testing.T) {
	var attempts []Attempt
	opts := FitterOptions{MaxIterations: 3, Optimize: true, Observe: func(a Attempt) { attempts = append(attempts, a) }}

	res, err := NewFitter(opts).Fit(noiseGIF(100, 100, 1, 4), 10)
	require.NoError(t, err)
	assert.False(t, res.Fits)
	require.Len(t, attempts, 4)
	assert.Equal(t, 3, attempts[3].Iteration)
	assert.Equal(t, 72, attempts[3].Width)
}

func TestFitDimensionsStrictlyDecrease(t *testing.T) {
	var attempts []Attempt
	opts := DefaultFitterOptions()
	opts.Observe = func(a Attempt) { attempts = append(attempts, a) }

	_, err := NewFitter(opts).Fit(noiseGIF(40, 7, 1, 5), 10)
	require.NoError(t, err)

	require.Greater(t, len(attempts), 1)
	assert.Equal(t, 40, attempts[0].Width)
	assert.Equal(t, 36, attempts[1].Width, "0.9 scale is truncated")
	assert.Equal(t, 6, attempts[1].Height)

	for i := 1; i < len(attempts); i++ {
		prev, cur := attempts[i-1], attempts[i]
		assert.Equal(t, prev.Iteration+1, cur.Iteration)
		assert.True(t, cur.Width < prev.Width || prev.Width == 1, "width %d -> %d", prev.Width, cur.Width)
		assert.True(t, cur.Height < prev.Height || prev.Height == 1, "height %d -> %d", prev.Height, cur.Height)
		assert.True(t, cur.Width*cur.Height < prev.Width*prev.Height)
	}
}

func TestFitInvalidInput(t *testing.T) {
	fitter := NewFitter(DefaultFitterOptions())

	_, err := fitter.Fit(nil, 100)
	assert.True(t, errs.Is(err, errs.ErrorTypeInvalidInput))

	_, err = fitter.Fit(&gif.GIF{}, 100)
	assert.True(t, errs.Is(err, errs.ErrorTypeInvalidInput))

	_, err = fitter.Fit(noiseGIF(4, 4, 1, 6), 0)
	assert.True(t, errs.Is(err, errs.ErrorTypeInvalidInput))
}

func TestOptimizeMergesDuplicateFrames(t *testing.T) {
	p := color.Palette(palette.Plan9)
	src := &gif.GIF{
		Config: image.Config{ColorModel: p, Width: 8, Height: 8},
		Image:  []*image.Paletted{solidFrame(8, 8, p, 1), solidFrame(8, 8, p, 1), solidFrame(8, 8, p, 1), solidFrame(8, 8, p, 2)},
		Delay:  []int{10, 20, 30, 5},
	}

	res, err := NewFitter(DefaultFitterOptions()).Fit(src, DefaultBudget)
	require.NoError(t, err)

	out := decode(t, res.Data)
	require.Len(t, out.Image, 2)
	assert.Equal(t, []int{60, 5}, out.Delay)

	plain, err := NewFitter(FitterOptions{}).Fit(src, DefaultBudget)
	require.NoError(t, err)
	assert.Len(t, decode(t, plain.Data).Image, 4)
}

func TestOptimizeCropsToChangedRegion(t *testing.T) {
	p := color.Palette(palette.Plan9)
	first := solidFrame(10, 10, p, 1)
	second := solidFrame(10, 10, p, 1)
	second.SetColorIndex(3, 4, 2)
	second.SetColorIndex(5, 6, 2)

	src := &gif.GIF{
		Config: image.Config{ColorModel: p, Width: 10, Height: 10},
		Image:  []*image.Paletted{first, second},
		Delay:  []int{10, 10},
	}

	res, err := NewFitter(DefaultFitterOptions()).Fit(src, DefaultBudget)
	require.NoError(t, err)

	out := decode(t, res.Data)
	require.Len(t, out.Image, 2)
	assert.Equal(t, image.Rect(0, 0, 10, 10), out.Image[0].Bounds())
	assert.Equal(t, image.Rect(3, 4, 6, 7), out.Image[1].Bounds())
}

func TestOptimizeEmitsFullFrameWhenTransparencyReturns(t *testing.T) {
	p := color.Palette{color.RGBA{0, 0, 0, 0}, color.RGBA{255, 0, 0, 255}}
	first := solidFrame(4, 4, p, 1)
	second := solidFrame(4, 4, p, 1)
	second.SetColorIndex(0, 0, 0)

	src := &gif.GIF{
		Config:   image.Config{ColorModel: p, Width: 4, Height: 4},
		Image:    []*image.Paletted{first, second},
		Delay:    []int{10, 10},
		Disposal: []byte{gif.DisposalBackground, gif.DisposalNone},
	}

	res, err := NewFitter(DefaultFitterOptions()).Fit(src, DefaultBudget)
	require.NoError(t, err)

	out := decode(t, res.Data)
	require.Len(t, out.Image, 2)
	assert.Equal(t, byte(gif.DisposalBackground), out.Disposal[0])
	assert.Equal(t, image.Rect(0, 0, 4, 4), out.Image[1].Bounds())
	_, _, _, a := out.Image[1].At(0, 0).RGBA()
	assert.Zero(t, a)
}

func TestCoalesceAppliesDisposal(t *testing.T) {
	p := color.Palette{color.RGBA{0, 0, 0, 0}, color.RGBA{255, 0, 0, 255}, color.RGBA{0, 0, 255, 255}}

	background := solidFrame(4, 4, p, 1)
	patch := image.NewPaletted(image.Rect(1, 1, 3, 3), p)
	for i := range patch.Pix {
		patch.Pix[i] = 2
	}
	empty := image.NewPaletted(image.Rect(0, 0, 1, 1), p)

	c := coalesce(&gif.GIF{
		Config:   image.Config{ColorModel: p, Width: 4, Height: 4},
		Image:    []*image.Paletted{background, patch, empty},
		Disposal: []byte{gif.DisposalNone, gif.DisposalPrevious, gif.DisposalNone},
	})

	require.Len(t, c.frames, 3)
	assert.Equal(t, 4, c.width)
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, c.frames[1].RGBAAt(1, 1))
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, c.frames[2].RGBAAt(1, 1), "previous disposal restores the canvas")
	assert.Equal(t, []int{0, 0, 0}, c.delays)
}
