package media

import (
	"image/gif"

	errs "sigmabot/pkg/errors"
)

const (
	// DefaultScaleFactor is applied to both dimensions on every shrink step
	DefaultScaleFactor = 0.9
	// DefaultMaxIterations bounds the shrink loop
	DefaultMaxIterations = 40
	// DefaultBudget is just under the platform's 5 MB media ceiling
	DefaultBudget = 5000000
)

// FitterOptions configures a Fitter
type FitterOptions struct {
	ScaleFactor   float64
	MaxIterations int
	// Optimize enables frame reduction: merging duplicate frames and
	// cropping frames to their changed region
	Optimize bool
	// Observe, when set, receives every encoding attempt in order
	Observe func(Attempt)
}

// DefaultFitterOptions returns the standard options
func DefaultFitterOptions() FitterOptions {
	return FitterOptions{
		ScaleFactor:   DefaultScaleFactor,
		MaxIterations: DefaultMaxIterations,
		Optimize:      true,
	}
}

// Attempt describes one encoding pass
type Attempt struct {
	Iteration int
	Width     int
	Height    int
	Size      int
}

// Result is the outcome of fitting an animation under a byte budget
type Result struct {
	Data   []byte
	Width  int
	Height int
	// Iterations is the shrink step that produced Data
	Iterations int
	// Fits is false when the loop gave up; Data then holds the smallest attempt
	Fits bool
}

// Fitter shrinks animated GIFs until their encoding fits a byte budget
type Fitter struct {
	opts FitterOptions
}

// NewFitter creates a Fitter, filling unset options with defaults
func NewFitter(opts FitterOptions) *Fitter {
	if opts.ScaleFactor <= 0 || opts.ScaleFactor >= 1 {
		opts.ScaleFactor = DefaultScaleFactor
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &Fitter{opts: opts}
}

// Fit encodes src as a looping animation and, while the encoding exceeds
// budget bytes, scales every frame down by the scale factor and re-encodes.
// It stops after MaxIterations shrinks or once both dimensions reach 1.
func (f *Fitter) Fit(src *gif.GIF, budget int) (*Result, error) {
	if src == nil || len(src.Image) == 0 {
		return nil, errs.New(errs.ErrorTypeInvalidInput, 0, "gif has no frames")
	}
	if budget <= 0 {
		return nil, errs.New(errs.ErrorTypeInvalidInput, 0, "budget must be positive, got %d", budget)
	}

	c := coalesce(src)
	if c.width <= 0 || c.height <= 0 {
		return nil, errs.New(errs.ErrorTypeInvalidInput, 0, "gif has empty canvas")
	}

	w, h := c.width, c.height
	data, err := encode(c, w, h, f.opts.Optimize)
	if err != nil {
		return nil, err
	}
	f.observe(0, w, h, len(data))

	best := &Result{Data: data, Width: w, Height: h}
	if len(data) <= budget {
		best.Fits = true
		return best, nil
	}

	for i := 1; i <= f.opts.MaxIterations; i++ {
		nw, nh := f.shrink(w), f.shrink(h)
		if nw == w && nh == h {
			break
		}
		w, h = nw, nh

		data, err := encode(c, w, h, f.opts.Optimize)
		if err != nil {
			return nil, err
		}
		f.observe(i, w, h, len(data))

		if len(data) <= len(best.Data) {
			best = &Result{Data: data, Width: w, Height: h, Iterations: i}
		}
		if len(data) <= budget {
			best.Fits = true
			return best, nil
		}
	}

	return best, nil
}

// shrink truncates d scaled by the factor, never going below 1
func (f *Fitter) shrink(d int) int {
	n := int(float64(d) * f.opts.ScaleFactor)
	if n < 1 {
		return 1
	}
	return n
}

func (f *Fitter) observe(iteration, w, h, size int) {
	if f.opts.Observe != nil {
		f.opts.Observe(Attempt{Iteration: iteration, Width: w, Height: h, Size: size})
	}
}
