package media

import (
	"context"
	"errors"
	"fmt"
	"image/gif"
	"io"
	"os"

	errs "sigmabot/pkg/errors"
	"sigmabot/pkg/logger"
	"sigmabot/pkg/storage"
)

// ErrNoMedia is returned when the media search produced no results
var ErrNoMedia = errors.New("no media found")

// Source finds and downloads animated GIFs
type Source interface {
	RandomGIF(ctx context.Context, term string) (string, bool, error)
	Download(ctx context.Context, url string, w io.Writer) error
}

// Artifact is a fitted GIF stored in a scratch file. It must be closed after
// use to remove the file.
type Artifact struct {
	Path       string
	Size       int64
	Width      int
	Height     int
	Iterations int
	Fits       bool

	scratch *storage.Scratch
}

// Open opens the artifact's file for reading
func (a *Artifact) Open() (*os.File, error) {
	return os.Open(a.Path)
}

// Close removes the artifact's file
func (a *Artifact) Close() error {
	if a.scratch == nil {
		return nil
	}
	return a.scratch.Remove(a.Path)
}

// Fetcher turns a search term into a fitted GIF on disk
type Fetcher struct {
	source  Source
	scratch *storage.Scratch
	fitter  *Fitter
	budget  int
	logger  logger.Logger
}

// NewFetcher creates a Fetcher. A non-positive budget uses DefaultBudget.
func NewFetcher(source Source, scratch *storage.Scratch, fitter *Fitter, budget int, log logger.Logger) *Fetcher {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if fitter == nil {
		fitter = NewFitter(DefaultFitterOptions())
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		source:  source,
		scratch: scratch,
		fitter:  fitter,
		budget:  budget,
		logger:  logger.Component(log, "media"),
	}
}

// Fetch picks a random GIF for term, downloads it and fits it under the
// budget. It returns ErrNoMedia when the search has no results. On any
// failure the scratch file is removed.
func (f *Fetcher) Fetch(ctx context.Context, term string) (*Artifact, error) {
	url, ok, err := f.source.RandomGIF(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("failed to search media: %w", err)
	}
	if !ok {
		return nil, ErrNoMedia
	}

	path, size, err := f.download(ctx, url)
	if err != nil {
		return nil, err
	}

	artifact, err := f.fit(path)
	if err != nil {
		if rmErr := f.scratch.Remove(path); rmErr != nil {
			f.logger.WithError(rmErr).Warn("Failed to remove scratch file")
		}
		return nil, err
	}

	f.logger.WithFields(map[string]interface{}{
		"url":           url,
		"original_size": size,
		"size":          artifact.Size,
		"width":         artifact.Width,
		"height":        artifact.Height,
		"iterations":    artifact.Iterations,
		"fits":          artifact.Fits,
	}).Debug("Fetched media")

	return artifact, nil
}

// download streams url into a new scratch file
func (f *Fetcher) download(ctx context.Context, url string) (string, int64, error) {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(f.source.Download(ctx, url, pw))
	}()

	path, size, err := f.scratch.Save(pr, ".gif")
	if err != nil {
		pr.CloseWithError(err)
		return "", 0, fmt.Errorf("failed to download media: %w", err)
	}
	return path, size, nil
}

func (f *Fetcher) fit(path string) (*Artifact, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open media: %w", err)
	}
	src, err := gif.DecodeAll(file)
	file.Close()
	if err != nil {
		return nil, errs.New(errs.ErrorTypeParsing, 0, "failed to decode gif: %v", err)
	}

	res, err := f.fitter.Fit(src, f.budget)
	if err != nil {
		return nil, fmt.Errorf("failed to fit media: %w", err)
	}

	if err := f.scratch.Overwrite(path, res.Data); err != nil {
		return nil, err
	}

	return &Artifact{
		Path:       path,
		Size:       int64(len(res.Data)),
		Width:      res.Width,
		Height:     res.Height,
		Iterations: res.Iterations,
		Fits:       res.Fits,
		scratch:    f.scratch,
	}, nil
}
