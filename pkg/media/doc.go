// Package media fetches themed animated GIFs and fits them under the
// platform's upload size limit.
//
// Fitter coalesces the frames of a decoded GIF onto the full canvas, encodes
// them as a looping animation with frame reduction, and shrinks both
// dimensions by a fixed factor until the encoding fits the budget. The loop is
// bounded; when it gives up the smallest attempt is returned with Fits unset.
//
// Fetcher ties a Source (the GIF search service), a storage.Scratch and a
// Fitter together:
//
//	artifact, err := fetcher.Fetch(ctx, "sigma")
//	if errors.Is(err, media.ErrNoMedia) {
//	    // reply without media
//	}
//	defer artifact.Close()
package media
