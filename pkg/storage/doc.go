// Package storage manages the scratch files that hold media between download
// and upload.
//
// Writes go through a temporary file and an atomic rename, so a reader never
// sees a partially written GIF. Every file is tracked until Remove, and Close
// sweeps whatever is left.
//
// Usage:
//
//	scratch, err := storage.NewScratch(cfg.Media.TempDir)
//	if err != nil {
//	    return err
//	}
//	defer scratch.Close()
//
//	path, size, err := scratch.Save(resp.Body, ".gif")
//	...
//	err = scratch.Overwrite(path, shrunk)
//	...
//	scratch.Remove(path)
package storage
