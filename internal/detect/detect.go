// Package detect decides which remote documents changed since the last run.
package detect

import "github.com/joescharf/portfolio-sync/internal/models"

// Changes is the outcome of comparing a listing against stored metadata.
type Changes struct {
	CV           *models.RemoteFile
	Image        *models.RemoteFile
	CVChanged    bool
	ImageChanged bool
}

// Any reports whether either slot changed.
func (c Changes) Any() bool { return c.CVChanged || c.ImageChanged }

// Detect picks the first PDF and the first image from files (expected newest
// first) and compares their modification times with meta. A missing slot is
// never reported as changed.
func Detect(files []models.RemoteFile, meta models.SyncMetadata) Changes {
	var c Changes
	for i := range files {
		f := &files[i]
		switch {
		case c.CV == nil && f.IsPDF():
			c.CV = f
		case c.Image == nil && f.IsImage():
			c.Image = f
		}
	}
	if c.CV != nil {
		c.CVChanged = c.CV.ModifiedTime != meta.CVModifiedTime
	}
	if c.Image != nil {
		c.ImageChanged = c.Image.ModifiedTime != meta.ImgModifiedTime
	}
	return c
}
