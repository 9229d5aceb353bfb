package models

import "strings"

const (
	MimePDF         = "application/pdf"
	MimeImagePrefix = "image/"
)

// RemoteFile is a file listed in the cloud-drive folder.
type RemoteFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime"`
}

// IsPDF reports whether the file is a PDF document.
func (f RemoteFile) IsPDF() bool { return f.MimeType == MimePDF }

// IsImage reports whether the file is an image of any kind.
func (f RemoteFile) IsImage() bool { return strings.HasPrefix(f.MimeType, MimeImagePrefix) }

// SyncMetadata is the persisted change-detection state.
type SyncMetadata struct {
	CVModifiedTime   string   `json:"cvModifiedTime"`
	ImgModifiedTime  string   `json:"imgModifiedTime"`
	LastProjectCount int      `json:"lastProjectCount"`
	LastProjectLinks []string `json:"lastProjectLinks,omitempty"`
}

// Skill is a single named skill with its icon.
type Skill struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// SkillsDocument is the categorized skill set extracted from the CV.
type SkillsDocument struct {
	Stacks []Skill `json:"stacks" validate:"required,min=1"`
	Tools  []Skill `json:"tools" validate:"required,min=1"`
}
