package model

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document represents one indexed rulebook
type Document struct {
	RID        uuid.UUID `json:"rid"`
	Title      string    `json:"title"`
	Source     string    `json:"source"`
	PageCount  int       `json:"page_count"`
	ChunkCount int       `json:"chunk_count"`
	Content    string    `json:"-"` // Extracted text, only held during a build
	Metadata   Metadata  `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewDocumentFromPDF creates a Document for an extracted PDF.
// The title defaults to the file name without extension, the source to the base file name.
func NewDocumentFromPDF(filePath string, content string, pageCount int) *Document {
	filename := filepath.Base(filePath)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))
	if title == "" {
		title = filename
	}

	return &Document{
		Title:     title,
		Source:    filename,
		PageCount: pageCount,
		Content:   content,
		Metadata:  Metadata{"path": filePath},
	}
}
