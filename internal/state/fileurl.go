package state

import (
	"strings"

	"github.com/rdesai/chatsync/internal/models"
)

// normalizeFileURL resolves a possibly-relative file URL against the
// backend origin. Absolute URLs pass through untouched; an empty input
// stays empty so a missing attachment simply renders without one.
func normalizeFileURL(origin, fileURL string) string {
	if fileURL == "" {
		return ""
	}
	if strings.HasPrefix(fileURL, "http://") || strings.HasPrefix(fileURL, "https://") {
		return fileURL
	}
	return strings.TrimSuffix(origin, "/") + "/" + strings.TrimPrefix(fileURL, "/")
}

// normalizeMessage rewrites a message's file references to absolute
// URLs. When a message carries structured attachments but no direct
// file reference, the first attachment is promoted to the primary file
// fields so display code has a single contract regardless of which
// shape the backend used.
func normalizeMessage(origin string, m models.Message) models.Message {
	m.FileURL = normalizeFileURL(origin, m.FileURL)
	for i := range m.Attachments {
		m.Attachments[i].FileURL = normalizeFileURL(origin, m.Attachments[i].FileURL)
	}
	if m.FileURL == "" && len(m.Attachments) > 0 {
		m.FileURL = m.Attachments[0].FileURL
		m.FileName = m.Attachments[0].FileName
	}
	return m
}
