package state

import (
	"testing"

	"github.com/rdesai/chatsync/internal/models"
)

func TestNormalizeFileURL(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"empty", "", ""},
		{"absolute http", "http://cdn.example.com/a.png", "http://cdn.example.com/a.png"},
		{"absolute https", "https://cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{"relative with slash", "/files/a.png", "http://localhost:6007/files/a.png"},
		{"relative without slash", "files/a.png", "http://localhost:6007/files/a.png"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeFileURL("http://localhost:6007", tc.in); got != tc.want {
				t.Errorf("normalizeFileURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeMessagePromotesAttachment(t *testing.T) {
	m := normalizeMessage("http://localhost:6007", models.Message{
		ID: "m1",
		Attachments: []models.Attachment{
			{FileURL: "/files/doc.pdf", FileName: "doc.pdf"},
			{FileURL: "/files/other.pdf", FileName: "other.pdf"},
		},
	})

	if m.FileURL != "http://localhost:6007/files/doc.pdf" {
		t.Errorf("first attachment not promoted: %q", m.FileURL)
	}
	if m.FileName != "doc.pdf" {
		t.Errorf("attachment name not promoted: %q", m.FileName)
	}
}

func TestNormalizeMessageKeepsDirectFileRef(t *testing.T) {
	m := normalizeMessage("http://localhost:6007", models.Message{
		ID:       "m1",
		FileURL:  "/files/direct.png",
		FileName: "direct.png",
		Attachments: []models.Attachment{
			{FileURL: "/files/att.png", FileName: "att.png"},
		},
	})

	if m.FileURL != "http://localhost:6007/files/direct.png" {
		t.Errorf("direct file ref overwritten: %q", m.FileURL)
	}
}

func TestNormalizeMessageWithoutFiles(t *testing.T) {
	m := normalizeMessage("http://localhost:6007", models.Message{ID: "m1", Content: "text only"})
	if m.FileURL != "" || m.FileName != "" {
		t.Errorf("text message grew file fields: %q %q", m.FileURL, m.FileName)
	}
}
