package client

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/rdesai/chatsync/internal/protocol"
)

// SendFile sends a file attachment to chatID. The provisional message
// is inserted before the file is read; the file_upload command is
// issued only after the encoding completes. Content defaults to the
// file name when empty, matching how the attachment previews.
func (c *Client) SendFile(chatID, content, path string) error {
	name := filepath.Base(path)
	if content == "" {
		content = name
	}
	provisional := c.store.AppendProvisional(chatID, content, path, name)

	data, err := os.ReadFile(path)
	if err != nil {
		// No command will go out; the optimistic entry must not linger.
		c.store.RemoveMessage(provisional.ID)
		return fmt.Errorf("read %s: %w", path, err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	c.sess.Send(protocol.CmdFileUpload, protocol.FileUploadPayload{
		ChatID:   chatID,
		FileName: name,
		FileSize: int64(len(data)),
		MimeType: mimeType,
		FileData: base64.StdEncoding.EncodeToString(data),
	})
	return nil
}
