package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/obrasync/obrasync/internal/client/models"
	"github.com/obrasync/obrasync/internal/client/queue"
)

// AddLogEntry prompts for a site-log entry and submits it.
func (a *App) AddLogEntry(ctx context.Context) error {
	title, err := GetSimpleText(a.reader, "Enter title:", a.out)
	if err != nil {
		return err
	}
	text, err := GetMultiline(a.reader, "Enter log text:", a.out)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"title": title, "text": text})
	if err != nil {
		return err
	}

	return a.submit(ctx, queue.Request{
		Endpoint:   "/log-entries",
		Method:     http.MethodPost,
		Payload:    payload,
		EntityType: models.EntityLogEntry,
	})
}

// AddComment prompts for a target entity and a comment body and submits it.
func (a *App) AddComment(ctx context.Context) error {
	entityID, err := GetSimpleText(a.reader, "Enter target entity id:", a.out)
	if err != nil {
		return err
	}
	text, err := GetMultiline(a.reader, "Enter comment:", a.out)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"entityId": entityID, "text": text})
	if err != nil {
		return err
	}

	return a.submit(ctx, queue.Request{
		Endpoint:   "/comments",
		Method:     http.MethodPost,
		Payload:    payload,
		EntityType: models.EntityComment,
	})
}

// AddAttachment prompts for a target entity and a file path and submits the
// file as a multipart form. The content type (with its boundary) is captured
// at build time so a deferred replay reissues the body byte for byte.
func (a *App) AddAttachment(ctx context.Context) error {
	entityID, err := GetSimpleText(a.reader, "Enter target entity id:", a.out)
	if err != nil {
		return err
	}
	path, err := GetSimpleText(a.reader, "Enter file path:", a.out)
	if err != nil {
		return err
	}

	payload, contentType, err := buildAttachmentForm(entityID, path)
	if err != nil {
		printlnFn("Could not read file:", err.Error())
		return err
	}

	return a.submit(ctx, queue.Request{
		Endpoint:    "/attachments",
		Method:      http.MethodPost,
		Payload:     payload,
		ContentType: contentType,
		EntityType:  models.EntityAttachment,
		EntityID:    entityID,
	})
}

// buildAttachmentForm reads the file and assembles a multipart/form-data
// body. Returns the body and its content type including the boundary.
func buildAttachmentForm(entityID, path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("entityId", entityID); err != nil {
		return nil, "", err
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), mw.FormDataContentType(), nil
}
