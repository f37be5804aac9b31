package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sushi-Mampfer/notes/device"
	"github.com/Sushi-Mampfer/notes/dto"
)

// SyncError wraps whatever prevented a batch upload from being
// acknowledged. When it is returned, no recording in the batch was
// marked uploaded.
type SyncError struct {
	Cause error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("batch upload failed: %v", e.Cause)
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

type Sync interface {
	Upload(ctx context.Context, sel dto.UploadSelection) error
}

type syncClient struct {
	store      *device.Store
	httpClient *http.Client
}

func NewSyncClient(store *device.Store, httpClient *http.Client) Sync {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &syncClient{store: store, httpClient: httpClient}
}

// Upload sends every selected recording in one multipart request and
// flips their uploaded flags only after the endpoint acknowledged the
// whole batch. Any failure leaves every flag untouched.
func (s *syncClient) Upload(ctx context.Context, sel dto.UploadSelection) error {
	recs, err := s.store.AcquireForUpload(ctx, sel.Files)
	if err != nil {
		return err
	}
	defer s.store.ReleaseUpload(sel.Files)

	if err := s.store.SaveEndpointURL(ctx, sel.Url); err != nil {
		return err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, rec := range recs {
		part, err := writer.CreateFormFile(rec.Name, filepath.Base(rec.File))
		if err != nil {
			return &SyncError{Cause: err}
		}
		f, err := os.Open(rec.File)
		if err != nil {
			return &SyncError{Cause: err}
		}
		if _, err := io.Copy(part, f); err != nil {
			f.Close()
			return &SyncError{Cause: err}
		}
		f.Close()
	}
	if err := writer.Close(); err != nil {
		return &SyncError{Cause: err}
	}

	url := strings.TrimSuffix(sel.Url, "/") + "/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return &SyncError{Cause: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &SyncError{Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &SyncError{Cause: fmt.Errorf("endpoint returned status %d", resp.StatusCode)}
	}

	if err := s.store.MarkUploaded(ctx, sel.Files); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Int("files", len(recs)).Str("endpoint", sel.Url).Msg("batch uploaded")
	return nil
}
