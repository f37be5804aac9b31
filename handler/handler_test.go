package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sushi-Mampfer/notes/constant"
	"github.com/Sushi-Mampfer/notes/dto"
	"github.com/Sushi-Mampfer/notes/pkg/asr"
	"github.com/Sushi-Mampfer/notes/pkg/audio"
	"github.com/Sushi-Mampfer/notes/pkg/jobs"
	"github.com/Sushi-Mampfer/notes/pkg/storage"
	"github.com/Sushi-Mampfer/notes/repository"
	"github.com/Sushi-Mampfer/notes/service"
)

type submitterFunc func(ctx context.Context, msg dto.JobMessage) error

func (f submitterFunc) Submit(ctx context.Context, msg dto.JobMessage) error {
	return f(ctx, msg)
}

type transcriberFunc func(ctx context.Context, samples []float32) ([]asr.Segment, error)

func (f transcriberFunc) Transcribe(ctx context.Context, samples []float32) ([]asr.Segment, error) {
	return f(ctx, samples)
}

type summarizerFunc func(ctx context.Context, transcript string) (string, error)

func (f summarizerFunc) Summarize(ctx context.Context, transcript string) (string, error) {
	return f(ctx, transcript)
}

func newDeps(t *testing.T, submit service.Submitter) ServiceDependencies {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo, err := repository.Open(sqlite.Open(filepath.Join(t.TempDir(), "entries.sqlite")))
	require.NoError(t, err)
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	return ServiceDependencies{Repo: repo, Storage: store, Submit: submit}
}

func newRouter(deps ServiceDependencies) *gin.Engine {
	r := gin.New()
	r.POST("/upload", Upload(deps))
	r.GET("/notes", ListNotes(deps))
	return r
}

func multipartBody(t *testing.T, parts map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range parts {
		part, err := writer.CreateFormFile(name, "audio.wav")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func wavBytes(t *testing.T, samples int) []byte {
	t.Helper()
	data, err := audio.Encode16kMono(make([]float32, samples))
	require.NoError(t, err)
	return data
}

func TestUploadAcceptsBatchAndQueuesJobs(t *testing.T) {
	var submitted []dto.JobMessage
	deps := newDeps(t, submitterFunc(func(ctx context.Context, msg dto.JobMessage) error {
		submitted = append(submitted, msg)
		return nil
	}))
	router := newRouter(deps)

	body, contentType := multipartBody(t, map[string][]byte{
		"Meeting": wavBytes(t, 160),
		"Idea":    wavBytes(t, 320),
	})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, submitted, 2)

	entries, err := deps.Repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	names := []string{entries[0].Name, entries[1].Name}
	assert.ElementsMatch(t, []string{"Meeting", "Idea"}, names)
	for _, e := range entries {
		assert.Nil(t, e.Transcript, "transcript must be absent until the job ran")
		assert.Nil(t, e.Summary)

		obj, err := deps.Storage.Get(context.Background(), e.File)
		require.NoError(t, err, "audio must be durably stored")
		obj.Close()
	}

	for _, msg := range submitted {
		job, err := deps.Repo.FindJobById(context.Background(), msg.JobId)
		require.NoError(t, err)
		assert.Equal(t, constant.JobStatusPending, job.Status)
	}
}

func TestUploadRejectsNonMultipartBody(t *testing.T) {
	deps := newDeps(t, submitterFunc(func(ctx context.Context, msg dto.JobMessage) error { return nil }))
	router := newRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadShedsLoadWhenQueueFull(t *testing.T) {
	deps := newDeps(t, submitterFunc(func(ctx context.Context, msg dto.JobMessage) error {
		return jobs.ErrQueueFull
	}))
	router := newRouter(deps)

	body, contentType := multipartBody(t, map[string][]byte{"Meeting": wavBytes(t, 160)})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListNotesRendersProcessingAsNulls(t *testing.T) {
	deps := newDeps(t, submitterFunc(func(ctx context.Context, msg dto.JobMessage) error { return nil }))
	router := newRouter(deps)

	ctx := context.Background()
	first, err := deps.Repo.InsertEntry(ctx, "done", "a.wav")
	require.NoError(t, err)
	require.NoError(t, deps.Repo.UpdateResult(ctx, first, "transcript text", "summary text"))
	_, err = deps.Repo.InsertEntry(ctx, "in progress", "b.wav")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var notes []dto.NoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &notes))
	require.Len(t, notes, 2)

	assert.Equal(t, "done", notes[0].Name)
	require.NotNil(t, notes[0].Transcript)
	assert.Equal(t, "transcript text", *notes[0].Transcript)

	assert.Equal(t, "in progress", notes[1].Name)
	assert.Nil(t, notes[1].Transcript)
	assert.Nil(t, notes[1].Summary)
}

// End-to-end over the handler: upload one file, run its job with fake
// engines, and watch the listing go from "processing" to filled in.
func TestUploadThenPipelineFillsListing(t *testing.T) {
	var deps ServiceDependencies
	deps = newDeps(t, submitterFunc(func(ctx context.Context, msg dto.JobMessage) error {
		return deps.Pipeline.Process(ctx, msg)
	}))
	deps.Pipeline = service.NewPipeline(deps.Repo, deps.Storage,
		transcriberFunc(func(ctx context.Context, samples []float32) ([]asr.Segment, error) {
			return []asr.Segment{{Start: 0, End: 2, Text: "hello world"}}, nil
		}),
		summarizerFunc(func(ctx context.Context, transcript string) (string, error) {
			return "they said hello", nil
		}), 0)
	router := newRouter(deps)

	body, contentType := multipartBody(t, map[string][]byte{"Standup": wavBytes(t, 160)})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var notes []dto.NoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "Standup", notes[0].Name)
	require.NotNil(t, notes[0].Transcript)
	assert.Equal(t, "[0 - 200]: hello world", *notes[0].Transcript)
	require.NotNil(t, notes[0].Summary)
	assert.Equal(t, "they said hello", *notes[0].Summary)
}
