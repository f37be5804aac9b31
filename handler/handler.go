package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/Sushi-Mampfer/notes/constant"
	"github.com/Sushi-Mampfer/notes/dto"
	"github.com/Sushi-Mampfer/notes/entities"
	"github.com/Sushi-Mampfer/notes/pkg/jobs"
	"github.com/Sushi-Mampfer/notes/pkg/storage"
	"github.com/Sushi-Mampfer/notes/repository"
	"github.com/Sushi-Mampfer/notes/service"
)

type ServiceDependencies struct {
	Pipeline service.Pipeline
	Repo     repository.EntryRepository
	Storage  storage.Storage
	Submit   service.Submitter
}

// Upload accepts one multipart request per sync batch, one part per audio
// file, the part's field name being the recording's title. Each part is
// stored, inserted and queued before the next one is read; a failing part
// aborts the request but parts already accepted stay accepted.
func Upload(deps ServiceDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		reader, err := c.Request.MultipartReader()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart body required"})
			return
		}

		for {
			part, err := reader.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("failed to read multipart part")
				c.JSON(http.StatusBadRequest, gin.H{"error": "malformed multipart body"})
				return
			}

			name := part.FormName()
			if name == "" {
				name = part.FileName()
			}

			objectName := uuid.New().String() + ".wav"
			if err := deps.Storage.Put(ctx, objectName, part, -1); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("name", name).Msg("failed to store audio object")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
				return
			}

			entryId, err := deps.Repo.InsertEntry(ctx, name, objectName)
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("name", name).Msg("failed to insert entry")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist entry"})
				return
			}

			job := &entities.Job{
				ID:      uuid.New(),
				EntryId: entryId,
				Status:  constant.JobStatusPending,
			}
			if err := deps.Repo.CreateJob(ctx, job); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Uint32("entry_id", entryId).Msg("failed to create job")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
				return
			}

			msg := dto.JobMessage{JobId: job.ID, EntryId: entryId, ObjectPath: objectName}
			if err := deps.Submit.Submit(ctx, msg); err != nil {
				if errors.Is(err, jobs.ErrQueueFull) {
					c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many jobs queued"})
					return
				}
				zerolog.Ctx(ctx).Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to submit job")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue job"})
				return
			}

			zerolog.Ctx(ctx).Info().Str("job_id", job.ID.String()).Uint32("entry_id", entryId).Str("name", name).Msg("upload accepted")
		}

		c.Status(http.StatusOK)
	}
}

// ListNotes returns every entry; nil transcript and summary mean the
// entry is still being processed.
func ListNotes(deps ServiceDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := deps.Repo.ListAll(c.Request.Context())
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to list entries")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list entries"})
			return
		}

		notes := make([]dto.NoteResponse, 0, len(entries))
		for _, e := range entries {
			notes = append(notes, dto.NoteResponse{
				Name:       e.Name,
				Transcript: e.Transcript,
				Summary:    e.Summary,
			})
		}
		c.JSON(http.StatusOK, notes)
	}
}

// JobHandler runs queued jobs delivered over RabbitMQ.
func JobHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var job dto.JobMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal job message")
		return err
	}

	return deps.Pipeline.Process(ctx, job)
}
