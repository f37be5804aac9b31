package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sushi-Mampfer/notes/constant"
	"github.com/Sushi-Mampfer/notes/dto"
	"github.com/Sushi-Mampfer/notes/pkg/asr"
	"github.com/Sushi-Mampfer/notes/pkg/audio"
	"github.com/Sushi-Mampfer/notes/pkg/storage"
	"github.com/Sushi-Mampfer/notes/repository"
)

var ErrNonRetryable = errors.New("non-retryable error")

// Transcriber converts mono 16 kHz samples into ordered speech segments.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32) ([]asr.Segment, error)
}

// Summarizer condenses a transcript into a short text.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// Submitter is the pipeline submission boundary. The in-process bounded
// pool and the queue publisher both implement it.
type Submitter interface {
	Submit(ctx context.Context, msg dto.JobMessage) error
}

type Pipeline interface {
	Process(ctx context.Context, message dto.JobMessage) error
	RequeuePending(ctx context.Context, submit Submitter) error
}

type pipeline struct {
	repo        repository.EntryRepository
	store       storage.Storage
	transcriber Transcriber
	summarizer  Summarizer
	timeout     time.Duration
}

func NewPipeline(repo repository.EntryRepository, store storage.Storage, t Transcriber, s Summarizer, timeout time.Duration) Pipeline {
	return &pipeline{
		repo:        repo,
		store:       store,
		transcriber: t,
		summarizer:  s,
		timeout:     timeout,
	}
}

// Process runs one job end to end: fetch audio, resample, transcribe,
// summarize, persist both results in a single write. A non-retryable (or
// timed out) job ends in a terminal FAILED state; a retryable failure
// moves the job back to PENDING for redelivery.
func (p *pipeline) Process(ctx context.Context, message dto.JobMessage) (err error) {
	zerolog.Ctx(ctx).Info().Str("job_id", message.JobId.String()).Uint32("entry_id", message.EntryId).Msg("processing job")

	job, err := p.repo.FindJobById(ctx, message.JobId)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to find job by id")
		return err
	}

	if job.Status != constant.JobStatusPending {
		zerolog.Ctx(ctx).Info().Str("job_id", message.JobId.String()).Msg("job is not pending")
		return nil
	}

	if err = p.repo.UpdateStatusJob(ctx, constant.JobStatusProcessing, message.JobId); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to update job status")
		return err
	}

	defer func() {
		if err == nil {
			return
		}
		status := constant.JobStatusPending
		if errors.Is(err, ErrNonRetryable) {
			status = constant.JobStatusFailed
		}
		if updateErr := p.repo.UpdateStatusJob(ctx, status, message.JobId); updateErr != nil {
			zerolog.Ctx(ctx).Error().Err(updateErr).Msg("failed to update job status")
		}
	}()

	jobCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	obj, err := p.store.Get(jobCtx, message.ObjectPath)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to fetch audio object")
		return err
	}
	samples, rate, channels, err := audio.Decode(obj)
	obj.Close()
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to decode audio")
		return errors.Join(ErrNonRetryable, err)
	}

	samples = audio.Downmix(samples, channels)
	samples = audio.Resample(samples, rate)

	segments, err := p.transcriber.Transcribe(jobCtx, samples)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to transcribe audio")
		return p.stepErr(jobCtx, err)
	}
	transcript := formatTranscript(segments)

	summary, err := p.summarizer.Summarize(jobCtx, transcript)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to summarize transcript")
		return p.stepErr(jobCtx, err)
	}

	if err = p.repo.UpdateResult(ctx, message.EntryId, transcript, summary); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The entry was removed while the job ran; nothing left to
			// persist the result into.
			zerolog.Ctx(ctx).Error().Err(err).Uint32("entry_id", message.EntryId).Msg("entry vanished before results could be stored")
			err = nil
		} else {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to store results")
			return err
		}
	}

	if err = p.repo.UpdateStatusJob(ctx, constant.JobStatusCompleted, message.JobId); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to update job status")
		return err
	}

	zerolog.Ctx(ctx).Info().Str("job_id", message.JobId.String()).Msg("job completed")
	return nil
}

// stepErr decides whether a failed inference call may be retried. A job
// that ran into its deadline is terminal.
func (p *pipeline) stepErr(jobCtx context.Context, err error) error {
	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrNonRetryable, err)
	}
	return err
}

// RequeuePending resubmits jobs that were accepted but never finished,
// typically after a restart. FAILED jobs stay failed.
func (p *pipeline) RequeuePending(ctx context.Context, submit Submitter) error {
	jobs, err := p.repo.PendingJobs(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		entry, err := p.repo.FindEntryById(ctx, job.EntryId)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("job_id", job.ID.String()).Msg("pending job without entry")
			continue
		}
		msg := dto.JobMessage{JobId: job.ID, EntryId: entry.ID, ObjectPath: entry.File}
		if err := submit.Submit(ctx, msg); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to requeue job")
			continue
		}
		zerolog.Ctx(ctx).Info().Str("job_id", job.ID.String()).Msg("requeued pending job")
	}
	return nil
}

// formatTranscript concatenates segments with their time ranges, stamps
// in centiseconds.
func formatTranscript(segments []asr.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d - %d]: %s", int64(seg.Start*100), int64(seg.End*100), strings.TrimSpace(seg.Text))
	}
	return b.String()
}
