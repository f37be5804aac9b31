package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sushi-Mampfer/notes/constant"
	"github.com/Sushi-Mampfer/notes/entities"
)

func newTestRepo(t *testing.T) EntryRepository {
	t.Helper()
	repo, err := Open(sqlite.Open(filepath.Join(t.TempDir(), "entries.sqlite")))
	require.NoError(t, err)
	return repo
}

func TestInsertEntryStartsUnprocessed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.InsertEntry(ctx, "Meeting", "abc.wav")
	require.NoError(t, err)

	entry, err := repo.FindEntryById(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Meeting", entry.Name)
	assert.Equal(t, "abc.wav", entry.File)
	assert.Nil(t, entry.Transcript)
	assert.Nil(t, entry.Summary)
}

func TestUpdateResultSetsBothFields(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.InsertEntry(ctx, "Meeting", "abc.wav")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateResult(ctx, id, "the transcript", "the summary"))

	entry, err := repo.FindEntryById(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, entry.Transcript)
	require.NotNil(t, entry.Summary)
	assert.Equal(t, "the transcript", *entry.Transcript)
	assert.Equal(t, "the summary", *entry.Summary)
}

func TestUpdateResultMissingEntry(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.UpdateResult(context.Background(), 404, "t", "s")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAllOrderedById(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, name := range []string{"a", "b", "c"} {
		_, err := repo.InsertEntry(ctx, name, name+".wav")
		require.NoError(t, err)
	}

	entries, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "b", entries[1].Name)
	assert.Equal(t, "c", entries[2].Name)
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	entryId, err := repo.InsertEntry(ctx, "Meeting", "abc.wav")
	require.NoError(t, err)

	job := &entities.Job{ID: uuid.New(), EntryId: entryId, Status: constant.JobStatusPending}
	require.NoError(t, repo.CreateJob(ctx, job))

	found, err := repo.FindJobById(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusPending, found.Status)

	require.NoError(t, repo.UpdateStatusJob(ctx, constant.JobStatusProcessing, job.ID))
	found, err = repo.FindJobById(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusProcessing, found.Status)

	assert.ErrorIs(t, repo.UpdateStatusJob(ctx, constant.JobStatusFailed, uuid.New()), ErrNotFound)
}

func TestPendingJobsSkipsSettledOnes(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	entryId, err := repo.InsertEntry(ctx, "Meeting", "abc.wav")
	require.NoError(t, err)

	pending := &entities.Job{ID: uuid.New(), EntryId: entryId, Status: constant.JobStatusPending}
	failed := &entities.Job{ID: uuid.New(), EntryId: entryId, Status: constant.JobStatusFailed}
	completed := &entities.Job{ID: uuid.New(), EntryId: entryId, Status: constant.JobStatusCompleted}
	for _, j := range []*entities.Job{pending, failed, completed} {
		require.NoError(t, repo.CreateJob(ctx, j))
	}

	jobs, err := repo.PendingJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, pending.ID, jobs[0].ID)
}
