package repository

import (
	"context"
	"errors"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Sushi-Mampfer/notes/config"
	"github.com/Sushi-Mampfer/notes/constant"
	"github.com/Sushi-Mampfer/notes/entities"
)

// ErrNotFound is returned when a referenced entry or job row is absent.
var ErrNotFound = errors.New("row not found")

type EntryRepository interface {
	GetDB() *gorm.DB
	InsertEntry(ctx context.Context, name, file string) (uint32, error)
	FindEntryById(ctx context.Context, id uint32) (*entities.Entry, error)
	// UpdateResult sets transcript and summary in one write so readers
	// never observe a half-filled entry.
	UpdateResult(ctx context.Context, id uint32, transcript, summary string) error
	ListAll(ctx context.Context) ([]entities.Entry, error)

	CreateJob(ctx context.Context, job *entities.Job) error
	FindJobById(ctx context.Context, id uuid.UUID) (*entities.Job, error)
	UpdateStatusJob(ctx context.Context, status constant.JobStatus, id uuid.UUID) error
	PendingJobs(ctx context.Context) ([]*entities.Job, error)
}

type repo struct {
	db *gorm.DB
}

// NewRepo opens the entries database with the configured driver and
// migrates the schema.
func NewRepo(cfg *config.Config) (EntryRepository, error) {
	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DB.DSN)
	default:
		dialector = sqlite.Open(cfg.DB.DSN)
	}
	return Open(dialector)
}

// Open is the dialector-level constructor, used directly by tests with an
// in-memory sqlite database.
func Open(dialector gorm.Dialector) (EntryRepository, error) {
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}
	if err := gormDB.AutoMigrate(&entities.Entry{}, &entities.Job{}); err != nil {
		return nil, err
	}
	return &repo{db: gormDB}, nil
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) InsertEntry(ctx context.Context, name, file string) (uint32, error) {
	entry := &entities.Entry{Name: name, File: file}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return 0, err
	}
	return entry.ID, nil
}

func (r *repo) FindEntryById(ctx context.Context, id uint32) (*entities.Entry, error) {
	entry := &entities.Entry{}
	err := r.db.WithContext(ctx).First(entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *repo) UpdateResult(ctx context.Context, id uint32, transcript, summary string) error {
	res := r.db.WithContext(ctx).Model(&entities.Entry{}).Where("id = ?", id).Updates(map[string]interface{}{
		"transcript": transcript,
		"summary":    summary,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) ListAll(ctx context.Context) ([]entities.Entry, error) {
	var entries []entities.Entry
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) CreateJob(ctx context.Context, job *entities.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repo) FindJobById(ctx context.Context, id uuid.UUID) (*entities.Job, error) {
	job := &entities.Job{}
	err := r.db.WithContext(ctx).First(job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *repo) UpdateStatusJob(ctx context.Context, status constant.JobStatus, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&entities.Job{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) PendingJobs(ctx context.Context) ([]*entities.Job, error) {
	var jobs []*entities.Job
	err := r.db.WithContext(ctx).Where("status = ?", constant.JobStatusPending).Order("created_at ASC").Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
