package entities

import (
	"time"

	"github.com/Sushi-Mampfer/notes/constant"
	"github.com/google/uuid"
)

// Job tracks the lifecycle of one pipeline run for one entry. A FAILED
// row is terminal; PENDING rows found at startup are resubmitted.
type Job struct {
	ID        uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey"`
	EntryId   uint32             `json:"entry_id" gorm:"not null;index:idx_jobs_entry_id"`
	Status    constant.JobStatus `json:"status" gorm:"type:varchar(20);not null"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}
