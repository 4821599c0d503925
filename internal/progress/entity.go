package progress

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const MaxNotesLength = 1000

// ProgressUpdate is an immutable snapshot of a key result value.
type ProgressUpdate struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	KeyResultID   uuid.UUID `gorm:"type:uuid;not null;index:idx_progress_kr_recorded,priority:1" json:"key_result_id"`
	ValueRecorded float64   `gorm:"not null" json:"value_recorded"`
	Notes         string    `gorm:"type:text" json:"notes,omitempty"`
	RecordedAt    time.Time `gorm:"not null;index:idx_progress_kr_recorded,priority:2" json:"recorded_at"`
}

func (ProgressUpdate) TableName() string {
	return "progress_updates"
}

func (p *ProgressUpdate) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate keeps the ledger append-only.
func (p *ProgressUpdate) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutable
}
