package keyresult

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saulo-duarte/okr-progress/internal/apperror"
	util "github.com/saulo-duarte/okr-progress/internal/utils"
)

const (
	MinDescriptionLength = 10
	MaxDescriptionLength = 300
	MaxUnitLength        = 50
)

type KeyResult struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ObjectiveID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"objective_id"`
	Description          string          `gorm:"type:varchar(300);not null" json:"description"`
	TargetValue          float64         `gorm:"not null" json:"target_value"`
	CurrentValue         float64         `gorm:"not null;default:0" json:"current_value"`
	Unit                 string          `gorm:"type:varchar(50)" json:"unit"`
	Deadline             util.Date       `gorm:"not null" json:"deadline"`
	Status               KeyResultStatus `gorm:"type:varchar(20);not null" json:"status"`
	CompletionPercentage float64         `gorm:"-" json:"completion_percentage"`
	Version              int             `gorm:"not null;default:1" json:"-"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (KeyResult) TableName() string {
	return "key_results"
}

func (kr *KeyResult) BeforeCreate(tx *gorm.DB) error {
	if kr.ID == uuid.Nil {
		kr.ID = uuid.New()
	}
	if kr.Version == 0 {
		kr.Version = 1
	}
	return nil
}

// AfterFind fills the derived percentage, which is never read from storage.
func (kr *KeyResult) AfterFind(tx *gorm.DB) error {
	kr.CompletionPercentage = CompletionPercentage(kr.TargetValue, kr.CurrentValue)
	return nil
}

// Recompute refreshes the derived state and reports whether the status changed.
func (kr *KeyResult) Recompute(today util.Date) bool {
	pct, status := ComputeState(kr.TargetValue, kr.CurrentValue, kr.Deadline, today)
	changed := kr.Status != status
	kr.CompletionPercentage = pct
	kr.Status = status
	return changed
}

// Spec describes a key result to be created.
type Spec struct {
	Description string    `json:"description"`
	TargetValue float64   `json:"target_value"`
	Unit        string    `json:"unit"`
	Deadline    util.Date `json:"deadline"`
}

// Validate checks the key result against its parent objective target date.
func (s Spec) Validate(parentTargetDate util.Date) error {
	desc := strings.TrimSpace(s.Description)
	if n := utf8.RuneCountInString(desc); n < MinDescriptionLength || n > MaxDescriptionLength {
		return apperror.Validation(apperror.ReasonInvalidDescription,
			"description must be between %d and %d characters", MinDescriptionLength, MaxDescriptionLength)
	}
	if math.IsNaN(s.TargetValue) || math.IsInf(s.TargetValue, 0) {
		return apperror.Validation(apperror.ReasonInvalidTargetValue, "target value must be a finite number")
	}
	if s.TargetValue <= 0 {
		return apperror.Validation(apperror.ReasonInvalidTargetValue, "target value must be greater than 0")
	}
	if utf8.RuneCountInString(s.Unit) > MaxUnitLength {
		return apperror.Validation(apperror.ReasonInvalidUnit, "unit must be at most %d characters", MaxUnitLength)
	}
	return validateDeadline(s.Deadline, parentTargetDate)
}

func validateDeadline(deadline, parentTargetDate util.Date) error {
	if deadline.IsZero() {
		return apperror.Validation(apperror.ReasonInvalidDeadline, "deadline is required")
	}
	if deadline.After(parentTargetDate) {
		return apperror.Validation(apperror.ReasonInvalidDeadline,
			"deadline %s is after objective target date %s", deadline, parentTargetDate)
	}
	return nil
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	Description *string    `json:"description"`
	TargetValue *float64   `json:"target_value"`
	Unit        *string    `json:"unit"`
	Deadline    *util.Date `json:"deadline"`
}

func (p Patch) IsEmpty() bool {
	return p.Description == nil && p.TargetValue == nil && p.Unit == nil && p.Deadline == nil
}
