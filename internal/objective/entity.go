package objective

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saulo-duarte/okr-progress/internal/apperror"
	"github.com/saulo-duarte/okr-progress/internal/keyresult"
	util "github.com/saulo-duarte/okr-progress/internal/utils"
)

const (
	MinTitleLength       = 5
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MinKeyResults        = keyresult.MinPerObjective
	MaxKeyResults        = 5
)

type Objective struct {
	ID          uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID             `gorm:"type:uuid;not null;index" json:"user_id"`
	Title       string                `gorm:"type:varchar(200);not null" json:"title"`
	Description string                `gorm:"type:text" json:"description,omitempty"`
	Category    Category              `gorm:"type:varchar(20);not null" json:"category"`
	TargetDate  util.Date             `gorm:"not null" json:"target_date"`
	Status      ObjectiveStatus       `gorm:"type:varchar(20);not null;index" json:"status"`
	KeyResults  []keyresult.KeyResult `gorm:"foreignKey:ObjectiveID" json:"key_results,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

func (Objective) TableName() string {
	return "objectives"
}

func (o *Objective) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = StatusActive
	}
	return nil
}

// CreateSpec describes an objective created together with its key results.
type CreateSpec struct {
	OwnerID     uuid.UUID        `json:"-"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    Category         `json:"category"`
	TargetDate  util.Date        `json:"target_date"`
	KeyResults  []keyresult.Spec `json:"key_results"`
}

func (s CreateSpec) Validate() error {
	title := strings.TrimSpace(s.Title)
	if n := utf8.RuneCountInString(title); n < MinTitleLength || n > MaxTitleLength {
		return apperror.Validation(apperror.ReasonInvalidTitle,
			"title must be between %d and %d characters", MinTitleLength, MaxTitleLength)
	}
	if utf8.RuneCountInString(s.Description) > MaxDescriptionLength {
		return apperror.Validation(apperror.ReasonInvalidDescription,
			"description must be at most %d characters", MaxDescriptionLength)
	}
	if !s.Category.IsValid() {
		return apperror.Validation(apperror.ReasonInvalidCategory, "unknown category %q", s.Category)
	}
	if s.TargetDate.IsZero() {
		return apperror.Validation(apperror.ReasonInvalidDeadline, "target date is required")
	}
	if n := len(s.KeyResults); n < MinKeyResults || n > MaxKeyResults {
		return apperror.Validation(apperror.ReasonInvalidKeyResultsCount,
			"an objective needs between %d and %d key results, got %d", MinKeyResults, MaxKeyResults, n)
	}
	for i, kr := range s.KeyResults {
		if err := kr.Validate(s.TargetDate); err != nil {
			return fmt.Errorf("key result %d: %w", i+1, err)
		}
	}
	return nil
}
