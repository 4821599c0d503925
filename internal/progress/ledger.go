package progress

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saulo-duarte/okr-progress/internal/apperror"
)

var ErrImmutable = errors.New("progress updates are immutable")

// Range bounds a history query. Nil bounds are open.
type Range struct {
	From *time.Time
	To   *time.Time
}

type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Append(ctx context.Context, update *ProgressUpdate, targetValue float64) error
	FindByID(ctx context.Context, id uuid.UUID) (*ProgressUpdate, error)
	History(ctx context.Context, keyResultID uuid.UUID, bounds Range) iter.Seq2[ProgressUpdate, error]
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByKeyResults(ctx context.Context, keyResultIDs ...uuid.UUID) error
}

type ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	return &ledger{db: tx}
}

// Validate checks a value against the key result target at time of write.
func Validate(value, targetValue float64, notes string) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return apperror.Validation(apperror.ReasonInvalidValue, "value must be a finite number")
	}
	if value < 0 {
		return apperror.Validation(apperror.ReasonInvalidValue, "value %v must not be negative", value)
	}
	if value > targetValue {
		return apperror.Validation(apperror.ReasonInvalidValue, "value %v exceeds target %v", value, targetValue)
	}
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return apperror.Validation(apperror.ReasonInvalidNotes, "notes must be at most %d characters", MaxNotesLength)
	}
	return nil
}

func (l *ledger) Append(ctx context.Context, update *ProgressUpdate, targetValue float64) error {
	if err := Validate(update.ValueRecorded, targetValue, update.Notes); err != nil {
		return err
	}
	if err := l.db.WithContext(ctx).Create(update).Error; err != nil {
		return fmt.Errorf("append progress update: %w", err)
	}
	return nil
}

func (l *ledger) FindByID(ctx context.Context, id uuid.UUID) (*ProgressUpdate, error) {
	var update ProgressUpdate
	if err := l.db.WithContext(ctx).First(&update, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("progress update", id)
		}
		return nil, fmt.Errorf("find progress update: %w", err)
	}
	return &update, nil
}

// History yields the ledger of a key result newest first, ties broken by id. Each iteration runs a
// fresh query, so the sequence can be ranged over more than once. The consumer
// must not issue other queries on a single-connection pool while iterating.
func (l *ledger) History(ctx context.Context, keyResultID uuid.UUID, bounds Range) iter.Seq2[ProgressUpdate, error] {
	return func(yield func(ProgressUpdate, error) bool) {
		db := l.db.WithContext(ctx)
		query := db.Model(&ProgressUpdate{}).Where("key_result_id = ?", keyResultID)
		if bounds.From != nil {
			query = query.Where("recorded_at >= ?", bounds.From.UTC())
		}
		if bounds.To != nil {
			query = query.Where("recorded_at <= ?", bounds.To.UTC())
		}

		rows, err := query.Order("recorded_at DESC, id DESC").Rows()
		if err != nil {
			yield(ProgressUpdate{}, fmt.Errorf("query progress history: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var update ProgressUpdate
			if err := db.ScanRows(rows, &update); err != nil {
				yield(ProgressUpdate{}, fmt.Errorf("scan progress update: %w", err))
				return
			}
			if !yield(update, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(ProgressUpdate{}, fmt.Errorf("iterate progress history: %w", err))
		}
	}
}

// Delete removes a single entry. The parent key result keeps its current value.
func (l *ledger) Delete(ctx context.Context, id uuid.UUID) error {
	result := l.db.WithContext(ctx).Delete(&ProgressUpdate{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete progress update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("progress update", id)
	}
	return nil
}

func (l *ledger) DeleteByKeyResults(ctx context.Context, keyResultIDs ...uuid.UUID) error {
	if len(keyResultIDs) == 0 {
		return nil
	}
	if err := l.db.WithContext(ctx).Where("key_result_id IN ?", keyResultIDs).Delete(&ProgressUpdate{}).Error; err != nil {
		return fmt.Errorf("delete progress history: %w", err)
	}
	return nil
}

// Collect drains a history sequence into a slice.
func Collect(seq iter.Seq2[ProgressUpdate, error]) ([]ProgressUpdate, error) {
	var updates []ProgressUpdate
	for update, err := range seq {
		if err != nil {
			return nil, err
		}
		updates = append(updates, update)
	}
	return updates, nil
}
