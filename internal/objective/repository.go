package objective

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/saulo-duarte/okr-progress/internal/apperror"
	"github.com/saulo-duarte/okr-progress/internal/keyresult"
	util "github.com/saulo-duarte/okr-progress/internal/utils"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWithKeyResults(ctx context.Context, spec CreateSpec, today util.Date) (*Objective, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Objective, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*Objective, error)
	FindAllByUserID(ctx context.Context, userID uuid.UUID) ([]Objective, error)
	OwnerOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ListIDsByStatus(ctx context.Context, status ObjectiveStatus) ([]uuid.UUID, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ObjectiveStatus) (*Objective, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db     *gorm.DB
	krRepo keyresult.Repository
}

func NewRepository(db *gorm.DB, krRepo keyresult.Repository) Repository {
	return &repository{db: db, krRepo: krRepo}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx, krRepo: r.krRepo.WithTx(tx)}
}

// CreateWithKeyResults persists the objective and all its key results, or nothing.
func (r *repository) CreateWithKeyResults(ctx context.Context, spec CreateSpec, today util.Date) (*Objective, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	goal := &Objective{
		UserID:      spec.OwnerID,
		Title:       strings.TrimSpace(spec.Title),
		Description: strings.TrimSpace(spec.Description),
		Category:    spec.Category,
		TargetDate:  spec.TargetDate,
		Status:      StatusActive,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(goal).Error; err != nil {
			return fmt.Errorf("create objective: %w", err)
		}

		krRepo := r.krRepo.WithTx(tx)
		goal.KeyResults = make([]keyresult.KeyResult, 0, len(spec.KeyResults))
		for _, krSpec := range spec.KeyResults {
			kr, err := krRepo.Create(ctx, goal.ID, krSpec, today)
			if err != nil {
				return err
			}
			goal.KeyResults = append(goal.KeyResults, *kr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return goal, nil
}

func preloadKeyResults(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*Objective, error) {
	var goal Objective
	if err := r.db.WithContext(ctx).Preload("KeyResults", preloadKeyResults).First(&goal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("objective", id)
		}
		return nil, fmt.Errorf("find objective: %w", err)
	}
	return &goal, nil
}

// FindForUpdate locks the objective row. Callers lock the objective before any
// of its key results.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*Objective, error) {
	var goal Objective
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&goal, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("objective", id)
		}
		return nil, fmt.Errorf("find objective: %w", err)
	}
	return &goal, nil
}

func (r *repository) FindAllByUserID(ctx context.Context, userID uuid.UUID) ([]Objective, error) {
	var goals []Objective
	err := r.db.WithContext(ctx).
		Preload("KeyResults", preloadKeyResults).
		Where("user_id = ?", userID).
		Order("target_date ASC, created_at ASC").
		Find(&goals).Error
	if err != nil {
		return nil, fmt.Errorf("list objectives: %w", err)
	}
	return goals, nil
}

func (r *repository) OwnerOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var owners []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&Objective{}).Where("id = ?", id).Limit(1).Pluck("user_id", &owners).Error; err != nil {
		return uuid.Nil, fmt.Errorf("find objective owner: %w", err)
	}
	if len(owners) == 0 {
		return uuid.Nil, apperror.NotFound("objective", id)
	}
	return owners[0], nil
}

func (r *repository) ListIDsByStatus(ctx context.Context, status ObjectiveStatus) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&Objective{}).Where("status = ?", status).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list objective ids: %w", err)
	}
	return ids, nil
}

// UpdateStatus applies a transition allowed by the objective state machine.
// Requesting the current status is a no-op.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status ObjectiveStatus) (*Objective, error) {
	if !status.IsValid() {
		return nil, apperror.Validation(apperror.ReasonInvalidStatus, "unknown objective status %q", status)
	}

	goal, err := r.FindForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if goal.Status == status {
		return goal, nil
	}
	if !CanTransition(goal.Status, status) {
		return nil, apperror.BusinessRule(apperror.ReasonInvalidStatusTransition,
			"objective cannot move from %s to %s", goal.Status, status)
	}

	if err := r.db.WithContext(ctx).Model(goal).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("update objective status: %w", err)
	}
	goal.Status = status
	return goal, nil
}

// Delete removes the objective with its key results and their ledgers.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := r.WithTx(tx).(*repository)
		if _, err := txRepo.FindForUpdate(ctx, id); err != nil {
			return err
		}
		if err := txRepo.krRepo.DeleteByObjective(ctx, id); err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Delete(&Objective{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete objective: %w", err)
		}
		return nil
	})
}
