package keyresult

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/saulo-duarte/okr-progress/internal/apperror"
	"github.com/saulo-duarte/okr-progress/internal/progress"
	util "github.com/saulo-duarte/okr-progress/internal/utils"
)

const MinPerObjective = 2

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, objectiveID uuid.UUID, spec Spec, today util.Date) (*KeyResult, error)
	FindByID(ctx context.Context, id uuid.UUID) (*KeyResult, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*KeyResult, error)
	ListByObjective(ctx context.Context, objectiveID uuid.UUID) ([]KeyResult, error)
	ListByObjectiveForUpdate(ctx context.Context, objectiveID uuid.UUID) ([]KeyResult, error)
	CountByObjective(ctx context.Context, objectiveID uuid.UUID) (int64, error)
	ListRefreshable(ctx context.Context, objectiveIDs []uuid.UUID) ([]KeyResult, error)
	UpdateFields(ctx context.Context, id uuid.UUID, patch Patch, today util.Date) (*KeyResult, error)
	SetCurrentValue(ctx context.Context, kr *KeyResult, value float64, today util.Date) error
	RefreshStatus(ctx context.Context, kr *KeyResult, today util.Date) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (*KeyResult, error)
	DeleteByObjective(ctx context.Context, objectiveID uuid.UUID) error
}

type repository struct {
	db     *gorm.DB
	ledger progress.Ledger
}

func NewRepository(db *gorm.DB, ledger progress.Ledger) Repository {
	return &repository{db: db, ledger: ledger}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx, ledger: r.ledger.WithTx(tx)}
}

type parentRow struct {
	TargetDate util.Date
}

func (r *repository) parentTargetDate(ctx context.Context, objectiveID uuid.UUID) (util.Date, error) {
	var rows []parentRow
	err := r.db.WithContext(ctx).
		Table("objectives").
		Select("target_date").
		Where("id = ?", objectiveID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return util.Date{}, fmt.Errorf("load objective target date: %w", err)
	}
	if len(rows) == 0 {
		return util.Date{}, apperror.NotFound("objective", objectiveID)
	}
	return rows[0].TargetDate, nil
}

func (r *repository) Create(ctx context.Context, objectiveID uuid.UUID, spec Spec, today util.Date) (*KeyResult, error) {
	targetDate, err := r.parentTargetDate(ctx, objectiveID)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(targetDate); err != nil {
		return nil, err
	}

	kr := &KeyResult{
		ObjectiveID: objectiveID,
		Description: strings.TrimSpace(spec.Description),
		TargetValue: spec.TargetValue,
		Unit:        strings.TrimSpace(spec.Unit),
		Deadline:    spec.Deadline,
	}
	kr.Recompute(today)

	if err := r.db.WithContext(ctx).Create(kr).Error; err != nil {
		return nil, fmt.Errorf("create key result: %w", err)
	}
	return kr, nil
}

func (r *repository) find(ctx context.Context, id uuid.UUID, lock bool) (*KeyResult, error) {
	db := r.db.WithContext(ctx)
	if lock {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var kr KeyResult
	if err := db.First(&kr, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("key result", id)
		}
		return nil, fmt.Errorf("find key result: %w", err)
	}
	return &kr, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*KeyResult, error) {
	return r.find(ctx, id, false)
}

func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*KeyResult, error) {
	return r.find(ctx, id, true)
}

func (r *repository) list(ctx context.Context, objectiveID uuid.UUID, lock bool) ([]KeyResult, error) {
	db := r.db.WithContext(ctx)
	if lock {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var krs []KeyResult
	if err := db.Where("objective_id = ?", objectiveID).Order("created_at ASC, id ASC").Find(&krs).Error; err != nil {
		return nil, fmt.Errorf("list key results: %w", err)
	}
	return krs, nil
}

func (r *repository) ListByObjective(ctx context.Context, objectiveID uuid.UUID) ([]KeyResult, error) {
	return r.list(ctx, objectiveID, false)
}

func (r *repository) ListByObjectiveForUpdate(ctx context.Context, objectiveID uuid.UUID) ([]KeyResult, error) {
	return r.list(ctx, objectiveID, true)
}

func (r *repository) CountByObjective(ctx context.Context, objectiveID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&KeyResult{}).Where("objective_id = ?", objectiveID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count key results: %w", err)
	}
	return count, nil
}

// ListRefreshable returns the non-completed key results of the given objectives.
func (r *repository) ListRefreshable(ctx context.Context, objectiveIDs []uuid.UUID) ([]KeyResult, error) {
	if len(objectiveIDs) == 0 {
		return nil, nil
	}
	var krs []KeyResult
	err := r.db.WithContext(ctx).
		Where("objective_id IN ? AND status <> ?", objectiveIDs, StatusCompleted).
		Order("objective_id ASC, created_at ASC").
		Find(&krs).Error
	if err != nil {
		return nil, fmt.Errorf("list refreshable key results: %w", err)
	}
	return krs, nil
}

// UpdateFields applies a partial update, re-validates the invariants and
// recomputes the derived state before persisting.
func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, patch Patch, today util.Date) (*KeyResult, error) {
	kr, err := r.FindForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *kr
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.TargetValue != nil {
		next.TargetValue = *patch.TargetValue
	}
	if patch.Unit != nil {
		next.Unit = strings.TrimSpace(*patch.Unit)
	}
	if patch.Deadline != nil {
		next.Deadline = *patch.Deadline
	}

	targetDate, err := r.parentTargetDate(ctx, kr.ObjectiveID)
	if err != nil {
		return nil, err
	}
	spec := Spec{Description: next.Description, TargetValue: next.TargetValue, Unit: next.Unit, Deadline: next.Deadline}
	if err := spec.Validate(targetDate); err != nil {
		return nil, err
	}
	if next.CurrentValue > next.TargetValue {
		return nil, apperror.Validation(apperror.ReasonInvalidTargetValue,
			"target value %v is below current value %v", next.TargetValue, next.CurrentValue)
	}

	next.Recompute(today)
	if err := r.save(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// SetCurrentValue applies the ledger's latest value to the key result.
func (r *repository) SetCurrentValue(ctx context.Context, kr *KeyResult, value float64, today util.Date) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 || value > kr.TargetValue {
		return apperror.Validation(apperror.ReasonInvalidValue, "value %v outside [0, %v]", value, kr.TargetValue)
	}
	kr.CurrentValue = value
	kr.Recompute(today)
	return r.save(ctx, kr)
}

// RefreshStatus recomputes the status against today and persists it only when it moved.
func (r *repository) RefreshStatus(ctx context.Context, kr *KeyResult, today util.Date) (bool, error) {
	if !kr.Recompute(today) {
		return false, nil
	}
	if err := r.save(ctx, kr); err != nil {
		return false, err
	}
	return true, nil
}

// save writes the mutable columns guarded by the row version.
func (r *repository) save(ctx context.Context, kr *KeyResult) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&KeyResult{}).
		Where("id = ? AND version = ?", kr.ID, kr.Version).
		Updates(map[string]interface{}{
			"description":   kr.Description,
			"target_value":  kr.TargetValue,
			"current_value": kr.CurrentValue,
			"unit":          kr.Unit,
			"deadline":      kr.Deadline,
			"status":        kr.Status,
			"version":       kr.Version + 1,
			"updated_at":    now,
		})
	if result.Error != nil {
		return fmt.Errorf("update key result: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.Concurrency("update key result", fmt.Errorf("key result %s changed since version %d", kr.ID, kr.Version))
	}
	kr.Version++
	kr.UpdatedAt = now
	return nil
}

// Delete removes a key result and its ledger, refusing to drop an objective
// below the minimum number of key results.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) (*KeyResult, error) {
	kr, err := r.FindForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := r.CountByObjective(ctx, kr.ObjectiveID)
	if err != nil {
		return nil, err
	}
	if count <= MinPerObjective {
		return nil, apperror.BusinessRule(apperror.ReasonMinimumKeyResults,
			"objective %s must keep at least %d key results", kr.ObjectiveID, MinPerObjective)
	}

	if err := r.ledger.DeleteByKeyResults(ctx, kr.ID); err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(&KeyResult{}, "id = ?", kr.ID).Error; err != nil {
		return nil, fmt.Errorf("delete key result: %w", err)
	}
	return kr, nil
}

func (r *repository) DeleteByObjective(ctx context.Context, objectiveID uuid.UUID) error {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&KeyResult{}).Where("objective_id = ?", objectiveID).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("list key result ids: %w", err)
	}
	if err := r.ledger.DeleteByKeyResults(ctx, ids...); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("objective_id = ?", objectiveID).Delete(&KeyResult{}).Error; err != nil {
		return fmt.Errorf("delete key results: %w", err)
	}
	return nil
}
