package keyresult_test

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/saulo-duarte/okr-progress/internal/apperror"
	"github.com/saulo-duarte/okr-progress/internal/config"
	"github.com/saulo-duarte/okr-progress/internal/keyresult"
	"github.com/saulo-duarte/okr-progress/internal/objective"
	"github.com/saulo-duarte/okr-progress/internal/progress"
	util "github.com/saulo-duarte/okr-progress/internal/utils"
)

type fixture struct {
	db     *gorm.DB
	ledger progress.Ledger
	krs    keyresult.Repository
	goals  objective.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := config.Open(config.DriverSQLite, filepath.Join(t.TempDir(), "keyresult.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&objective.Objective{}, &keyresult.KeyResult{}, &progress.ProgressUpdate{}))

	ledger := progress.NewLedger(db)
	krs := keyresult.NewRepository(db, ledger)
	return &fixture{db: db, ledger: ledger, krs: krs, goals: objective.NewRepository(db, krs)}
}

func assertReason(t *testing.T, reason string, err error) {
	t.Helper()
	assert.Equal(t, reason, apperror.ReasonOf(err), "error: %v", err)
}

func krSpec(description string, target float64, deadline util.Date) keyresult.Spec {
	return keyresult.Spec{Description: description, TargetValue: target, Unit: "units", Deadline: deadline}
}

// seedObjective creates an objective due 2026-06-01 with n key results.
func (f *fixture) seedObjective(t *testing.T, n int) *objective.Objective {
	t.Helper()
	spec := objective.CreateSpec{
		OwnerID:    uuid.New(),
		Title:      "Learn Go",
		Category:   objective.CategoryEducation,
		TargetDate: util.NewDate(2026, 6, 1),
	}
	for i := 0; i < n; i++ {
		spec.KeyResults = append(spec.KeyResults, krSpec(fmt.Sprintf("Key result number %d", i+1), 100, util.NewDate(2026, 5, 1)))
	}
	goal, err := f.goals.CreateWithKeyResults(context.Background(), spec, today)
	require.NoError(t, err)
	return goal
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	goal := f.seedObjective(t, 2)

	kr, err := f.krs.Create(ctx, goal.ID, krSpec("  Read four books  ", 4, util.NewDate(2026, 4, 1)), today)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, kr.ID)
	assert.Equal(t, "Read four books", kr.Description)
	assert.Equal(t, keyresult.StatusNotStarted, kr.Status)
	assert.Equal(t, 1, kr.Version)

	stored, err := f.krs.FindByID(ctx, kr.ID)
	require.NoError(t, err)
	assert.Equal(t, util.NewDate(2026, 4, 1), stored.Deadline)
	assert.Equal(t, 0.0, stored.CompletionPercentage)

	t.Run("MissingObjective", func(t *testing.T) {
		_, err := f.krs.Create(ctx, uuid.New(), krSpec("Read four books", 4, util.NewDate(2026, 4, 1)), today)
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("DeadlineAfterObjective", func(t *testing.T) {
		_, err := f.krs.Create(ctx, goal.ID, krSpec("Read four books", 4, util.NewDate(2026, 6, 2)), today)
		assert.True(t, apperror.IsValidation(err))
		assertReason(t, apperror.ReasonInvalidDeadline, err)
	})
}

func TestFindByIDNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.krs.FindByID(context.Background(), uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestSetCurrentValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	goal := f.seedObjective(t, 2)
	kr := goal.KeyResults[0]

	require.NoError(t, f.krs.SetCurrentValue(ctx, &kr, 40, today))
	assert.Equal(t, 2, kr.Version)
	assert.Equal(t, keyresult.StatusInProgress, kr.Status)

	stored, err := f.krs.FindByID(ctx, kr.ID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, stored.CurrentValue)
	assert.Equal(t, 40.0, stored.CompletionPercentage)
	assert.Equal(t, keyresult.StatusInProgress, stored.Status)

	t.Run("OutOfRange", func(t *testing.T) {
		err := f.krs.SetCurrentValue(ctx, stored, 101, today)
		assertReason(t, apperror.ReasonInvalidValue, err)
		err = f.krs.SetCurrentValue(ctx, stored, -1, today)
		assertReason(t, apperror.ReasonInvalidValue, err)
		err = f.krs.SetCurrentValue(ctx, stored, math.NaN(), today)
		assertReason(t, apperror.ReasonInvalidValue, err)
		err = f.krs.SetCurrentValue(ctx, stored, math.Inf(1), today)
		assertReason(t, apperror.ReasonInvalidValue, err)
	})

	t.Run("StaleVersion", func(t *testing.T) {
		first, err := f.krs.FindByID(ctx, kr.ID)
		require.NoError(t, err)
		second, err := f.krs.FindByID(ctx, kr.ID)
		require.NoError(t, err)

		require.NoError(t, f.krs.SetCurrentValue(ctx, first, 60, today))
		err = f.krs.SetCurrentValue(ctx, second, 70, today)
		require.Error(t, err)
		assert.True(t, apperror.IsConcurrency(err))

		stored, err := f.krs.FindByID(ctx, kr.ID)
		require.NoError(t, err)
		assert.Equal(t, 60.0, stored.CurrentValue)
	})
}

func TestStoredStatusNeverDrifts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	goal := f.seedObjective(t, 3)

	values := []float64{0, 10, 55, 100, 20, 0}
	for i, v := range values {
		kr, err := f.krs.FindByID(ctx, goal.KeyResults[i%3].ID)
		require.NoError(t, err)
		require.NoError(t, f.krs.SetCurrentValue(ctx, kr, v, today))
	}

	krs, err := f.krs.ListByObjective(ctx, goal.ID)
	require.NoError(t, err)
	for _, kr := range krs {
		stored := kr.Status
		assert.False(t, kr.Recompute(today), "status %s drifted from stored values", stored)
	}
}

func TestUpdateFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	goal := f.seedObjective(t, 2)
	kr := goal.KeyResults[0]
	require.NoError(t, f.krs.SetCurrentValue(ctx, &kr, 100, today))
	require.Equal(t, keyresult.StatusCompleted, kr.Status)

	t.Run("RaisingTargetReopens", func(t *testing.T) {
		target := 200.0
		updated, err := f.krs.UpdateFields(ctx, kr.ID, keyresult.Patch{TargetValue: &target}, today)
		require.NoError(t, err)
		assert.Equal(t, keyresult.StatusInProgress, updated.Status)
		assert.Equal(t, 50.0, updated.CompletionPercentage)
	})

	t.Run("TargetBelowCurrent", func(t *testing.T) {
		target := 10.0
		_, err := f.krs.UpdateFields(ctx, kr.ID, keyresult.Patch{TargetValue: &target}, today)
		assertReason(t, apperror.ReasonInvalidTargetValue, err)
	})

	t.Run("DeadlineAfterObjective", func(t *testing.T) {
		deadline := util.NewDate(2026, 7, 1)
		_, err := f.krs.UpdateFields(ctx, kr.ID, keyresult.Patch{Deadline: &deadline}, today)
		assertReason(t, apperror.ReasonInvalidDeadline, err)
	})

	t.Run("Description", func(t *testing.T) {
		desc := "Log two hundred study hours"
		updated, err := f.krs.UpdateFields(ctx, kr.ID, keyresult.Patch{Description: &desc}, today)
		require.NoError(t, err)
		assert.Equal(t, desc, updated.Description)
	})

	t.Run("Missing", func(t *testing.T) {
		desc := "Log two hundred study hours"
		_, err := f.krs.UpdateFields(ctx, uuid.New(), keyresult.Patch{Description: &desc}, today)
		assert.True(t, apperror.IsNotFound(err))
	})
}

func TestRefreshStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	goal := f.seedObjective(t, 2)
	kr := goal.KeyResults[0]
	require.NoError(t, f.krs.SetCurrentValue(ctx, &kr, 20, today))
	require.Equal(t, keyresult.StatusInProgress, kr.Status)

	later := util.NewDate(2026, 4, 25)
	moved, err := f.krs.RefreshStatus(ctx, &kr, later)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, keyresult.StatusAtRisk, kr.Status)

	moved, err = f.krs.RefreshStatus(ctx, &kr, later)
	require.NoError(t, err)
	assert.False(t, moved)

	refreshable, err := f.krs.ListRefreshable(ctx, []uuid.UUID{goal.ID})
	require.NoError(t, err)
	assert.Len(t, refreshable, 2)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("RefusesBelowMinimum", func(t *testing.T) {
		goal := f.seedObjective(t, 2)
		_, err := f.krs.Delete(ctx, goal.KeyResults[0].ID)
		require.Error(t, err)
		assert.True(t, apperror.IsBusinessRule(err))
		assertReason(t, apperror.ReasonMinimumKeyResults, err)

		count, err := f.krs.CountByObjective(ctx, goal.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("RemovesLedger", func(t *testing.T) {
		goal := f.seedObjective(t, 3)
		victim := goal.KeyResults[2]
		update := progress.ProgressUpdate{KeyResultID: victim.ID, ValueRecorded: 5}
		require.NoError(t, f.ledger.Append(ctx, &update, victim.TargetValue))

		deleted, err := f.krs.Delete(ctx, victim.ID)
		require.NoError(t, err)
		assert.Equal(t, victim.ID, deleted.ID)

		_, err = f.krs.FindByID(ctx, victim.ID)
		assert.True(t, apperror.IsNotFound(err))
		_, err = f.ledger.FindByID(ctx, update.ID)
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := f.krs.Delete(ctx, uuid.New())
		assert.True(t, apperror.IsNotFound(err))
	})
}
