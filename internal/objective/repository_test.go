package objective_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
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

var today = util.NewDate(2026, 1, 15)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.Open(config.DriverSQLite, filepath.Join(t.TempDir(), "objective.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&objective.Objective{}, &keyresult.KeyResult{}, &progress.ProgressUpdate{}))
	return db
}

func newRepos(db *gorm.DB) (objective.Repository, keyresult.Repository, progress.Ledger) {
	ledger := progress.NewLedger(db)
	krs := keyresult.NewRepository(db, ledger)
	return objective.NewRepository(db, krs), krs, ledger
}

func learnGo(owner uuid.UUID) objective.CreateSpec {
	return objective.CreateSpec{
		OwnerID:     owner,
		Title:       "Learn Go",
		Description: "Get productive with Go this semester",
		Category:    objective.CategoryEducation,
		TargetDate:  util.NewDate(2026, 6, 1),
		KeyResults: []keyresult.Spec{
			{Description: "Earn three certifications", TargetValue: 3, Unit: "certs", Deadline: util.NewDate(2026, 3, 1)},
			{Description: "Log one hundred study hours", TargetValue: 100, Unit: "hours", Deadline: util.NewDate(2026, 5, 1)},
		},
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestCreateSpecValidate(t *testing.T) {
	owner := uuid.New()
	require.NoError(t, learnGo(owner).Validate())

	tests := []struct {
		name   string
		mutate func(*objective.CreateSpec)
		reason string
	}{
		{"ShortTitle", func(s *objective.CreateSpec) { s.Title = "Go" }, apperror.ReasonInvalidTitle},
		{"BlankPaddedTitle", func(s *objective.CreateSpec) { s.Title = "  Go   " }, apperror.ReasonInvalidTitle},
		{"LongTitle", func(s *objective.CreateSpec) { s.Title = strings.Repeat("a", objective.MaxTitleLength+1) }, apperror.ReasonInvalidTitle},
		{"LongDescription", func(s *objective.CreateSpec) {
			s.Description = strings.Repeat("d", objective.MaxDescriptionLength+1)
		}, apperror.ReasonInvalidDescription},
		{"UnknownCategory", func(s *objective.CreateSpec) { s.Category = "HOBBY" }, apperror.ReasonInvalidCategory},
		{"MissingTargetDate", func(s *objective.CreateSpec) { s.TargetDate = util.Date{} }, apperror.ReasonInvalidDeadline},
		{"OneKeyResult", func(s *objective.CreateSpec) { s.KeyResults = s.KeyResults[:1] }, apperror.ReasonInvalidKeyResultsCount},
		{"SixKeyResults", func(s *objective.CreateSpec) {
			for len(s.KeyResults) < 6 {
				s.KeyResults = append(s.KeyResults, s.KeyResults[0])
			}
		}, apperror.ReasonInvalidKeyResultsCount},
		{"KeyResultAfterTargetDate", func(s *objective.CreateSpec) {
			s.KeyResults[1].Deadline = util.NewDate(2026, 6, 2)
		}, apperror.ReasonInvalidDeadline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := learnGo(owner)
			tt.mutate(&spec)
			err := spec.Validate()
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err))
			assert.Equal(t, tt.reason, apperror.ReasonOf(err))
		})
	}
}

func TestCreateWithKeyResults(t *testing.T) {
	db := openTestDB(t)
	goals, _, _ := newRepos(db)
	ctx := context.Background()
	owner := uuid.New()

	goal, err := goals.CreateWithKeyResults(ctx, learnGo(owner), today)
	require.NoError(t, err)
	assert.Equal(t, objective.StatusActive, goal.Status)
	require.Len(t, goal.KeyResults, 2)
	for _, kr := range goal.KeyResults {
		assert.Equal(t, goal.ID, kr.ObjectiveID)
		assert.Equal(t, keyresult.StatusNotStarted, kr.Status)
	}

	stored, err := goals.FindByID(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Learn Go", stored.Title)
	assert.Equal(t, util.NewDate(2026, 6, 1), stored.TargetDate)
	require.Len(t, stored.KeyResults, 2)
	assert.Equal(t, "Earn three certifications", stored.KeyResults[0].Description)

	owners, err := goals.OwnerOf(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, owner, owners)
}

func TestCreateWithOneKeyResultPersistsNothing(t *testing.T) {
	db := openTestDB(t)
	goals, _, _ := newRepos(db)

	spec := learnGo(uuid.New())
	spec.KeyResults = spec.KeyResults[:1]

	_, err := goals.CreateWithKeyResults(context.Background(), spec, today)
	require.Error(t, err)
	assert.Equal(t, apperror.ReasonInvalidKeyResultsCount, apperror.ReasonOf(err))
	assert.Zero(t, countRows(t, db, &objective.Objective{}))
	assert.Zero(t, countRows(t, db, &keyresult.KeyResult{}))
}

func TestCreateRollsBackOnKeyResultFailure(t *testing.T) {
	db := openTestDB(t)
	goals, _, _ := newRepos(db)

	var inserted int
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_second_kr", func(tx *gorm.DB) {
		if tx.Statement.Table != "key_results" {
			return
		}
		inserted++
		if inserted == 2 {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	_, err := goals.CreateWithKeyResults(context.Background(), learnGo(uuid.New()), today)
	require.Error(t, err)
	assert.Zero(t, countRows(t, db, &objective.Objective{}))
	assert.Zero(t, countRows(t, db, &keyresult.KeyResult{}))
}

func TestFindAllByUserID(t *testing.T) {
	db := openTestDB(t)
	goals, _, _ := newRepos(db)
	ctx := context.Background()
	owner := uuid.New()

	for i := 0; i < 3; i++ {
		spec := learnGo(owner)
		spec.Title = fmt.Sprintf("Learn Go part %d", i+1)
		_, err := goals.CreateWithKeyResults(ctx, spec, today)
		require.NoError(t, err)
	}
	_, err := goals.CreateWithKeyResults(ctx, learnGo(uuid.New()), today)
	require.NoError(t, err)

	mine, err := goals.FindAllByUserID(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	for _, goal := range mine {
		assert.Equal(t, owner, goal.UserID)
		assert.Len(t, goal.KeyResults, 2)
	}

	active, err := goals.ListIDsByStatus(ctx, objective.StatusActive)
	require.NoError(t, err)
	assert.Len(t, active, 4)
}

func TestUpdateStatus(t *testing.T) {
	db := openTestDB(t)
	goals, _, _ := newRepos(db)
	ctx := context.Background()

	goal, err := goals.CreateWithKeyResults(ctx, learnGo(uuid.New()), today)
	require.NoError(t, err)

	t.Run("SameStatusIsNoop", func(t *testing.T) {
		updated, err := goals.UpdateStatus(ctx, goal.ID, objective.StatusActive)
		require.NoError(t, err)
		assert.Equal(t, objective.StatusActive, updated.Status)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		_, err := goals.UpdateStatus(ctx, goal.ID, "PAUSED")
		assert.Equal(t, apperror.ReasonInvalidStatus, apperror.ReasonOf(err))
	})

	t.Run("AllowedPath", func(t *testing.T) {
		for _, status := range []objective.ObjectiveStatus{objective.StatusArchived, objective.StatusActive, objective.StatusAbandoned} {
			updated, err := goals.UpdateStatus(ctx, goal.ID, status)
			require.NoError(t, err)
			assert.Equal(t, status, updated.Status)
		}
	})

	t.Run("AbandonedIsTerminal", func(t *testing.T) {
		_, err := goals.UpdateStatus(ctx, goal.ID, objective.StatusActive)
		require.Error(t, err)
		assert.True(t, apperror.IsBusinessRule(err))
		assert.Equal(t, apperror.ReasonInvalidStatusTransition, apperror.ReasonOf(err))

		stored, err := goals.FindByID(ctx, goal.ID)
		require.NoError(t, err)
		assert.Equal(t, objective.StatusAbandoned, stored.Status)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := goals.UpdateStatus(ctx, uuid.New(), objective.StatusArchived)
		assert.True(t, apperror.IsNotFound(err))
	})
}

func TestDeleteCascades(t *testing.T) {
	db := openTestDB(t)
	goals, _, ledger := newRepos(db)
	ctx := context.Background()

	goal, err := goals.CreateWithKeyResults(ctx, learnGo(uuid.New()), today)
	require.NoError(t, err)
	keep, err := goals.CreateWithKeyResults(ctx, learnGo(uuid.New()), today)
	require.NoError(t, err)

	for _, kr := range append(goal.KeyResults, keep.KeyResults...) {
		update := progress.ProgressUpdate{KeyResultID: kr.ID, ValueRecorded: 1}
		require.NoError(t, ledger.Append(ctx, &update, kr.TargetValue))
	}

	require.NoError(t, goals.Delete(ctx, goal.ID))

	_, err = goals.FindByID(ctx, goal.ID)
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, int64(1), countRows(t, db, &objective.Objective{}))
	assert.Equal(t, int64(2), countRows(t, db, &keyresult.KeyResult{}))
	assert.Equal(t, int64(2), countRows(t, db, &progress.ProgressUpdate{}))

	err = goals.Delete(ctx, goal.ID)
	assert.True(t, apperror.IsNotFound(err))
}
