package okr

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/saulo-duarte/okr-progress/internal/apperror"
	"github.com/saulo-duarte/okr-progress/internal/config"
	"github.com/saulo-duarte/okr-progress/internal/keyresult"
	"github.com/saulo-duarte/okr-progress/internal/objective"
	"github.com/saulo-duarte/okr-progress/internal/progress"
	util "github.com/saulo-duarte/okr-progress/internal/utils"
)

const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 25 * time.Millisecond
)

// Service is the only entry point allowed to mutate objectives, key results
// and the progress ledger. Every mutating call is one transaction.
type Service interface {
	CreateObjective(ctx context.Context, spec objective.CreateSpec) (*objective.Objective, error)
	RecordProgress(ctx context.Context, keyResultID uuid.UUID, value float64, notes string) (*ProgressResult, error)
	DeleteKeyResult(ctx context.Context, id uuid.UUID) error
	AddKeyResult(ctx context.Context, objectiveID uuid.UUID, spec keyresult.Spec) (*keyresult.KeyResult, error)
	UpdateKeyResult(ctx context.Context, id uuid.UUID, patch keyresult.Patch) (*keyresult.KeyResult, error)
	UpdateObjectiveStatus(ctx context.Context, id uuid.UUID, status objective.ObjectiveStatus) (*objective.Objective, error)
	DeleteObjective(ctx context.Context, id uuid.UUID) error
	DeleteProgressUpdate(ctx context.Context, id uuid.UUID) error

	GetObjective(ctx context.Context, id uuid.UUID) (*objective.Objective, error)
	ListObjectives(ctx context.Context, ownerID uuid.UUID) ([]objective.Objective, error)
	ProgressHistory(ctx context.Context, keyResultID uuid.UUID, bounds progress.Range) (iter.Seq2[progress.ProgressUpdate, error], error)

	ObjectiveOwner(ctx context.Context, objectiveID uuid.UUID) (uuid.UUID, error)
	KeyResultOwner(ctx context.Context, keyResultID uuid.UUID) (uuid.UUID, error)
	ProgressUpdateOwner(ctx context.Context, updateID uuid.UUID) (uuid.UUID, error)

	RefreshStatuses(ctx context.Context) (int, error)
}

// ProgressResult is the outcome of a recorded progress value.
type ProgressResult struct {
	Update             progress.ProgressUpdate
	KeyResult          keyresult.KeyResult
	ObjectiveStatus    objective.ObjectiveStatus
	ObjectiveCompleted bool
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func WithMaxRetries(n int) Option {
	return func(s *service) { s.maxRetries = n }
}

func WithBackoff(d time.Duration) Option {
	return func(s *service) { s.backoff = d }
}

type service struct {
	db         *gorm.DB
	objRepo    objective.Repository
	krRepo     keyresult.Repository
	ledger     progress.Ledger
	now        func() time.Time
	maxRetries int
	backoff    time.Duration
}

func NewService(db *gorm.DB, objRepo objective.Repository, krRepo keyresult.Repository, ledger progress.Ledger, opts ...Option) Service {
	s := &service{
		db:         db,
		objRepo:    objRepo,
		krRepo:     krRepo,
		ledger:     ledger,
		now:        time.Now,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// repos is the set of repositories bound to one transaction.
type repos struct {
	objectives objective.Repository
	keyResults keyresult.Repository
	ledger     progress.Ledger
}

func (s *service) today() util.Date {
	return util.DateOf(s.now().UTC())
}

// unitOfWork runs fn in a transaction, retrying the whole unit on transient conflicts.
func (s *service) unitOfWork(ctx context.Context, op string, fn func(r repos) error) error {
	return withRetry(ctx, op, s.maxRetries, s.backoff, func() error {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(repos{
				objectives: s.objRepo.WithTx(tx),
				keyResults: s.krRepo.WithTx(tx),
				ledger:     s.ledger.WithTx(tx),
			})
		})
		return classify(op, err)
	})
}

// lockKeyResult locks the parent objective and then the key result, always in
// that order.
func lockKeyResult(ctx context.Context, r repos, keyResultID uuid.UUID) (*objective.Objective, *keyresult.KeyResult, error) {
	probe, err := r.keyResults.FindByID(ctx, keyResultID)
	if err != nil {
		return nil, nil, err
	}
	goal, err := r.objectives.FindForUpdate(ctx, probe.ObjectiveID)
	if err != nil {
		return nil, nil, err
	}
	kr, err := r.keyResults.FindForUpdate(ctx, keyResultID)
	if err != nil {
		return nil, nil, err
	}
	if kr.ObjectiveID != goal.ID {
		return nil, nil, apperror.Concurrency("lock key result", fmt.Errorf("key result %s moved objectives", kr.ID))
	}
	return goal, kr, nil
}

// cascade re-reads every sibling inside the current transaction and promotes the
// objective when all of them are completed.
func cascade(ctx context.Context, r repos, goal *objective.Objective) (bool, error) {
	siblings, err := r.keyResults.ListByObjectiveForUpdate(ctx, goal.ID)
	if err != nil {
		return false, err
	}
	if !objective.Promotes(goal.Status, objective.Statuses(siblings)) {
		return false, nil
	}
	updated, err := r.objectives.UpdateStatus(ctx, goal.ID, objective.StatusCompleted)
	if err != nil {
		return false, err
	}
	goal.Status = updated.Status
	return true, nil
}

func (s *service) CreateObjective(ctx context.Context, spec objective.CreateSpec) (*objective.Objective, error) {
	log := config.WithContext(ctx)

	var goal *objective.Objective
	err := s.unitOfWork(ctx, "create objective", func(r repos) error {
		var err error
		goal, err = r.objectives.CreateWithKeyResults(ctx, spec, s.today())
		return err
	})
	if err != nil {
		logFailure(log, err, "Failed to create objective")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"objective_id": goal.ID,
		"key_results":  len(goal.KeyResults),
	}).Info("Objective created")
	return goal, nil
}

func (s *service) RecordProgress(ctx context.Context, keyResultID uuid.UUID, value float64, notes string) (*ProgressResult, error) {
	log := config.WithContext(ctx).WithField("key_result_id", keyResultID)

	var result *ProgressResult
	err := s.unitOfWork(ctx, "record progress", func(r repos) error {
		goal, kr, err := lockKeyResult(ctx, r, keyResultID)
		if err != nil {
			return err
		}

		update := &progress.ProgressUpdate{
			KeyResultID:   kr.ID,
			ValueRecorded: value,
			Notes:         notes,
			RecordedAt:    s.now().UTC(),
		}
		if err := r.ledger.Append(ctx, update, kr.TargetValue); err != nil {
			return err
		}
		if err := r.keyResults.SetCurrentValue(ctx, kr, update.ValueRecorded, s.today()); err != nil {
			return err
		}

		completed, err := cascade(ctx, r, goal)
		if err != nil {
			return err
		}

		result = &ProgressResult{
			Update:             *update,
			KeyResult:          *kr,
			ObjectiveStatus:    goal.Status,
			ObjectiveCompleted: completed,
		}
		return nil
	})
	if err != nil {
		logFailure(log, err, "Failed to record progress")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"value":               value,
		"status":              result.KeyResult.Status,
		"objective_completed": result.ObjectiveCompleted,
	}).Info("Progress recorded")
	return result, nil
}

func (s *service) DeleteKeyResult(ctx context.Context, id uuid.UUID) error {
	log := config.WithContext(ctx).WithField("key_result_id", id)

	err := s.unitOfWork(ctx, "delete key result", func(r repos) error {
		goal, kr, err := lockKeyResult(ctx, r, id)
		if err != nil {
			return err
		}

		count, err := r.keyResults.CountByObjective(ctx, goal.ID)
		if err != nil {
			return err
		}
		if count <= objective.MinKeyResults {
			return apperror.BusinessRule(apperror.ReasonMinimumKeyResults,
				"objective %s must keep at least %d key results", goal.ID, objective.MinKeyResults)
		}

		if _, err := r.keyResults.Delete(ctx, kr.ID); err != nil {
			return err
		}
		_, err = cascade(ctx, r, goal)
		return err
	})
	if err != nil {
		logFailure(log, err, "Failed to delete key result")
		return err
	}

	log.Info("Key result deleted")
	return nil
}

func (s *service) AddKeyResult(ctx context.Context, objectiveID uuid.UUID, spec keyresult.Spec) (*keyresult.KeyResult, error) {
	log := config.WithContext(ctx).WithField("objective_id", objectiveID)

	var kr *keyresult.KeyResult
	err := s.unitOfWork(ctx, "add key result", func(r repos) error {
		goal, err := r.objectives.FindForUpdate(ctx, objectiveID)
		if err != nil {
			return err
		}

		count, err := r.keyResults.CountByObjective(ctx, goal.ID)
		if err != nil {
			return err
		}
		if count >= objective.MaxKeyResults {
			return apperror.BusinessRule(apperror.ReasonMaximumKeyResults,
				"objective %s already has %d key results", goal.ID, objective.MaxKeyResults)
		}

		kr, err = r.keyResults.Create(ctx, goal.ID, spec, s.today())
		if err != nil {
			return err
		}
		_, err = cascade(ctx, r, goal)
		return err
	})
	if err != nil {
		logFailure(log, err, "Failed to add key result")
		return nil, err
	}

	log.WithField("key_result_id", kr.ID).Info("Key result added")
	return kr, nil
}

func (s *service) UpdateKeyResult(ctx context.Context, id uuid.UUID, patch keyresult.Patch) (*keyresult.KeyResult, error) {
	log := config.WithContext(ctx).WithField("key_result_id", id)

	var kr *keyresult.KeyResult
	err := s.unitOfWork(ctx, "update key result", func(r repos) error {
		goal, _, err := lockKeyResult(ctx, r, id)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			kr, err = r.keyResults.FindByID(ctx, id)
			return err
		}

		kr, err = r.keyResults.UpdateFields(ctx, id, patch, s.today())
		if err != nil {
			return err
		}
		_, err = cascade(ctx, r, goal)
		return err
	})
	if err != nil {
		logFailure(log, err, "Failed to update key result")
		return nil, err
	}

	log.WithField("status", kr.Status).Info("Key result updated")
	return kr, nil
}

func (s *service) UpdateObjectiveStatus(ctx context.Context, id uuid.UUID, status objective.ObjectiveStatus) (*objective.Objective, error) {
	log := config.WithContext(ctx).WithField("objective_id", id)

	var goal *objective.Objective
	err := s.unitOfWork(ctx, "update objective status", func(r repos) error {
		var err error
		goal, err = r.objectives.UpdateStatus(ctx, id, status)
		if err != nil {
			return err
		}
		// A reactivated objective may already have every key result completed.
		if goal.Status == objective.StatusActive {
			_, err = cascade(ctx, r, goal)
		}
		return err
	})
	if err != nil {
		logFailure(log, err, "Failed to update objective status")
		return nil, err
	}

	log.WithField("status", goal.Status).Info("Objective status updated")
	return goal, nil
}

func (s *service) DeleteObjective(ctx context.Context, id uuid.UUID) error {
	log := config.WithContext(ctx).WithField("objective_id", id)

	err := s.unitOfWork(ctx, "delete objective", func(r repos) error {
		return r.objectives.Delete(ctx, id)
	})
	if err != nil {
		logFailure(log, err, "Failed to delete objective")
		return err
	}

	log.Info("Objective deleted")
	return nil
}

// DeleteProgressUpdate removes one ledger entry. The key result keeps the value
// it had, even when the deleted entry was the latest one.
func (s *service) DeleteProgressUpdate(ctx context.Context, id uuid.UUID) error {
	log := config.WithContext(ctx).WithField("progress_update_id", id)

	err := s.unitOfWork(ctx, "delete progress update", func(r repos) error {
		return r.ledger.Delete(ctx, id)
	})
	if err != nil {
		logFailure(log, err, "Failed to delete progress update")
		return err
	}

	log.Info("Progress update deleted")
	return nil
}

func (s *service) GetObjective(ctx context.Context, id uuid.UUID) (*objective.Objective, error) {
	return s.objRepo.FindByID(ctx, id)
}

func (s *service) ListObjectives(ctx context.Context, ownerID uuid.UUID) ([]objective.Objective, error) {
	return s.objRepo.FindAllByUserID(ctx, ownerID)
}

func (s *service) ProgressHistory(ctx context.Context, keyResultID uuid.UUID, bounds progress.Range) (iter.Seq2[progress.ProgressUpdate, error], error) {
	if _, err := s.krRepo.FindByID(ctx, keyResultID); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, keyResultID, bounds), nil
}

func (s *service) ObjectiveOwner(ctx context.Context, objectiveID uuid.UUID) (uuid.UUID, error) {
	return s.objRepo.OwnerOf(ctx, objectiveID)
}

func (s *service) KeyResultOwner(ctx context.Context, keyResultID uuid.UUID) (uuid.UUID, error) {
	kr, err := s.krRepo.FindByID(ctx, keyResultID)
	if err != nil {
		return uuid.Nil, err
	}
	return s.ObjectiveOwner(ctx, kr.ObjectiveID)
}

func (s *service) ProgressUpdateOwner(ctx context.Context, updateID uuid.UUID) (uuid.UUID, error) {
	update, err := s.ledger.FindByID(ctx, updateID)
	if err != nil {
		return uuid.Nil, err
	}
	return s.KeyResultOwner(ctx, update.KeyResultID)
}

// RefreshStatuses recomputes the stored status of every open key result of the
// active objectives against today. Each objective is refreshed in its own
// transaction; failures are logged and the sweep moves on.
func (s *service) RefreshStatuses(ctx context.Context) (int, error) {
	log := config.WithContext(ctx)

	ids, err := s.objRepo.ListIDsByStatus(ctx, objective.StatusActive)
	if err != nil {
		log.WithError(err).Error("Failed to list active objectives")
		return 0, err
	}

	var (
		changed int
		errs    []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		n, err := s.refreshObjective(ctx, id)
		if err != nil {
			if apperror.IsNotFound(err) {
				continue
			}
			log.WithError(err).WithField("objective_id", id).Error("Failed to refresh key result statuses")
			errs = append(errs, err)
			continue
		}
		changed += n
	}

	log.WithFields(logrus.Fields{
		"objectives": len(ids),
		"changed":    changed,
	}).Info("Key result statuses refreshed")
	return changed, errors.Join(errs...)
}

func (s *service) refreshObjective(ctx context.Context, id uuid.UUID) (int, error) {
	var changed int
	err := s.unitOfWork(ctx, "refresh statuses", func(r repos) error {
		changed = 0
		goal, err := r.objectives.FindForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if goal.Status != objective.StatusActive {
			return nil
		}

		krs, err := r.keyResults.ListRefreshable(ctx, []uuid.UUID{goal.ID})
		if err != nil {
			return err
		}
		today := s.today()
		for i := range krs {
			moved, err := r.keyResults.RefreshStatus(ctx, &krs[i], today)
			if err != nil {
				return err
			}
			if moved {
				changed++
			}
		}
		if changed == 0 {
			return nil
		}
		_, err = cascade(ctx, r, goal)
		return err
	})
	return changed, err
}

// logFailure logs expected domain rejections at warn level and everything else as an error.
func logFailure(log *logrus.Entry, err error, msg string) {
	switch {
	case apperror.IsValidation(err), apperror.IsBusinessRule(err), apperror.IsNotFound(err):
		log.WithError(err).WithField("reason", apperror.ReasonOf(err)).Warn(msg)
	default:
		log.WithError(err).Error(msg)
	}
}
