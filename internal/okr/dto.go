package okr

import (
	"time"

	"github.com/google/uuid"

	"github.com/saulo-duarte/okr-progress/internal/keyresult"
	"github.com/saulo-duarte/okr-progress/internal/objective"
	"github.com/saulo-duarte/okr-progress/internal/progress"
	util "github.com/saulo-duarte/okr-progress/internal/utils"
)

type CreateKeyResultDTO struct {
	Description string    `json:"description"`
	TargetValue float64   `json:"target_value"`
	Unit        string    `json:"unit"`
	Deadline    util.Date `json:"deadline"`
}

func (d CreateKeyResultDTO) toSpec() keyresult.Spec {
	return keyresult.Spec{
		Description: d.Description,
		TargetValue: d.TargetValue,
		Unit:        d.Unit,
		Deadline:    d.Deadline,
	}
}

type CreateObjectiveDTO struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    objective.Category   `json:"category"`
	TargetDate  util.Date            `json:"target_date"`
	KeyResults  []CreateKeyResultDTO `json:"key_results"`
}

func (d CreateObjectiveDTO) toSpec(ownerID uuid.UUID) objective.CreateSpec {
	specs := make([]keyresult.Spec, len(d.KeyResults))
	for i, kr := range d.KeyResults {
		specs[i] = kr.toSpec()
	}
	return objective.CreateSpec{
		OwnerID:     ownerID,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		TargetDate:  d.TargetDate,
		KeyResults:  specs,
	}
}

type UpdateKeyResultDTO struct {
	Description *string    `json:"description"`
	TargetValue *float64   `json:"target_value"`
	Unit        *string    `json:"unit"`
	Deadline    *util.Date `json:"deadline"`
}

func (d UpdateKeyResultDTO) toPatch() keyresult.Patch {
	return keyresult.Patch{
		Description: d.Description,
		TargetValue: d.TargetValue,
		Unit:        d.Unit,
		Deadline:    d.Deadline,
	}
}

type UpdateObjectiveStatusDTO struct {
	Status objective.ObjectiveStatus `json:"status"`
}

type RecordProgressDTO struct {
	Value *float64 `json:"value"`
	Notes string   `json:"notes"`
}

type KeyResultResponse struct {
	ID                   uuid.UUID                 `json:"id"`
	ObjectiveID          uuid.UUID                 `json:"objective_id"`
	Description          string                    `json:"description"`
	TargetValue          float64                   `json:"target_value"`
	CurrentValue         float64                   `json:"current_value"`
	Unit                 string                    `json:"unit,omitempty"`
	Deadline             util.Date                 `json:"deadline"`
	Status               keyresult.KeyResultStatus `json:"status"`
	CompletionPercentage float64                   `json:"completion_percentage"`
	CreatedAt            time.Time                 `json:"created_at"`
	UpdatedAt            time.Time                 `json:"updated_at"`
}

type ObjectiveResponse struct {
	ID          uuid.UUID                 `json:"id"`
	UserID      uuid.UUID                 `json:"user_id"`
	Title       string                    `json:"title"`
	Description string                    `json:"description,omitempty"`
	Category    objective.Category        `json:"category"`
	TargetDate  util.Date                 `json:"target_date"`
	Status      objective.ObjectiveStatus `json:"status"`
	KeyResults  []KeyResultResponse       `json:"key_results"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

type ProgressUpdateResponse struct {
	ID          uuid.UUID `json:"id"`
	KeyResultID uuid.UUID `json:"key_result_id"`
	Value       float64   `json:"value"`
	Notes       string    `json:"notes,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type RecordProgressResponse struct {
	Update             ProgressUpdateResponse    `json:"update"`
	KeyResult          KeyResultResponse         `json:"key_result"`
	ObjectiveStatus    objective.ObjectiveStatus `json:"objective_status"`
	ObjectiveCompleted bool                      `json:"objective_completed"`
}

func toKeyResultResponse(kr *keyresult.KeyResult) KeyResultResponse {
	return KeyResultResponse{
		ID:                   kr.ID,
		ObjectiveID:          kr.ObjectiveID,
		Description:          kr.Description,
		TargetValue:          kr.TargetValue,
		CurrentValue:         kr.CurrentValue,
		Unit:                 kr.Unit,
		Deadline:             kr.Deadline,
		Status:               kr.Status,
		CompletionPercentage: keyresult.CompletionPercentage(kr.TargetValue, kr.CurrentValue),
		CreatedAt:            kr.CreatedAt,
		UpdatedAt:            kr.UpdatedAt,
	}
}

func toObjectiveResponse(goal *objective.Objective) ObjectiveResponse {
	krs := make([]KeyResultResponse, 0, len(goal.KeyResults))
	for i := range goal.KeyResults {
		krs = append(krs, toKeyResultResponse(&goal.KeyResults[i]))
	}
	return ObjectiveResponse{
		ID:          goal.ID,
		UserID:      goal.UserID,
		Title:       goal.Title,
		Description: goal.Description,
		Category:    goal.Category,
		TargetDate:  goal.TargetDate,
		Status:      goal.Status,
		KeyResults:  krs,
		CreatedAt:   goal.CreatedAt,
		UpdatedAt:   goal.UpdatedAt,
	}
}

func toProgressUpdateResponse(update *progress.ProgressUpdate) ProgressUpdateResponse {
	return ProgressUpdateResponse{
		ID:          update.ID,
		KeyResultID: update.KeyResultID,
		Value:       update.ValueRecorded,
		Notes:       update.Notes,
		RecordedAt:  update.RecordedAt,
	}
}

func toRecordProgressResponse(result *ProgressResult) RecordProgressResponse {
	return RecordProgressResponse{
		Update:             toProgressUpdateResponse(&result.Update),
		KeyResult:          toKeyResultResponse(&result.KeyResult),
		ObjectiveStatus:    result.ObjectiveStatus,
		ObjectiveCompleted: result.ObjectiveCompleted,
	}
}
