package models

import "time"

// Survey is a poll owned by a creator and filed under a category.
type Survey struct {
	ID          int64
	Title       string
	Description string
	CreatorID   int64
	CategoryID  int64
	CreatedAt   time.Time
}

// SurveyView is the transport shape of a Survey.
type SurveyView struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatorID   int64     `json:"creatorId"`
	CategoryID  int64     `json:"categoryId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SurveyViewFromEntity projects a stored survey onto its transport record.
func SurveyViewFromEntity(s Survey) SurveyView {
	return SurveyView{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		CreatorID:   s.CreatorID,
		CategoryID:  s.CategoryID,
		CreatedAt:   s.CreatedAt,
	}
}

// SurveyViews maps a slice of entities, never returning nil.
func SurveyViews(surveys []Survey) []SurveyView {
	views := make([]SurveyView, 0, len(surveys))
	for _, s := range surveys {
		views = append(views, SurveyViewFromEntity(s))
	}
	return views
}

// CreateSurveyRequest is the JSON body for POST /api/surveys/create.
// CreatorID is honoured only for ADMIN callers.
type CreateSurveyRequest struct {
	Title       string `json:"title"       validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	CategoryID  int64  `json:"categoryId"  validate:"required,gt=0"`
	CreatorID   int64  `json:"creatorId"   validate:"omitempty,gt=0"`
}

// Activity actions recorded for surveys.
const (
	ActivityCreated = "created"
	ActivityDeleted = "deleted"
)

// SurveyActivity is one entry of a survey's activity log, stored in MongoDB.
type SurveyActivity struct {
	SurveyID int64     `json:"surveyId" bson:"survey_id"`
	Action   string    `json:"action"   bson:"action"`
	Actor    string    `json:"actor"    bson:"actor"`
	At       time.Time `json:"at"       bson:"at"`
}

// ExportResponse is returned by POST /api/surveys/export.
type ExportResponse struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}
