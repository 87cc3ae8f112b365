package survey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alouzou/sondage/backend/internal/auth"
	"github.com/alouzou/sondage/backend/internal/models"
	"github.com/alouzou/sondage/backend/internal/store"
	"github.com/alouzou/sondage/backend/internal/validation"
)

// SurveyStore defines the interface for survey persistence. Lookups of a
// missing id return (nil, nil).
type SurveyStore interface {
	FindSurveyByID(ctx context.Context, id int64) (*models.Survey, error)
	FindSurveysByCreator(ctx context.Context, creatorID int64) ([]models.Survey, error)
	FindSurveysByCategory(ctx context.Context, categoryID int64) ([]models.Survey, error)
	FindAllSurveys(ctx context.Context) ([]models.Survey, error)
	SaveSurvey(ctx context.Context, s *models.Survey) (*models.Survey, error)
	DeleteSurveyByID(ctx context.Context, id int64) error
}

// UserStore resolves accounts; a missing user is (nil, nil).
type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
}

// ActivityLog records survey lifecycle events.
type ActivityLog interface {
	Record(ctx context.Context, a models.SurveyActivity) error
	ListBySurvey(ctx context.Context, surveyID int64) ([]models.SurveyActivity, error)
}

// FileStore defines the interface for export snapshot storage.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Remove(ctx context.Context, key string) error
}

// Service implements the survey operations. Every method takes the caller
// explicitly and checks its roles before touching a store.
type Service struct {
	surveys  SurveyStore
	users    UserStore
	activity ActivityLog
	files    FileStore
	validate *validation.Validator
	log      *slog.Logger
	now      func() time.Time
}

func NewService(surveys SurveyStore, users UserStore, activity ActivityLog, files FileStore, log *slog.Logger) *Service {
	return &Service{
		surveys:  surveys,
		users:    users,
		activity: activity,
		files:    files,
		validate: validation.New(),
		log:      log.With("component", "survey"),
		now:      time.Now,
	}
}

// Validate checks the structural rules of a create payload.
func (s *Service) Validate(req *models.CreateSurveyRequest) error {
	return s.validate.Struct(req)
}

// Create validates req, then requires ADMIN or CREATOR, then persists the
// survey. The creator is the caller unless an ADMIN names another one.
func (s *Service) Create(ctx context.Context, caller auth.Principal, req models.CreateSurveyRequest) (*models.Survey, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.Validate(&req); err != nil {
		return nil, err
	}
	if err := auth.Require(caller, auth.RoleAdmin, auth.RoleCreator); err != nil {
		return nil, err
	}

	creatorID, err := s.resolveCreator(ctx, caller, req.CreatorID)
	if err != nil {
		return nil, err
	}

	saved, err := s.surveys.SaveSurvey(ctx, &models.Survey{
		Title:       req.Title,
		Description: req.Description,
		CreatorID:   creatorID,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, saved.ID, models.ActivityCreated, caller)
	s.log.Info("survey created", "id", saved.ID, "creator_id", saved.CreatorID, "category_id", saved.CategoryID, "by", caller.Username)
	return saved, nil
}

func (s *Service) resolveCreator(ctx context.Context, caller auth.Principal, requested int64) (int64, error) {
	if requested != 0 && caller.HasRole(auth.RoleAdmin) {
		u, err := s.users.FindUserByID(ctx, requested)
		if err != nil {
			return 0, err
		}
		if u == nil {
			return 0, validation.Field("creatorId", "exists")
		}
		return u.ID, nil
	}

	u, err := s.callerAccount(ctx, caller)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

func (s *Service) callerAccount(ctx context.Context, caller auth.Principal) (*models.User, error) {
	u, err := s.users.FindUserByUsername(ctx, caller.Username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, caller.Username)
	}
	return u, nil
}

// MySurveys lists the surveys created by the calling user.
func (s *Service) MySurveys(ctx context.Context, caller auth.Principal) ([]models.Survey, error) {
	if err := auth.Require(caller); err != nil {
		return nil, err
	}
	u, err := s.callerAccount(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.surveys.FindSurveysByCreator(ctx, u.ID)
}

// Get returns the survey with id, or nil when there is none.
func (s *Service) Get(ctx context.Context, caller auth.Principal, id int64) (*models.Survey, error) {
	if err := auth.Require(caller); err != nil {
		return nil, err
	}
	return s.surveys.FindSurveyByID(ctx, id)
}

func (s *Service) ListByCategory(ctx context.Context, caller auth.Principal, categoryID int64) ([]models.Survey, error) {
	if err := auth.Require(caller); err != nil {
		return nil, err
	}
	return s.surveys.FindSurveysByCategory(ctx, categoryID)
}

// ListByCreator does not check that creatorID names an existing user.
func (s *Service) ListByCreator(ctx context.Context, caller auth.Principal, creatorID int64) ([]models.Survey, error) {
	if err := auth.Require(caller, auth.RoleAdmin, auth.RoleCreator); err != nil {
		return nil, err
	}
	return s.surveys.FindSurveysByCreator(ctx, creatorID)
}

func (s *Service) ListAll(ctx context.Context, caller auth.Principal) ([]models.Survey, error) {
	if err := auth.Require(caller); err != nil {
		return nil, err
	}
	return s.surveys.FindAllSurveys(ctx)
}

// Delete removes the survey with id. Deleting an unknown id succeeds and
// leaves no activity entry.
func (s *Service) Delete(ctx context.Context, caller auth.Principal, id int64) error {
	if err := auth.Require(caller, auth.RoleAdmin); err != nil {
		return err
	}
	existing, err := s.surveys.FindSurveyByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := s.surveys.DeleteSurveyByID(ctx, id); err != nil {
		return err
	}
	s.record(ctx, id, models.ActivityDeleted, caller)
	s.log.Info("survey deleted", "id", id, "by", caller.Username)
	return nil
}

// Activity returns the survey's activity entries, newest first.
func (s *Service) Activity(ctx context.Context, caller auth.Principal, id int64) ([]models.SurveyActivity, error) {
	if err := auth.Require(caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	return s.activity.ListBySurvey(ctx, id)
}

const exportPrefix = "exports/"

// Export writes a JSON snapshot of every survey to the file store.
func (s *Service) Export(ctx context.Context, caller auth.Principal) (*models.ExportResponse, error) {
	if err := auth.Require(caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	all, err := s.surveys.FindAllSurveys(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(models.SurveyViews(all))
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	key := uuid.New().String()
	if err := s.files.Upload(ctx, exportPrefix+key+".json", data, "application/json"); err != nil {
		return nil, err
	}
	s.log.Info("surveys exported", "key", key, "count", len(all), "by", caller.Username)
	return &models.ExportResponse{Key: key, Count: len(all)}, nil
}

// DownloadExport returns a snapshot written by Export.
func (s *Service) DownloadExport(ctx context.Context, caller auth.Principal, key string) ([]byte, error) {
	if err := auth.Require(caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(key); err != nil {
		return nil, ErrExportNotFound
	}
	data, _, err := s.files.Download(ctx, exportPrefix+key+".json")
	if errors.Is(err, store.ErrObjectNotFound) {
		return nil, ErrExportNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// DeleteExport removes a stored snapshot. Unknown keys are not an error.
func (s *Service) DeleteExport(ctx context.Context, caller auth.Principal, key string) error {
	if err := auth.Require(caller, auth.RoleAdmin); err != nil {
		return err
	}
	if _, err := uuid.Parse(key); err != nil {
		return ErrExportNotFound
	}
	if err := s.files.Remove(ctx, exportPrefix+key+".json"); err != nil {
		return err
	}
	s.log.Info("export removed", "key", key, "by", caller.Username)
	return nil
}

// record appends to the activity log; failures are logged, never returned.
func (s *Service) record(ctx context.Context, id int64, action string, caller auth.Principal) {
	err := s.activity.Record(ctx, models.SurveyActivity{
		SurveyID: id,
		Action:   action,
		Actor:    caller.Username,
		At:       s.now().UTC(),
	})
	if err != nil {
		s.log.Warn("activity record failed (non-fatal)", "id", id, "action", action, "err", err)
	}
}
