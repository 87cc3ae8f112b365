package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alouzou/sondage/backend/internal/models"
)

// MemoryStore keeps users and surveys in process memory. It backs local
// development when no POSTGRES_DSN is configured, and the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]models.User
	surveys  map[int64]models.Survey
	nextUser int64
	nextSurv int64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[int64]models.User),
		surveys: make(map[int64]models.Survey),
		now:     time.Now,
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return nil, ErrDuplicate
		}
	}
	s.nextUser++
	out := *u
	out.ID = s.nextUser
	out.Roles = append([]string{}, u.Roles...)
	out.CreatedAt = s.now()
	s.users[out.ID] = out
	return &out, nil
}

func (s *MemoryStore) SetUserRoles(_ context.Context, id int64, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("set user roles: user %d not found", id)
	}
	u.Roles = append([]string{}, roles...)
	s.users[id] = u
	return nil
}

func (s *MemoryStore) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *MemoryStore) SaveSurvey(_ context.Context, sv *models.Survey) (*models.Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSurv++
	out := *sv
	out.ID = s.nextSurv
	out.CreatedAt = s.now()
	s.surveys[out.ID] = out
	return &out, nil
}

func (s *MemoryStore) FindSurveyByID(_ context.Context, id int64) (*models.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sv, ok := s.surveys[id]
	if !ok {
		return nil, nil
	}
	return &sv, nil
}

func (s *MemoryStore) FindSurveysByCreator(_ context.Context, creatorID int64) ([]models.Survey, error) {
	return s.filterSurveys(func(sv models.Survey) bool { return sv.CreatorID == creatorID }), nil
}

func (s *MemoryStore) FindSurveysByCategory(_ context.Context, categoryID int64) ([]models.Survey, error) {
	return s.filterSurveys(func(sv models.Survey) bool { return sv.CategoryID == categoryID }), nil
}

func (s *MemoryStore) FindAllSurveys(_ context.Context) ([]models.Survey, error) {
	return s.filterSurveys(func(models.Survey) bool { return true }), nil
}

func (s *MemoryStore) DeleteSurveyByID(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.surveys, id)
	return nil
}

// filterSurveys returns matches ordered by id, like the SQL queries.
func (s *MemoryStore) filterSurveys(keep func(models.Survey) bool) []models.Survey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Survey, 0)
	for _, sv := range s.surveys {
		if keep(sv) {
			out = append(out, sv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MemoryActivityLog is the in-process ActivityLog used without MongoDB.
type MemoryActivityLog struct {
	mu      sync.Mutex
	entries []models.SurveyActivity
}

func NewMemoryActivityLog() *MemoryActivityLog {
	return &MemoryActivityLog{}
}

func (l *MemoryActivityLog) Record(_ context.Context, a models.SurveyActivity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, a)
	return nil
}

// ListBySurvey returns the survey's entries, newest first.
func (l *MemoryActivityLog) ListBySurvey(_ context.Context, surveyID int64) ([]models.SurveyActivity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.SurveyActivity, 0)
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].SurveyID == surveyID {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}

type blob struct {
	data        []byte
	contentType string
}

// MemoryBlobStore is the in-process FileStore used without MinIO.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string]blob
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string]blob)}
}

func (b *MemoryBlobStore) Upload(_ context.Context, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = blob{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (b *MemoryBlobStore) Download(_ context.Context, key string) ([]byte, string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.objects[key]
	if !ok {
		return nil, "", ErrObjectNotFound
	}
	return append([]byte(nil), obj.data...), obj.contentType, nil
}

func (b *MemoryBlobStore) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, key)
	return nil
}
