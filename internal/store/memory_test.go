package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alouzou/sondage/backend/internal/models"
)

func TestMemoryStore_CreateUserRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u, err := s.CreateUser(ctx, &models.User{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)

	_, err = s.CreateUser(ctx, &models.User{Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.CreateUser(ctx, &models.User{Username: "bob", Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryStore_FindUserByUsernameMissing(t *testing.T) {
	u, err := NewMemoryStore().FindUserByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestMemoryStore_SetUserRoles(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u, err := s.CreateUser(ctx, &models.User{Username: "carol", Email: "c@example.com"})
	require.NoError(t, err)

	require.NoError(t, s.SetUserRoles(ctx, u.ID, []string{"ADMIN"}))
	got, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN"}, got.Roles)

	assert.Error(t, s.SetUserRoles(ctx, 99, []string{"ADMIN"}))
}

func TestMemoryStore_SurveyQueries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	a, err := s.SaveSurvey(ctx, &models.Survey{Title: "a", CreatorID: 1, CategoryID: 3})
	require.NoError(t, err)
	b, err := s.SaveSurvey(ctx, &models.Survey{Title: "b", CreatorID: 2, CategoryID: 3})
	require.NoError(t, err)
	_, err = s.SaveSurvey(ctx, &models.Survey{Title: "c", CreatorID: 1, CategoryID: 4})
	require.NoError(t, err)

	assert.Equal(t, fixed, a.CreatedAt)
	assert.NotEqual(t, a.ID, b.ID)

	byCategory, err := s.FindSurveysByCategory(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, titles(byCategory))

	byCreator, err := s.FindSurveysByCreator(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, titles(byCreator))

	none, err := s.FindSurveysByCategory(ctx, 42)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	all, err := s.FindAllSurveys(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sv, err := s.SaveSurvey(ctx, &models.Survey{Title: "x", CreatorID: 1, CategoryID: 1})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSurveyByID(ctx, sv.ID))
	require.NoError(t, s.DeleteSurveyByID(ctx, sv.ID))

	got, err := s.FindSurveyByID(ctx, sv.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryActivityLog_NewestFirst(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryActivityLog()
	require.NoError(t, l.Record(ctx, models.SurveyActivity{SurveyID: 1, Action: models.ActivityCreated}))
	require.NoError(t, l.Record(ctx, models.SurveyActivity{SurveyID: 2, Action: models.ActivityCreated}))
	require.NoError(t, l.Record(ctx, models.SurveyActivity{SurveyID: 1, Action: models.ActivityDeleted}))

	entries, err := l.ListBySurvey(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActivityDeleted, entries[0].Action)
	assert.Equal(t, models.ActivityCreated, entries[1].Action)
}

func TestMemoryBlobStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBlobStore()

	require.NoError(t, b.Upload(ctx, "exports/a.json", []byte(`[]`), "application/json"))
	data, ct, err := b.Download(ctx, "exports/a.json")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
	assert.Equal(t, "application/json", ct)

	require.NoError(t, b.Remove(ctx, "exports/a.json"))
	_, _, err = b.Download(ctx, "exports/a.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func titles(surveys []models.Survey) []string {
	out := make([]string, 0, len(surveys))
	for _, s := range surveys {
		out = append(out, s.Title)
	}
	return out
}
