package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alouzou/sondage/backend/internal/models"
)

// ErrDuplicate is returned when a unique column (username, email) clashes.
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

// PostgresStore handles users and surveys against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the users and surveys tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         BIGSERIAL PRIMARY KEY,
			username   VARCHAR(50)  UNIQUE NOT NULL,
			email      VARCHAR(255) UNIQUE NOT NULL,
			password   VARCHAR(255) NOT NULL,
			roles      TEXT[]       NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS surveys (
			id          BIGSERIAL PRIMARY KEY,
			title       VARCHAR(200) NOT NULL,
			description TEXT         NOT NULL DEFAULT '',
			creator_id  BIGINT       NOT NULL REFERENCES users (id),
			category_id BIGINT       NOT NULL,
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS surveys_creator_id_idx  ON surveys (creator_id);
		CREATE INDEX IF NOT EXISTS surveys_category_id_idx ON surveys (category_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	out := *u
	if out.Roles == nil {
		out.Roles = []string{}
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password, roles)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		out.Username, out.Email, out.Password, out.Roles,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &out, nil
}

// SetUserRoles replaces the granted roles of an existing user.
func (s *PostgresStore) SetUserRoles(ctx context.Context, id int64, roles []string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET roles = $2 WHERE id = $1`, id, roles)
	if err != nil {
		return fmt.Errorf("set user roles: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, `WHERE username = $1`, username)
}

func (s *PostgresStore) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.findUser(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) findUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, password, roles, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Roles, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

const surveyColumns = `id, title, description, creator_id, category_id, created_at`

func (s *PostgresStore) SaveSurvey(ctx context.Context, sv *models.Survey) (*models.Survey, error) {
	out := *sv
	err := s.pool.QueryRow(ctx,
		`INSERT INTO surveys (title, description, creator_id, category_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		sv.Title, sv.Description, sv.CreatorID, sv.CategoryID,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("save survey: %w", err)
	}
	return &out, nil
}

func (s *PostgresStore) FindSurveyByID(ctx context.Context, id int64) (*models.Survey, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+surveyColumns+` FROM surveys WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("find survey: %w", err)
	}
	sv, err := pgx.CollectOneRow(rows, scanSurvey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find survey: %w", err)
	}
	return &sv, nil
}

func (s *PostgresStore) FindSurveysByCreator(ctx context.Context, creatorID int64) ([]models.Survey, error) {
	return s.listSurveys(ctx, `WHERE creator_id = $1 ORDER BY id`, creatorID)
}

func (s *PostgresStore) FindSurveysByCategory(ctx context.Context, categoryID int64) ([]models.Survey, error) {
	return s.listSurveys(ctx, `WHERE category_id = $1 ORDER BY id`, categoryID)
}

func (s *PostgresStore) FindAllSurveys(ctx context.Context) ([]models.Survey, error) {
	return s.listSurveys(ctx, `ORDER BY id`)
}

// DeleteSurveyByID removes the survey if present; a missing id is not an error.
func (s *PostgresStore) DeleteSurveyByID(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM surveys WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete survey: %w", err)
	}
	return nil
}

func (s *PostgresStore) listSurveys(ctx context.Context, clause string, args ...any) ([]models.Survey, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+surveyColumns+` FROM surveys `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	surveys, err := pgx.CollectRows(rows, scanSurvey)
	if err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	return surveys, nil
}

func scanSurvey(row pgx.CollectableRow) (models.Survey, error) {
	var sv models.Survey
	err := row.Scan(&sv.ID, &sv.Title, &sv.Description, &sv.CreatorID, &sv.CategoryID, &sv.CreatedAt)
	return sv, err
}
