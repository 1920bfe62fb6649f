package pgstore

import (
	"context"

	"github.com/BearBump/Packaroo/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	var out models.User
	err := s.db.QueryRow(ctx, `
INSERT INTO users (id, name, email, role, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id, name, email, role, created_at
`, u.ID, u.Name, u.Email, u.Role, u.CreatedAt.UTC()).Scan(&out.ID, &out.Name, &out.Email, &out.Role, &out.CreatedAt)
	if isUniqueViolation(err) {
		return nil, errors.Wrapf(models.ErrAlreadyExists, "user with email %s", u.Email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	return &out, nil
}

func (s *Storage) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, `
SELECT id, name, email, role, created_at
FROM users
WHERE id = $1
`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if isNoRows(err) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return &u, nil
}
