package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/greenhouse-led-hub/internal/database"
	"github.com/iliyamo/greenhouse-led-hub/internal/model"
	"github.com/iliyamo/greenhouse-led-hub/internal/utils"
)

type UserRepo struct{ DB *database.DB }

func NewUserRepo(db *database.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes the password and inserts the user, returning its ID.  The
// unique key on username makes the duplicate check and the insert one
// atomic step.
func (r *UserRepo) Create(ctx context.Context, username, password string, cost int) (uint64, error) {
	username = strings.TrimSpace(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.Execute(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?, ?)", false,
		username, hash)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, ErrUsernameExists
		}
		return 0, err
	}
	return uint64(res.LastInsertID), nil
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getOne(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ? LIMIT 1",
		strings.TrimSpace(username))
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (model.User, error) {
	res, err := r.DB.Execute(ctx, query, true, arg)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	return model.User{
		ID:           res.Row.Uint64("id"),
		Username:     res.Row.String("username"),
		PasswordHash: res.Row.String("password_hash"),
		CreatedAt:    res.Row.Time("created_at"),
	}, nil
}

// Authenticate returns the user when the password matches its stored hash.
// Unknown usernames and wrong passwords both yield ErrNotFound so callers
// cannot tell them apart.
func (r *UserRepo) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	u, err := r.GetByUsername(ctx, username)
	if err != nil {
		return model.User{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, ErrNotFound
	}
	return u, nil
}
