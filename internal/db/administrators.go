package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAdministratorNotFound is returned when a requested administrator cannot be found.
var ErrAdministratorNotFound = errors.New("administrator not found")

// ListAdministrators returns every administrator, oldest first.
func ListAdministrators(ctx context.Context, pool *pgxpool.Pool) ([]models.Administrator, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, email, name, created_at
		FROM administrators
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list administrators: %w", err)
	}
	defer rows.Close()

	admins := []models.Administrator{}
	for rows.Next() {
		var a models.Administrator
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan administrator: %w", err)
		}
		admins = append(admins, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating administrators: %w", err)
	}

	return admins, nil
}

// GetAdministratorByEmail returns the administrator with the given email, case-insensitively.
func GetAdministratorByEmail(ctx context.Context, pool *pgxpool.Pool, email string) (*models.Administrator, error) {
	var a models.Administrator
	err := pool.QueryRow(ctx, `
		SELECT id, email, name, created_at
		FROM administrators
		WHERE lower(email) = lower($1)
	`, strings.TrimSpace(email)).Scan(&a.ID, &a.Email, &a.Name, &a.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAdministratorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get administrator: %w", err)
	}

	return &a, nil
}

// CreateAdministrator inserts an administrator, or returns the existing one with that email.
func CreateAdministrator(ctx context.Context, pool *pgxpool.Pool, email, name string) (*models.Administrator, error) {
	var a models.Administrator
	err := pool.QueryRow(ctx, `
		INSERT INTO administrators (email, name)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, name, created_at
	`, strings.TrimSpace(email), name).Scan(&a.ID, &a.Email, &a.Name, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create administrator: %w", err)
	}
	return &a, nil
}
