package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-api/internal/domain"
)

// UserField identifica uno de los tres campos de identidad sobre los que se
// puede resolver un login o validar unicidad.
type UserField string

const (
	FieldEmail    UserField = "email"
	FieldUsername UserField = "username"
	FieldPhone    UserField = "phone"
)

// column devuelve la columna SQL para el campo. Solo los tres valores del
// enum son válidos; cualquier otro cae en cadena vacía y la query falla.
func (f UserField) column() string {
	switch f {
	case FieldEmail:
		return "email"
	case FieldUsername:
		return "username"
	case FieldPhone:
		return "phone"
	}
	return ""
}

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByField(ctx context.Context, field UserField, value string) (domain.User, error)
	FindConflict(ctx context.Context, field UserField, value, excludeID string) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	UpdateProfile(ctx context.Context, user domain.User) error
	ChangeUsername(ctx context.Context, user domain.User, change domain.UsernameChange) error
	ListUsernameChanges(ctx context.Context, userID string) ([]domain.UsernameChange, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `
	id,
	COALESCE(email, ''),
	COALESCE(username, ''),
	COALESCE(phone, ''),
	COALESCE(first_name, ''),
	COALESCE(last_name, ''),
	COALESCE(password_hash, ''),
	created_at,
	updated_at
`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.Phone,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	// NULLIF conserva la semántica de unicidad sobre campos ausentes: dos
	// cuentas sin phone no chocan entre sí.
	const query = `
		INSERT INTO users (id, email, username, phone, first_name, last_name, password_hash, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.Phone,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return mapUniqueViolation(err)
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	return u, err
}

func (r *PgUserRepository) GetByField(ctx context.Context, field UserField, value string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(` + field.column() + `) = LOWER($1)`
	u, err := scanUser(r.pool.QueryRow(ctx, query, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	return u, err
}

// FindConflict reporta si otro usuario (distinto de excludeID) ya ocupa el
// valor en el campo dado. excludeID vacío no excluye a nadie.
func (r *PgUserRepository) FindConflict(ctx context.Context, field UserField, value, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE LOWER(` + field.column() + `) = LOWER($1) AND ($2 = '' OR id::text <> $2)
		)
	`
	var exists bool
	err := r.pool.QueryRow(ctx, query, value, excludeID).Scan(&exists)
	return exists, err
}

func (r *PgUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, passwordHash, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, user domain.User) error {
	const query = `
		UPDATE users
		SET email = NULLIF($2, ''),
		    username = NULLIF($3, ''),
		    phone = NULLIF($4, ''),
		    first_name = $5,
		    last_name = $6,
		    updated_at = $7
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.Phone,
		user.FirstName,
		user.LastName,
		user.UpdatedAt,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ChangeUsername actualiza el username y escribe la entrada de auditoría en
// la misma transacción: o se confirman ambas o ninguna.
func (r *PgUserRepository) ChangeUsername(ctx context.Context, user domain.User, change domain.UsernameChange) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const updateQuery = `UPDATE users SET username = NULLIF($2, ''), updated_at = $3 WHERE id = $1`
	tag, err := tx.Exec(ctx, updateQuery, user.ID, user.Username, user.UpdatedAt)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	const insertQuery = `
		INSERT INTO username_changes (id, user_id, old_username, new_username, changed_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
	`
	if _, err := tx.Exec(ctx, insertQuery,
		change.ID,
		change.UserID,
		change.OldUsername,
		change.NewUsername,
		change.ChangedAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgUserRepository) ListUsernameChanges(ctx context.Context, userID string) ([]domain.UsernameChange, error) {
	const query = `
		SELECT id, user_id, COALESCE(old_username, ''), new_username, changed_at
		FROM username_changes
		WHERE user_id = $1
		ORDER BY changed_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []domain.UsernameChange
	for rows.Next() {
		var ch domain.UsernameChange
		if err := rows.Scan(&ch.ID, &ch.UserID, &ch.OldUsername, &ch.NewUsername, &ch.ChangedAt); err != nil {
			return nil, err
		}
		changes = append(changes, ch)
	}
	return changes, rows.Err()
}
