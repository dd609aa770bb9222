package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ConflictError indica que una escritura violó uno de los índices únicos de
// identidad. El campo se deduce del nombre del constraint.
type ConflictError struct {
	Field UserField
}

func (e *ConflictError) Error() string {
	return string(e.Field) + " already exists"
}

// mapUniqueViolation traduce violaciones de unique constraint de Postgres a
// ConflictError; otros errores pasan sin tocar. El pre-chequeo de unicidad en
// la capa de servicio tiene una ventana TOCTOU, así que el constraint del
// store es la garantía final.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return &ConflictError{Field: FieldEmail}
	case strings.Contains(pgErr.ConstraintName, "username"):
		return &ConflictError{Field: FieldUsername}
	case strings.Contains(pgErr.ConstraintName, "phone"):
		return &ConflictError{Field: FieldPhone}
	}
	return err
}
