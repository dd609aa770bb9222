package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"social-api/internal/domain"
	"social-api/internal/repository"
)

// IdentifierKind clasifica un identificador de entrada para los flujos de
// reset de contraseña. Un username nunca es un kind válido en esa entrada.
type IdentifierKind string

const (
	IdentifierEmail IdentifierKind = "email"
	IdentifierPhone IdentifierKind = "phone"
)

// Field devuelve el campo de usuario sobre el que buscar este kind.
func (k IdentifierKind) Field() repository.UserField {
	if k == IdentifierPhone {
		return repository.FieldPhone
	}
	return repository.FieldEmail
}

// loginFields fija el orden de resolución del login. El orden es un
// tie-break deliberado: si un mismo identificador pudiera coincidir con
// cuentas distintas por campos distintos, gana la coincidencia por email.
var loginFields = []repository.UserField{
	repository.FieldEmail,
	repository.FieldUsername,
	repository.FieldPhone,
}

// IdentityResolver resuelve identificadores de login contra los tres campos
// de identidad y clasifica entradas libres para los flujos de reset.
type IdentityResolver struct {
	users repository.UserRepository
}

func NewIdentityResolver(users repository.UserRepository) *IdentityResolver {
	return &IdentityResolver{users: users}
}

// ResolveLogin busca la cuenta que coincide con identifier (email, luego
// username, luego phone, case-insensitive) y verifica la contraseña. Todas
// las rutas de fallo devuelven el mismo ErrInvalidCredentials: la respuesta
// no distingue "no existe" de "contraseña incorrecta".
func (r *IdentityResolver) ResolveLogin(ctx context.Context, identifier, password string) (domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	password = strings.TrimSpace(password)
	if identifier == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	var user domain.User
	found := false
	for _, field := range loginFields {
		u, err := r.users.GetByField(ctx, field, identifier)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return domain.User{}, err
		}
		user = u
		found = true
		break
	}

	if !found || user.PasswordHash == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ClassifyIdentifier decide si una entrada libre es un email o un teléfono.
// Email: contiene "@" y el tramo después del último "@" contiene ".".
// Phone: solo dígitos, largo entre 11 y 13. Cualquier otra forma (incluidos
// usernames) se rechaza: el flujo de reset no acepta usernames.
func (r *IdentityResolver) ClassifyIdentifier(raw string) (IdentifierKind, string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", "", &ValidationError{Field: "identifier", Message: "identifier required"}
	}

	if at := strings.LastIndex(value, "@"); at >= 0 {
		if strings.Contains(value[at+1:], ".") {
			return IdentifierEmail, value, nil
		}
		return "", "", &ValidationError{Field: "identifier", Message: "identifier must be an email or phone number"}
	}

	if isAllDigits(value) && len(value) >= 11 && len(value) <= 13 {
		return IdentifierPhone, value, nil
	}
	return "", "", &ValidationError{Field: "identifier", Message: "identifier must be an email or phone number"}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
