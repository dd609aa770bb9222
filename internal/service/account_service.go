package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"social-api/internal/domain"
	"social-api/internal/email"
	"social-api/internal/repository"
)

// ValidationError describe una entrada rechazada por política, con el campo
// que la provocó. El caller puede corregir y reintentar.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

const minPasswordLen = 6

// AccountService coordina el ciclo de vida de credenciales: registro, reset,
// cambio de contraseña, cambio de username y edición de perfil.
type AccountService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	resolver *IdentityResolver
	codes    ResetCodeIssuer
	sender   email.Sender
}

func NewAccountService(logger *zap.Logger, users repository.UserRepository, resolver *IdentityResolver, codes ResetCodeIssuer, sender email.Sender) *AccountService {
	if codes == nil {
		codes = NewStaticCodeIssuer()
	}
	return &AccountService{
		logger:   logger,
		users:    users,
		resolver: resolver,
		codes:    codes,
		sender:   sender,
	}
}

type RegisterInput struct {
	Email     string
	Username  string
	Phone     string
	FirstName string
	LastName  string
	Password  string
}

func (s *AccountService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	emailAddr := normalizeEmail(input.Email)
	username := strings.TrimSpace(input.Username)
	phone := strings.TrimSpace(input.Phone)
	password := strings.TrimSpace(input.Password)

	if emailAddr == "" && username == "" && phone == "" {
		return domain.User{}, &ValidationError{Field: "identity", Message: "at least one of email, username, phone required"}
	}
	if password == "" {
		return domain.User{}, &ValidationError{Field: "password", Message: "password required"}
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		Username:     username,
		Phone:        phone,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: string(hashBytes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// La unicidad real la garantiza el índice único del store; el error de
	// constraint se traduce al campo en conflicto.
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, conflictToValidation(err)
	}
	return user, nil
}

// RequestPasswordReset clasifica el identificador (email o phone, nunca
// username), localiza la cuenta y emite un código de un solo uso. Un
// identificador sin cuenta devuelve ErrUserNotFound: este flujo no oculta la
// existencia de cuentas.
func (s *AccountService) RequestPasswordReset(ctx context.Context, identifier string) (domain.User, error) {
	kind, value, err := s.resolver.ClassifyIdentifier(identifier)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.users.GetByField(ctx, kind.Field(), value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	code, err := s.codes.Issue(ctx, value)
	if err != nil {
		return domain.User{}, err
	}

	if s.sender != nil && user.Email != "" {
		if err := s.sender.SendPasswordResetCode(ctx, user.Email, code); err != nil && s.logger != nil {
			s.logger.Warn("send reset code failed", zap.Error(err), zap.String("user_id", user.ID))
		}
	}
	return user, nil
}

// ConfirmPasswordReset valida el código y la nueva contraseña y sobrescribe
// la credencial. A diferencia de ChangePassword, no exige que la nueva
// contraseña difiera de la anterior.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, identifier, code, newPassword string) (domain.User, error) {
	if !s.codes.Verify(ctx, identifier, strings.TrimSpace(code)) {
		return domain.User{}, &ValidationError{Field: "code", Message: "invalid code"}
	}
	newPassword = strings.TrimSpace(newPassword)
	if len(newPassword) < minPasswordLen {
		return domain.User{}, &ValidationError{Field: "new_password", Message: "password too short"}
	}

	kind, value, err := s.resolver.ClassifyIdentifier(identifier)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.GetByField(ctx, kind.Field(), value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	now := time.Now().UTC()
	if err := s.users.UpdatePassword(ctx, user.ID, string(hashBytes), now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	user.PasswordHash = string(hashBytes)
	user.UpdatedAt = now
	return user, nil
}

// ChangePassword requiere la cuenta ya autenticada, pasada explícita.
func (s *AccountService) ChangePassword(ctx context.Context, user domain.User, oldPassword, newPassword string) (domain.User, error) {
	oldPassword = strings.TrimSpace(oldPassword)
	newPassword = strings.TrimSpace(newPassword)

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return domain.User{}, &ValidationError{Field: "old_password", Message: "old password incorrect"}
	}
	if newPassword == oldPassword {
		return domain.User{}, &ValidationError{Field: "new_password", Message: "new password must differ"}
	}
	if len(newPassword) < minPasswordLen {
		return domain.User{}, &ValidationError{Field: "new_password", Message: "password too short"}
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	now := time.Now().UTC()
	if err := s.users.UpdatePassword(ctx, user.ID, string(hashBytes), now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	user.PasswordHash = string(hashBytes)
	user.UpdatedAt = now
	return user, nil
}

// ChangeUsername asigna el nuevo username y deja una entrada de auditoría en
// la misma transacción. La cuenta puede "cambiar" a su username actual sin
// conflicto (exclusión de sí misma).
func (s *AccountService) ChangeUsername(ctx context.Context, user domain.User, newUsername string) (domain.User, domain.UsernameChange, error) {
	newUsername = strings.TrimSpace(newUsername)
	if newUsername == "" {
		return domain.User{}, domain.UsernameChange{}, &ValidationError{Field: "username", Message: "username required"}
	}

	taken, err := s.users.FindConflict(ctx, repository.FieldUsername, newUsername, user.ID)
	if err != nil {
		return domain.User{}, domain.UsernameChange{}, err
	}
	if taken {
		return domain.User{}, domain.UsernameChange{}, &ValidationError{Field: "username", Message: "username already taken"}
	}

	now := time.Now().UTC()
	change := domain.UsernameChange{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		OldUsername: user.Username,
		NewUsername: newUsername,
		ChangedAt:   now,
	}
	updated := user
	updated.Username = newUsername
	updated.UpdatedAt = now

	if err := s.users.ChangeUsername(ctx, updated, change); err != nil {
		return domain.User{}, domain.UsernameChange{}, conflictToValidation(err)
	}
	return updated, change, nil
}

// UpdateProfileInput trae los campos a modificar; nil significa "sin cambio".
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Username  *string
	Phone     *string
}

// UpdateProfile aplica una actualización parcial. Todos los campos provistos
// se validan antes de aplicar ninguno; cualquier conflicto de unicidad
// (excluyendo a la propia cuenta) falla con el campo que chocó.
func (s *AccountService) UpdateProfile(ctx context.Context, user domain.User, input UpdateProfileInput) (domain.User, error) {
	updated := user
	if input.FirstName != nil {
		updated.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updated.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Email != nil {
		updated.Email = normalizeEmail(*input.Email)
	}
	if input.Username != nil {
		updated.Username = strings.TrimSpace(*input.Username)
	}
	if input.Phone != nil {
		updated.Phone = strings.TrimSpace(*input.Phone)
	}

	// El registro exige al menos un campo de identidad; aquí se mantiene el
	// mismo invariante en vez de dejar que un PATCH deje la cuenta sin
	// ninguna vía de login.
	if !updated.HasIdentity() {
		return domain.User{}, &ValidationError{Field: "identity", Message: "at least one of email, username, phone required"}
	}

	checks := []struct {
		field repository.UserField
		value string
		set   bool
	}{
		{repository.FieldEmail, updated.Email, input.Email != nil},
		{repository.FieldUsername, updated.Username, input.Username != nil},
		{repository.FieldPhone, updated.Phone, input.Phone != nil},
	}
	for _, check := range checks {
		if !check.set || check.value == "" {
			continue
		}
		taken, err := s.users.FindConflict(ctx, check.field, check.value, user.ID)
		if err != nil {
			return domain.User{}, err
		}
		if taken {
			return domain.User{}, &ValidationError{Field: string(check.field), Message: string(check.field) + " already taken"}
		}
	}

	updated.UpdatedAt = time.Now().UTC()
	if err := s.users.UpdateProfile(ctx, updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, conflictToValidation(err)
	}
	return updated, nil
}

func (s *AccountService) GetProfile(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *AccountService) UsernameHistory(ctx context.Context, userID string) ([]domain.UsernameChange, error) {
	return s.users.ListUsernameChanges(ctx, userID)
}

// conflictToValidation traduce un ConflictError del store (carrera de
// unicidad que el pre-chequeo no pudo ver) a ValidationError del campo.
func conflictToValidation(err error) error {
	var conflict *repository.ConflictError
	if errors.As(err, &conflict) {
		field := string(conflict.Field)
		return &ValidationError{Field: field, Message: field + " already taken"}
	}
	return err
}

// normalizeEmail recorta espacios y pasa el dominio a minúsculas. La parte
// local se respeta tal cual.
func normalizeEmail(raw string) string {
	emailAddr := strings.TrimSpace(raw)
	at := strings.LastIndex(emailAddr, "@")
	if at < 0 {
		return emailAddr
	}
	return emailAddr[:at+1] + strings.ToLower(emailAddr[at+1:])
}
