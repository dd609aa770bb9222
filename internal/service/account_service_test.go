package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"social-api/internal/domain"
	"social-api/internal/repository"
)

type mockUserRepo struct {
	usersByID map[string]domain.User
	changes   []domain.UsernameChange
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{usersByID: make(map[string]domain.User)}
}

func fieldValue(u domain.User, field repository.UserField) string {
	switch field {
	case repository.FieldEmail:
		return u.Email
	case repository.FieldUsername:
		return u.Username
	case repository.FieldPhone:
		return u.Phone
	}
	return ""
}

func (m *mockUserRepo) conflict(user domain.User) error {
	for _, other := range m.usersByID {
		if other.ID == user.ID {
			continue
		}
		for _, field := range []repository.UserField{repository.FieldEmail, repository.FieldUsername, repository.FieldPhone} {
			v := fieldValue(user, field)
			if v != "" && strings.EqualFold(v, fieldValue(other, field)) {
				return &repository.ConflictError{Field: field}
			}
		}
	}
	return nil
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	if err := m.conflict(user); err != nil {
		return err
	}
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByField(_ context.Context, field repository.UserField, value string) (domain.User, error) {
	for _, user := range m.usersByID {
		v := fieldValue(user, field)
		if v != "" && strings.EqualFold(v, value) {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) FindConflict(_ context.Context, field repository.UserField, value, excludeID string) (bool, error) {
	for _, user := range m.usersByID {
		if user.ID == excludeID {
			continue
		}
		v := fieldValue(user, field)
		if v != "" && strings.EqualFold(v, value) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, updatedAt time.Time) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = updatedAt
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, user domain.User) error {
	if _, ok := m.usersByID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	if err := m.conflict(user); err != nil {
		return err
	}
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserRepo) ChangeUsername(_ context.Context, user domain.User, change domain.UsernameChange) error {
	if _, ok := m.usersByID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	if err := m.conflict(user); err != nil {
		return err
	}
	m.usersByID[user.ID] = user
	m.changes = append(m.changes, change)
	return nil
}

func (m *mockUserRepo) ListUsernameChanges(_ context.Context, userID string) ([]domain.UsernameChange, error) {
	var changes []domain.UsernameChange
	for _, ch := range m.changes {
		if ch.UserID == userID {
			changes = append(changes, ch)
		}
	}
	return changes, nil
}

type mockResetSender struct {
	lastTo   string
	lastCode string
	err      error
}

func (m *mockResetSender) SendPasswordResetCode(_ context.Context, toEmail string, code string) error {
	m.lastTo = toEmail
	m.lastCode = code
	return m.err
}

func newAccountService(repo *mockUserRepo, sender *mockResetSender) *AccountService {
	resolver := NewIdentityResolver(repo)
	return NewAccountService(zap.NewNop(), repo, resolver, NewStaticCodeIssuer(), sender)
}

func mustRegister(t *testing.T, svc *AccountService, input RegisterInput) domain.User {
	t.Helper()
	user, err := svc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return user
}

func TestRegisterRequiresIdentityField(t *testing.T) {
	svc := newAccountService(newMockUserRepo(), &mockResetSender{})

	_, err := svc.Register(context.Background(), RegisterInput{Password: "secret1"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if vErr.Field != "identity" {
		t.Fatalf("expected identity field, got %s", vErr.Field)
	}
}

func TestRegisterUsernameOnly(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})

	user := mustRegister(t, svc, RegisterInput{Username: "solo", Password: "secret1"})
	if user.Username != "solo" {
		t.Fatalf("expected username solo, got %q", user.Username)
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret1" {
		t.Fatalf("expected hashed password, got %q", user.PasswordHash)
	}
	if _, err := repo.GetByID(context.Background(), user.ID); err != nil {
		t.Fatalf("expected user persisted, got %v", err)
	}
}

func TestRegisterNormalizesEmailDomain(t *testing.T) {
	svc := newAccountService(newMockUserRepo(), &mockResetSender{})

	user := mustRegister(t, svc, RegisterInput{Email: "User@EXAMPLE.Com", Password: "secret1"})
	if user.Email != "User@example.com" {
		t.Fatalf("expected domain lowercased with local part kept, got %q", user.Email)
	}
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	svc := newAccountService(newMockUserRepo(), &mockResetSender{})
	mustRegister(t, svc, RegisterInput{Email: "dup@example.com", Password: "secret1"})

	_, err := svc.Register(context.Background(), RegisterInput{Email: "DUP@example.com", Password: "secret1"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if vErr.Field != "email" {
		t.Fatalf("expected email field, got %s", vErr.Field)
	}
}

func TestRequestPasswordResetByEmail(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockResetSender{}
	svc := newAccountService(repo, sender)
	mustRegister(t, svc, RegisterInput{Email: "reset@example.com", Password: "secret1"})

	user, err := svc.RequestPasswordReset(context.Background(), "reset@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Email != "reset@example.com" {
		t.Fatalf("unexpected user %q", user.Email)
	}
	if sender.lastTo != "reset@example.com" || sender.lastCode == "" {
		t.Fatalf("expected reset code sent by email")
	}
}

func TestRequestPasswordResetUnknownIdentifier(t *testing.T) {
	svc := newAccountService(newMockUserRepo(), &mockResetSender{})

	_, err := svc.RequestPasswordReset(context.Background(), "missing@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRequestPasswordResetRejectsUsernameShape(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	mustRegister(t, svc, RegisterInput{Username: "plainname", Password: "secret1"})

	_, err := svc.RequestPasswordReset(context.Background(), "plainname")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for username identifier, got %v", err)
	}
}

func TestConfirmPasswordResetSuccess(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	resolver := NewIdentityResolver(repo)
	mustRegister(t, svc, RegisterInput{Email: "flow@example.com", Password: "oldpass"})

	if _, err := svc.ConfirmPasswordReset(context.Background(), "flow@example.com", "123456", "newpass"); err != nil {
		t.Fatalf("expected reset to succeed, got %v", err)
	}

	if _, err := resolver.ResolveLogin(context.Background(), "flow@example.com", "newpass"); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}
	if _, err := resolver.ResolveLogin(context.Background(), "flow@example.com", "oldpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
}

func TestConfirmPasswordResetWrongCode(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	resolver := NewIdentityResolver(repo)
	mustRegister(t, svc, RegisterInput{Email: "flow@example.com", Password: "oldpass"})

	_, err := svc.ConfirmPasswordReset(context.Background(), "flow@example.com", "000000", "newpass")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if vErr.Field != "code" {
		t.Fatalf("expected code field, got %s", vErr.Field)
	}

	if _, err := resolver.ResolveLogin(context.Background(), "flow@example.com", "oldpass"); err != nil {
		t.Fatalf("expected old password still valid, got %v", err)
	}
}

func TestConfirmPasswordResetShortPassword(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	mustRegister(t, svc, RegisterInput{Email: "flow@example.com", Password: "oldpass"})

	_, err := svc.ConfirmPasswordReset(context.Background(), "flow@example.com", "123456", "short")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if vErr.Field != "new_password" {
		t.Fatalf("expected new_password field, got %s", vErr.Field)
	}
}

func TestConfirmPasswordResetByPhone(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	resolver := NewIdentityResolver(repo)
	mustRegister(t, svc, RegisterInput{Phone: "09123456789", Password: "oldpass"})

	if _, err := svc.ConfirmPasswordReset(context.Background(), "09123456789", "123456", "newpass"); err != nil {
		t.Fatalf("expected reset by phone to succeed, got %v", err)
	}
	if _, err := resolver.ResolveLogin(context.Background(), "09123456789", "newpass"); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}
}

func TestChangePasswordValidations(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	user := mustRegister(t, svc, RegisterInput{Email: "pw@example.com", Password: "oldpass"})

	cases := []struct {
		name  string
		old   string
		new   string
		field string
	}{
		{"wrong old password", "not-it", "newpass", "old_password"},
		{"new equals old", "oldpass", "oldpass", "new_password"},
		{"new too short", "oldpass", "tiny", "new_password"},
	}
	for _, tc := range cases {
		_, err := svc.ChangePassword(context.Background(), user, tc.old, tc.new)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if vErr.Field != tc.field {
			t.Fatalf("%s: expected field %s, got %s", tc.name, tc.field, vErr.Field)
		}
	}
}

func TestChangePasswordSuccess(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	resolver := NewIdentityResolver(repo)
	user := mustRegister(t, svc, RegisterInput{Email: "pw@example.com", Password: "oldpass"})

	updated, err := svc.ChangePassword(context.Background(), user, "oldpass", "newpass")
	if err != nil {
		t.Fatalf("expected change to succeed, got %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newpass")); err != nil {
		t.Fatalf("expected hash of new password: %v", err)
	}
	if _, err := resolver.ResolveLogin(context.Background(), "pw@example.com", "oldpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password invalidated, got %v", err)
	}
}

func TestChangeUsernameWritesAuditRecord(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	user := mustRegister(t, svc, RegisterInput{Username: "before", Password: "secret1"})

	updated, change, err := svc.ChangeUsername(context.Background(), user, "after")
	if err != nil {
		t.Fatalf("expected change to succeed, got %v", err)
	}
	if updated.Username != "after" {
		t.Fatalf("expected username after, got %q", updated.Username)
	}
	if change.OldUsername != "before" || change.NewUsername != "after" {
		t.Fatalf("unexpected audit record %+v", change)
	}
	if len(repo.changes) != 1 {
		t.Fatalf("expected exactly one audit record, got %d", len(repo.changes))
	}
	stored, _ := repo.GetByID(context.Background(), user.ID)
	if stored.Username != "after" {
		t.Fatalf("expected stored username after, got %q", stored.Username)
	}
}

func TestChangeUsernameConflict(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	mustRegister(t, svc, RegisterInput{Username: "taken", Password: "secret1"})
	user := mustRegister(t, svc, RegisterInput{Username: "mine", Password: "secret1"})

	_, _, err := svc.ChangeUsername(context.Background(), user, "taken")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if vErr.Field != "username" {
		t.Fatalf("expected username field, got %s", vErr.Field)
	}
	if len(repo.changes) != 0 {
		t.Fatalf("expected no audit record on conflict")
	}
}

func TestChangeUsernameToOwnValue(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	user := mustRegister(t, svc, RegisterInput{Username: "same", Password: "secret1"})

	if _, _, err := svc.ChangeUsername(context.Background(), user, "same"); err != nil {
		t.Fatalf("expected no self-conflict, got %v", err)
	}
}

func TestUpdateProfileUsernameConflict(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	mustRegister(t, svc, RegisterInput{Username: "taken", Password: "secret1"})
	user := mustRegister(t, svc, RegisterInput{Username: "mine", Password: "secret1"})

	taken := "taken"
	_, err := svc.UpdateProfile(context.Background(), user, UpdateProfileInput{Username: &taken})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if vErr.Field != "username" {
		t.Fatalf("expected username field, got %s", vErr.Field)
	}
}

func TestUpdateProfileOwnUsernameNoConflict(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	user := mustRegister(t, svc, RegisterInput{Username: "mine", Password: "secret1"})

	mine := "mine"
	if _, err := svc.UpdateProfile(context.Background(), user, UpdateProfileInput{Username: &mine}); err != nil {
		t.Fatalf("expected own value to pass, got %v", err)
	}
}

func TestUpdateProfilePartialKeepsOtherFields(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	user := mustRegister(t, svc, RegisterInput{Email: "keep@example.com", Username: "keeper", Password: "secret1"})

	first := "Ana"
	updated, err := svc.UpdateProfile(context.Background(), user, UpdateProfileInput{FirstName: &first})
	if err != nil {
		t.Fatalf("expected update to succeed, got %v", err)
	}
	if updated.FirstName != "Ana" {
		t.Fatalf("expected first name set, got %q", updated.FirstName)
	}
	if updated.Email != "keep@example.com" || updated.Username != "keeper" {
		t.Fatalf("expected untouched fields preserved, got %+v", updated)
	}
}

func TestUpdateProfileCannotClearAllIdentityFields(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAccountService(repo, &mockResetSender{})
	user := mustRegister(t, svc, RegisterInput{Username: "only", Password: "secret1"})

	empty := ""
	_, err := svc.UpdateProfile(context.Background(), user, UpdateProfileInput{Username: &empty})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if vErr.Field != "identity" {
		t.Fatalf("expected identity field, got %s", vErr.Field)
	}
}
