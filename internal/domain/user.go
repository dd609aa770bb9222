package domain

import "time"

// User es la entidad de identidad. Email, Username y Phone son opcionales
// (cadena vacía = ausente) pero al menos uno debe estar presente; cada uno,
// cuando existe, es único entre todas las cuentas (comparación
// case-insensitive).
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	Username     string    `json:"username,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasIdentity indica si la cuenta conserva al menos un campo de identidad.
func (u User) HasIdentity() bool {
	return u.Email != "" || u.Username != "" || u.Phone != ""
}

// UsernameChange es una entrada de auditoría append-only: se crea exactamente
// una por cada cambio de username exitoso y nunca se modifica.
type UsernameChange struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	OldUsername string    `json:"old_username,omitempty"`
	NewUsername string    `json:"new_username"`
	ChangedAt   time.Time `json:"changed_at"`
}
