package service

import (
	"context"
	"crypto/subtle"
)

// ResetCodeIssuer emite y verifica códigos de un solo uso que autorizan un
// reset de contraseña. La interfaz existe para poder sustituir el stub por un
// proveedor OTP real sin tocar el flujo de AccountService.
type ResetCodeIssuer interface {
	Issue(ctx context.Context, identifier string) (string, error)
	Verify(ctx context.Context, identifier, code string) bool
}

// StaticCodeIssuer devuelve siempre el mismo código fijo. Es un placeholder
// de desarrollo: sin expiración, sin aleatoriedad y sin canal de entrega
// propio. No usar en producción.
type StaticCodeIssuer struct {
	code string
}

const defaultResetCode = "123456"

func NewStaticCodeIssuer() *StaticCodeIssuer {
	return &StaticCodeIssuer{code: defaultResetCode}
}

func (i *StaticCodeIssuer) Issue(_ context.Context, _ string) (string, error) {
	return i.code, nil
}

func (i *StaticCodeIssuer) Verify(_ context.Context, _ string, code string) bool {
	return subtle.ConstantTimeCompare([]byte(i.code), []byte(code)) == 1
}
