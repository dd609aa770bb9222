package email

import (
	"context"
	"errors"
)

// Sender define la interfaz para entregar códigos de reset por correo.
type Sender interface {
	SendPasswordResetCode(ctx context.Context, toEmail string, code string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendPasswordResetCode(_ context.Context, _ string, _ string) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
