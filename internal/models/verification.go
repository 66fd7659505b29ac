package models

import "time"

// Назначение одноразовой проверки.
const (
	PurposeLogin        = "login"
	PurposeRegistration = "registration"
)

// VerificationSession одноразовый вызов с кодом, отправленным на телефон.
type VerificationSession struct {
	ID         string
	Phone      string
	Name       string // имя для создания пользователя при первом входе
	Code       string
	Purpose    string
	ExpiresAt  time.Time
	IsVerified bool
	Attempts   int // неверных вводов кода
	CreatedAt  time.Time
}

// Active сообщает, что код ещё не использован и не истёк на момент now.
func (v *VerificationSession) Active(now time.Time) bool {
	return !v.IsVerified && now.Before(v.ExpiresAt)
}

// Exhausted сообщает, что лимит неверных попыток исчерпан и код больше не принимается.
func (v *VerificationSession) Exhausted(max int) bool {
	return max > 0 && v.Attempts >= max
}
