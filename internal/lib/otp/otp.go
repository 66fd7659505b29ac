// Package otp содержит примитивы одноразовых кодов: генерацию, проверку
// формата и нормализацию телефонного номера, на который код отправляется.
package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// CodeLength количество цифр в коде.
const CodeLength = 6

var (
	// ErrInvalidCode код не состоит ровно из шести цифр.
	ErrInvalidCode = errors.New("code must be exactly 6 digits")
	// ErrInvalidPhone номер нельзя привести к формату с кодом страны.
	ErrInvalidPhone = errors.New("invalid phone number")
)

const brazilCountryCode = "55"

var codeSpace = big.NewInt(1_000_000)

// GenerateCode возвращает равномерно распределённый шестизначный код
// с ведущими нулями.
func GenerateCode() (string, error) {
	const op = "otp.GenerateCode"
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ValidateCode проверяет формат кода до обращения к хранилищу.
func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return ErrInvalidCode
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return ErrInvalidCode
		}
	}
	return nil
}

// NormalizePhone оставляет только цифры и приводит номер к виду "+<код страны><номер>".
// Номер с ведущим "+" уже содержит код страны и принимается как есть (8–15 цифр).
// Без "+" номера из 10–11 цифр считаются бразильскими и получают префикс 55,
// а 12–13 цифр считаются номером с кодом страны.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(strings.TrimSpace(raw), "+") {
		if len(digits) < 8 || len(digits) > 15 || digits[0] == '0' {
			return "", ErrInvalidPhone
		}
		return "+" + digits, nil
	}

	digits = strings.TrimLeft(digits, "0")
	switch {
	case len(digits) == 10 || len(digits) == 11:
		digits = brazilCountryCode + digits
	case len(digits) >= 12 && len(digits) <= 13:
	default:
		return "", ErrInvalidPhone
	}
	return "+" + digits, nil
}
