package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSignature подпись уведомления не совпала или отсутствует.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifySignature проверяет заголовок x-signature вида "ts=<ts>,v1=<hex>".
// Подписывается строка "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func VerifySignature(secret, xSignature, xRequestID, dataID string) error {
	var ts, v1 string
	for _, part := range strings.Split(xSignature, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return ErrInvalidSignature
	}

	expected, err := hex.DecodeString(v1)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(expected, sign(secret, manifest(dataID, xRequestID, ts))) {
		return ErrInvalidSignature
	}
	return nil
}

func manifest(dataID, requestID, ts string) string {
	return fmt.Sprintf("id:%s;request-id:%s;ts:%s;", strings.ToLower(dataID), requestID, ts)
}

func sign(secret, msg string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

// Sign формирует значение x-signature. Используется в тестах и локальной отладке webhook.
func Sign(secret, requestID, dataID, ts string) string {
	return "ts=" + ts + ",v1=" + hex.EncodeToString(sign(secret, manifest(dataID, requestID, ts)))
}
