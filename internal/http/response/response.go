// Package response формирует JSON-ответы обработчиков в конверте
// {status, error, data}. Поиск и /auth/me отдают данные без конверта.
package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

// Response стандартный конверт ответа API.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse конверт ошибки, используется в аннотациях @Failure.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

// AuthState состояние сессии. /auth/me отдаёт его как есть, вход и выход в конверте.
type AuthState struct {
	Authenticated bool `json:"authenticated"`
	User          any  `json:"user,omitempty"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// StatusOKWithData успешный ответ с данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error ответ с ошибкой. Текст не должен раскрывать внутренние детали.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// Session успешный ответ с открытой сессией пользователя.
func Session(user any) Response {
	return StatusOKWithData(AuthState{Authenticated: true, User: user})
}

// NoSession ответ для отсутствующей или недействительной сессии.
// Это не ошибка: клиент просто показывает форму входа.
func NoSession() Response {
	return StatusOKWithData(AuthState{Authenticated: false})
}

// validationMessages формат сообщения по тегу валидатора. %[1]s поле, %[2]s параметр тега.
var validationMessages = map[string]string{
	"required": "field %[1]s is a required field",
	"numeric":  "field %[1]s can contain only numbers",
	"uuid":     "field %[1]s must be a valid uuid",
	"email":    "field %[1]s must be a valid email",
	"len":      "field %[1]s must be exactly %[2]s characters long",
	"min":      "field %[1]s must be at least %[2]s",
	"gte":      "field %[1]s must be at least %[2]s",
	"gt":       "field %[1]s must be greater than %[2]s",
	"max":      "field %[1]s must be at most %[2]s",
	"lte":      "field %[1]s must be at most %[2]s",
	"oneof":    "field %[1]s must be one of [%[2]s]",
}

// ValidationError собирает нарушения валидации в одну строку через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		format, ok := validationMessages[err.ActualTag()]
		if !ok {
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Field()))
			continue
		}
		// у тегов без параметра лишний аргумент не печатается
		msgs = append(msgs, fmt.Sprintf(format, err.Field(), err.Param()))
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(msgs, ", "),
	}
}
