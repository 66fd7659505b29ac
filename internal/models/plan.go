package models

import "time"

// Plan тариф подписки.
type Plan struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	DurationDays int       `json:"duration_days"`
	IsActive     bool      `json:"is_active"`
	SortOrder    int       `json:"sort_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Setting пара ключ/значение настроек приложения.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats сводка для панели администратора.
type Stats struct {
	TotalUsers       int     `json:"total_users"`
	TrialUsers       int     `json:"trial_users"`
	ActiveUsers      int     `json:"active_users"`
	ExpiredUsers     int     `json:"expired_users"`
	VerifiedUsers    int     `json:"verified_users"`
	ApprovedPayments int     `json:"approved_payments"`
	Revenue          float64 `json:"revenue"`
}
