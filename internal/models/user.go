// Package models содержит доменные структуры: пользователя с данными пробного
// периода и подписки, одноразовые проверки, правовые документы, тарифы и платежи.
package models

import "time"

// Роли пользователей.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// Статусы подписки. В каждый момент времени действует ровно один.
const (
	StatusTrial   = "trial"
	StatusActive  = "active"
	StatusExpired = "expired"
)

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Phone               string     `json:"phone"`
	Email               *string    `json:"email,omitempty"`
	PasswordHash        string     `json:"-"` // только для администраторов
	Role                string     `json:"role"`
	SubscriptionStatus  string     `json:"subscription_status"`
	TrialStartDate      time.Time  `json:"trial_start_date"`
	TrialEndDate        time.Time  `json:"trial_end_date"`
	IsTrialExpired      bool       `json:"is_trial_expired"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date,omitempty"`
	IsVerified          bool       `json:"is_verified"`
	Stats               UserStats  `json:"stats"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// UserStats агрегированные счётчики учебной активности.
type UserStats struct {
	QuestionsAnswered int `json:"questions_answered"`
	CorrectAnswers    int `json:"correct_answers"`
	StudyMinutes      int `json:"study_minutes"`
	StreakDays        int `json:"streak_days"`
}

// TrialExpired пересчитывает признак окончания пробного периода
// на момент now, не доверяя сохранённому значению.
func (u *User) TrialExpired(now time.Time) bool {
	return now.After(u.TrialEndDate)
}

// RequiresPayment сообщает, что пробный период закончился, а оплаченной подписки нет.
func (u *User) RequiresPayment(now time.Time) bool {
	return u.TrialExpired(now) && u.SubscriptionStatus != StatusActive
}

// Refresh приводит производные поля к состоянию на момент now:
// пересчитывает is_trial_expired и переводит просроченный trial в expired.
func (u *User) Refresh(now time.Time) {
	u.IsTrialExpired = u.TrialExpired(now)
	if u.SubscriptionStatus == StatusTrial && u.IsTrialExpired {
		u.SubscriptionStatus = StatusExpired
	}
	if u.SubscriptionStatus == StatusActive && u.SubscriptionEndDate != nil && now.After(*u.SubscriptionEndDate) {
		u.SubscriptionStatus = StatusExpired
	}
}

// NewTrialUser создаёт студента с пробным периодом длиной trial, начиная с now.
func NewTrialUser(name, phone string, email *string, now time.Time, trial time.Duration) User {
	return User{
		Name:               name,
		Phone:              phone,
		Email:              email,
		Role:               RoleStudent,
		SubscriptionStatus: StatusTrial,
		TrialStartDate:     now,
		TrialEndDate:       now.Add(trial),
	}
}
