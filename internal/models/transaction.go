package models

import "time"

// Статусы транзакций совпадают со статусами платежей Mercado Pago.
const (
	TransactionPending   = "pending"
	TransactionApproved  = "approved"
	TransactionRejected  = "rejected"
	TransactionCancelled = "cancelled"
	TransactionRefunded  = "refunded"
)

// Transaction попытка оплаты тарифа.
type Transaction struct {
	ID                int64     `json:"id"`
	UserID            string    `json:"user_id"`
	PlanID            int64     `json:"plan_id"`
	ExternalReference string    `json:"external_reference"`
	PreferenceID      string    `json:"preference_id"`
	ProviderPaymentID *string   `json:"provider_payment_id,omitempty"`
	Status            string    `json:"status"`
	Amount            float64   `json:"amount"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Reminder сообщение о скором окончании пробного периода для очереди рассылки.
type Reminder struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	TrialEndDate time.Time `json:"trial_end_date"`
}

// OutboundMessage сообщение для отправки через WhatsApp.
type OutboundMessage struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
}
