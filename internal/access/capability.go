package access

import "github.com/estudarpro/estudar/internal/models"

// Capability действие, требующее определённой роли.
type Capability string

const (
	// CapAdmin панель администратора и /api/admin.
	CapAdmin Capability = "admin"
	// CapStudy учебные разделы, поиск и вопросы к модели.
	CapStudy Capability = "study"
	// CapPurchase оформление подписки.
	CapPurchase Capability = "purchase"
)

var grants = map[string][]Capability{
	models.RoleAdmin:   {CapAdmin, CapStudy},
	models.RoleStudent: {CapStudy, CapPurchase},
}

// Can сообщает, разрешено ли роли действие. Неизвестная роль не может ничего.
func Can(role string, c Capability) bool {
	for _, g := range grants[role] {
		if g == c {
			return true
		}
	}
	return false
}
