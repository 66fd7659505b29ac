// Package access классифицирует пути запросов и принимает решение о доступе:
// публичные страницы, страницы для вошедших, платные разделы и админка.
// Все проверки ролей сведены в Can.
package access

import "strings"

// Class класс маршрута.
type Class int

const (
	// ClassBypass API и статика, контроль доступа не применяется.
	ClassBypass Class = iota
	// ClassPublic страницы, доступные без входа.
	ClassPublic
	// ClassAdmin панель администратора.
	ClassAdmin
	// ClassProtected страницы для вошедших пользователей.
	ClassProtected
	// ClassPremium платные разделы, после окончания пробного периода нужна подписка.
	ClassPremium
)

func (c Class) String() string {
	switch c {
	case ClassBypass:
		return "bypass"
	case ClassPublic:
		return "public"
	case ClassAdmin:
		return "admin"
	case ClassProtected:
		return "protected"
	case ClassPremium:
		return "premium"
	default:
		return "unknown"
	}
}

// Policy наборы префиксов маршрутов и адреса перенаправлений.
type Policy struct {
	Bypass         []string
	Public         []string
	Admin          []string
	Premium        []string
	EntryPath      string
	AdminEntryPath string
	PaymentPath    string
}

// Classify возвращает класс пути. Проверки идут по порядку, первое совпадение выигрывает.
func (p Policy) Classify(path string) Class {
	switch {
	case matchAny(path, p.Bypass):
		return ClassBypass
	case matchAny(path, p.Public):
		return ClassPublic
	case matchAny(path, p.Admin):
		return ClassAdmin
	case matchAny(path, p.Premium):
		return ClassPremium
	default:
		return ClassProtected
	}
}

func matchAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if matchPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// matchPrefix: "/" совпадает только с корнем, префикс с завершающим "/"
// совпадает как строка, остальные совпадают по границе сегмента пути.
func matchPrefix(path, prefix string) bool {
	switch {
	case prefix == "":
		return false
	case prefix == "/":
		return path == "/"
	case strings.HasSuffix(prefix, "/"):
		return strings.HasPrefix(path, prefix)
	default:
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
}
