package enums

import "fmt"

// AuditAction names the state change captured by an audit entry.
type AuditAction string

const (
	AuditActionIngredientCostImported AuditAction = "ingredient_cost.imported"
	AuditActionMenuLocked             AuditAction = "menu.locked"
	AuditActionMenuUnlocked           AuditAction = "menu.unlocked"
)

var validAuditActions = []AuditAction{
	AuditActionIngredientCostImported,
	AuditActionMenuLocked,
	AuditActionMenuUnlocked,
}

// IsValid reports whether the value matches a known audit action.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// AuditEntityType names the entity an audit entry refers to.
type AuditEntityType string

const (
	AuditEntityIngredient AuditEntityType = "ingredient"
	AuditEntityMenu       AuditEntityType = "menu"
)

var validAuditEntityTypes = []AuditEntityType{
	AuditEntityIngredient,
	AuditEntityMenu,
}

// ParseAuditEntityType converts raw input into AuditEntityType.
func ParseAuditEntityType(value string) (AuditEntityType, error) {
	for _, candidate := range validAuditEntityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit entity type %q", value)
}
