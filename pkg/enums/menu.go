package enums

import "fmt"

// MenuType maps to the menu_type_enum enum in Postgres.
type MenuType string

const (
	MenuTypePackage MenuType = "package"
	MenuTypePerItem MenuType = "per_item"
)

var validMenuTypes = []MenuType{
	MenuTypePackage,
	MenuTypePerItem,
}

func (t MenuType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical menu type enum.
func (t MenuType) IsValid() bool {
	for _, candidate := range validMenuTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseMenuType converts raw input into MenuType.
func ParseMenuType(value string) (MenuType, error) {
	for _, candidate := range validMenuTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid menu type %q", value)
}

// CostMode maps to the menu_cost_mode_enum enum in Postgres.
type CostMode string

const (
	CostModeLive   CostMode = "live"
	CostModeLocked CostMode = "locked"
)

var validCostModes = []CostMode{
	CostModeLive,
	CostModeLocked,
}

func (m CostMode) String() string {
	return string(m)
}

// IsValid reports whether the value matches the canonical cost mode enum.
func (m CostMode) IsValid() bool {
	for _, candidate := range validCostModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseCostMode converts raw input into CostMode.
func ParseCostMode(value string) (CostMode, error) {
	for _, candidate := range validCostModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cost mode %q", value)
}
