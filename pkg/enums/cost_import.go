package enums

import "fmt"

// CostImportStatus maps to the cost_import_status_enum enum in Postgres.
type CostImportStatus string

const (
	CostImportStatusUploaded CostImportStatus = "uploaded"
	CostImportStatusApplied  CostImportStatus = "applied"
)

func (s CostImportStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical import status enum.
func (s CostImportStatus) IsValid() bool {
	return s == CostImportStatusUploaded || s == CostImportStatusApplied
}

// RowParseStatus maps to the cost_import_row_status_enum enum in Postgres.
type RowParseStatus string

const (
	RowParseStatusMatchedOK         RowParseStatus = "matched_ok"
	RowParseStatusMissingIngredient RowParseStatus = "missing_ingredient"
	RowParseStatusInvalidUom        RowParseStatus = "invalid_uom"
	RowParseStatusInvalidNumber     RowParseStatus = "invalid_number"
)

var validRowParseStatuses = []RowParseStatus{
	RowParseStatusMatchedOK,
	RowParseStatusMissingIngredient,
	RowParseStatusInvalidUom,
	RowParseStatusInvalidNumber,
}

func (s RowParseStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical row status enum.
func (s RowParseStatus) IsValid() bool {
	for _, candidate := range validRowParseStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRowParseStatus converts raw input into RowParseStatus.
func ParseRowParseStatus(value string) (RowParseStatus, error) {
	for _, candidate := range validRowParseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid row parse status %q", value)
}
