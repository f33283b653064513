package models

// All lists every persisted model in dependency order. It backs the SQLite
// development schema and the repository test databases; Postgres uses the
// goose migrations instead.
func All() []any {
	return []any{
		&UomSet{},
		&Uom{},
		&Ingredient{},
		&IngredientCost{},
		&Dish{},
		&DishLine{},
		&Menu{},
		&MenuGroup{},
		&MenuItem{},
		&MenuCostSnapshot{},
		&MenuItemCostSnapshot{},
		&MenuIngredientCostSnapshot{},
		&CostImport{},
		&CostImportRow{},
		&AuditEntry{},
	}
}
