package models

// All lists every persisted model, in dependency order, for SQLite test
// schemas and the local demo database.
func All() []any {
	return []any{
		&User{},
		&Supplier{},
		&Product{},
		&SkuVariant{},
		&InventoryItem{},
		&InventoryTransaction{},
		&SwagPack{},
		&SwagPackItem{},
		&SwagOrder{},
		&RecipientShipment{},
		&PrintOrder{},
		&PrintOrderItem{},
		&Invoice{},
		&InvoiceLine{},
		&PricingFormula{},
		&AuditLog{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
