package enums

// InventoryTransactionType classifies every stock movement in the ledger.
type InventoryTransactionType string

const (
	InventoryTxPurchase   InventoryTransactionType = "purchase"
	InventoryTxSale       InventoryTransactionType = "sale"
	InventoryTxReserve    InventoryTransactionType = "reserve"
	InventoryTxRelease    InventoryTransactionType = "release"
	InventoryTxAdjustment InventoryTransactionType = "adjustment"
	InventoryTxKitting    InventoryTransactionType = "kitting"
)

var ValidInventoryTransactionTypes = []InventoryTransactionType{
	InventoryTxPurchase,
	InventoryTxSale,
	InventoryTxReserve,
	InventoryTxRelease,
	InventoryTxAdjustment,
	InventoryTxKitting,
}

func (t InventoryTransactionType) IsValid() bool {
	return contains(ValidInventoryTransactionTypes, t)
}

func ParseInventoryTransactionType(value string) (InventoryTransactionType, error) {
	return parse("inventory transaction type", ValidInventoryTransactionTypes, value)
}

// InventoryReferenceType names what a stock movement was made for.
type InventoryReferenceType string

const (
	InventoryRefSwagOrder     InventoryReferenceType = "swag_order"
	InventoryRefPurchaseOrder InventoryReferenceType = "purchase_order"
	InventoryRefManual        InventoryReferenceType = "manual_adjustment"
)
