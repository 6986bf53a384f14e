package enums

// ProductStatus is the catalog lifecycle of a product.
type ProductStatus string

const (
	ProductStatusDraft        ProductStatus = "draft"
	ProductStatusActive       ProductStatus = "active"
	ProductStatusInactive     ProductStatus = "inactive"
	ProductStatusDiscontinued ProductStatus = "discontinued"
)

var ValidProductStatuses = []ProductStatus{
	ProductStatusDraft,
	ProductStatusActive,
	ProductStatusInactive,
	ProductStatusDiscontinued,
}

func (s ProductStatus) String() string { return string(s) }

func (s ProductStatus) IsValid() bool { return contains(ValidProductStatuses, s) }

// ParseProductStatus converts raw input into ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	return parse("product status", ValidProductStatuses, value)
}
