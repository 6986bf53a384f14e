package enums

type SupplierType string

const (
	SupplierManufacturer SupplierType = "manufacturer"
	SupplierDistributor  SupplierType = "distributor"
	SupplierPrinter      SupplierType = "printer"
	SupplierDropshipper  SupplierType = "dropshipper"
)

var ValidSupplierTypes = []SupplierType{
	SupplierManufacturer,
	SupplierDistributor,
	SupplierPrinter,
	SupplierDropshipper,
}

func (t SupplierType) IsValid() bool { return contains(ValidSupplierTypes, t) }

func ParseSupplierType(value string) (SupplierType, error) {
	return parse("supplier type", ValidSupplierTypes, value)
}
