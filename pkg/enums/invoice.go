package enums

type InvoiceStatus string

const (
	InvoiceIssued InvoiceStatus = "issued"
	InvoicePaid   InvoiceStatus = "paid"
	InvoiceVoid   InvoiceStatus = "void"
)

var ValidInvoiceStatuses = []InvoiceStatus{InvoiceIssued, InvoicePaid, InvoiceVoid}

func (s InvoiceStatus) IsValid() bool { return contains(ValidInvoiceStatuses, s) }

func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	return parse("invoice status", ValidInvoiceStatuses, value)
}

// InvoiceSourceType names the order kind an invoice bills.
type InvoiceSourceType string

const (
	InvoiceSourceSwagOrder  InvoiceSourceType = "swag_order"
	InvoiceSourcePrintOrder InvoiceSourceType = "print_order"
)

var ValidInvoiceSourceTypes = []InvoiceSourceType{InvoiceSourceSwagOrder, InvoiceSourcePrintOrder}

func (s InvoiceSourceType) IsValid() bool { return contains(ValidInvoiceSourceTypes, s) }
