package enums

// PrintOrderStatus is the lifecycle of a custom print order.
type PrintOrderStatus string

const (
	PrintOrderPendingPayment        PrintOrderStatus = "pending_payment"
	PrintOrderPaidWaitingForPrinter PrintOrderStatus = "paid_waiting_for_printer"
	PrintOrderPrinting              PrintOrderStatus = "printing"
	PrintOrderShipping              PrintOrderStatus = "shipping"
	PrintOrderCompleted             PrintOrderStatus = "completed"
	PrintOrderCancelled             PrintOrderStatus = "cancelled"
)

var ValidPrintOrderStatuses = []PrintOrderStatus{
	PrintOrderPendingPayment,
	PrintOrderPaidWaitingForPrinter,
	PrintOrderPrinting,
	PrintOrderShipping,
	PrintOrderCompleted,
	PrintOrderCancelled,
}

var printOrderTransitions = map[PrintOrderStatus][]PrintOrderStatus{
	PrintOrderPendingPayment:        {PrintOrderPaidWaitingForPrinter, PrintOrderCancelled},
	PrintOrderPaidWaitingForPrinter: {PrintOrderPrinting, PrintOrderCancelled},
	PrintOrderPrinting:              {PrintOrderShipping},
	PrintOrderShipping:              {PrintOrderCompleted},
}

func (s PrintOrderStatus) IsValid() bool { return contains(ValidPrintOrderStatuses, s) }

// CanTransitionTo reports whether next is a legal successor of s.
func (s PrintOrderStatus) CanTransitionTo(next PrintOrderStatus) bool {
	return contains(printOrderTransitions[s], next)
}

func ParsePrintOrderStatus(value string) (PrintOrderStatus, error) {
	return parse("print order status", ValidPrintOrderStatuses, value)
}
