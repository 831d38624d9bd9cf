package model

// Method is a payment method such as a wallet, a bank account or a credit line.
type Method struct {
	BillDay        *int
	DueDay         *int
	RepayLeadDays  *int
	TotalLimit     *float64
	RemainingLimit *float64
	Name           string
	Type           TransactionType
	ID             int64
	IsCredit       bool
	IsCustom       bool
}

// Card is a physical or virtual card issued under a Method.
// Billing fields left nil inherit the method's values.
type Card struct {
	BillDay        *int
	DueDay         *int
	RepayLeadDays  *int
	TotalLimit     *float64
	RemainingLimit *float64
	Label          string
	ID             int64
	MethodID       int64
	IsCustom       bool
}
