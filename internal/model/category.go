package model

// Category groups transactions of one type.
type Category struct {
	Name     string
	Icon     string
	Type     TransactionType
	ID       int64
	IsCustom bool
}
