package models

// All lists every ledger table, in migration order.
func All() []interface{} {
	return []interface{}{
		&Account{},
		&SpendingLimit{},
		&Paymaster{},
		&Token{},
		&TokenBalance{},
		&TokenAllowance{},
		&LedgerEvent{},
		&Receipt{},
	}
}

func (SpendingLimit) TableName() string  { return "spending_limits" }
func (TokenAllowance) TableName() string { return "token_allowances" }
func (LedgerEvent) TableName() string    { return "ledger_events" }
