package models

// Portfolio is the Prime portfolio payouts are sent from
type Portfolio struct {
	Id   string
	Name string
}

// Wallet is a Prime wallet holding the pooled asset
type Wallet struct {
	Id     string
	Name   string
	Symbol string
	Type   string
}

// Withdrawal is an accepted Prime withdrawal request. IdempotencyKey is the
// transfer reference of the queue item it pays out.
type Withdrawal struct {
	ActivityId     string
	Symbol         string
	Network        string
	Amount         string
	Destination    string
	IdempotencyKey string
}
