package domain

import (
	"time"
)

// Transaction statuses. A transaction is "Flagged" exactly when its
// risk score is positive; both are set once at creation time.
const (
	TxStatusNormal  = "Normal"
	TxStatusFlagged = "Flagged"
)

// Transaction represents a financial movement. Financial fields are
// immutable after creation; RiskScore, IsFlagged and Status are computed
// once from the rule set enabled at creation time and never recomputed.
type Transaction struct {
	ID              string `json:"id"`
	SenderAccount   string `json:"senderAccountNumber"`
	ReceiverAccount string `json:"receiverAccountNumber"`

	// Transaction type (e.g., "Transfer", "Withdrawal", "POS")
	Type string `json:"transactionType"`

	Amount    float64 `json:"amount"`
	Location  string  `json:"location,omitempty"`
	Device    string  `json:"device,omitempty"`
	IPAddress string  `json:"ipAddress,omitempty"`

	// Risk fields, set by the scoring pipeline at creation.
	RiskScore int    `json:"riskScore"`
	IsFlagged bool   `json:"isFlagged"`
	Status    string `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
}

// TransactionRequest is the API request payload for transaction ingestion.
type TransactionRequest struct {
	SenderAccount   string  `json:"senderAccountNumber"`
	ReceiverAccount string  `json:"receiverAccountNumber"`
	Type            string  `json:"transactionType"`
	Amount          float64 `json:"amount"`
	Location        string  `json:"location,omitempty"`
	Device          string  `json:"device,omitempty"`
	IPAddress       string  `json:"ipAddress,omitempty"`
}

// ToTransaction converts a request to a Transaction domain object.
// Risk fields are left zeroed for the pipeline to fill in.
func (r *TransactionRequest) ToTransaction() *Transaction {
	return &Transaction{
		SenderAccount:   r.SenderAccount,
		ReceiverAccount: r.ReceiverAccount,
		Type:            r.Type,
		Amount:          r.Amount,
		Location:        r.Location,
		Device:          r.Device,
		IPAddress:       r.IPAddress,
		Status:          TxStatusNormal,
		CreatedAt:       time.Now().UTC(),
	}
}

// TransactionFilter narrows paged transaction listings.
type TransactionFilter struct {
	// Status is "normal", "flagged" or empty (case-insensitive).
	Status  string
	Account string
	Type    string
	From    *time.Time
	To      *time.Time
	MinRisk *int

	Page     int
	PageSize int
}

// TriggeredRule is a human-readable explanation of why a transaction was
// flagged, rendered from the rule snapshot stored on its alerts.
type TriggeredRule struct {
	RuleName    string `json:"ruleName"`
	Description string `json:"description"`
}

// AccountStats summarizes the history of an account, shown alongside
// transaction details.
type AccountStats struct {
	AccountNumber string    `json:"accountNumber"`
	FirstSeen     time.Time `json:"customerSince"`
	AvgAmount     float64   `json:"averageTransactionValue"`
	TxCount       int64     `json:"transactionCount"`
}

// AccountAlertCount is a (account, alert count) pair for the
// top-flagged-accounts listing.
type AccountAlertCount struct {
	AccountNumber string `json:"accountNumber"`
	Count         int64  `json:"count"`
}
