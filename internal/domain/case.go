package domain

import (
	"time"
)

// CaseStatus is the investigation state of a case.
type CaseStatus string

const (
	CaseOpen               CaseStatus = "Open"
	CaseUnderInvestigation CaseStatus = "UnderInvestigation"
	CaseClosed             CaseStatus = "Closed"
)

// ValidCaseTransition reports whether a case may move between statuses.
func ValidCaseTransition(from, to CaseStatus) bool {
	switch from {
	case CaseOpen:
		return to == CaseUnderInvestigation || to == CaseClosed
	case CaseUnderInvestigation:
		return to == CaseClosed
	}
	return false
}

// Case is an investigation opened against a flagged transaction.
type Case struct {
	ID            string     `json:"id"`
	TransactionID string     `json:"transactionId"`
	Title         string     `json:"title"`
	Notes         string     `json:"notes,omitempty"`
	Status        CaseStatus `json:"status"`
	AssignedTo    string     `json:"assignedTo,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}
