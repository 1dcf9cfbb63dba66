package domain

import "time"

// TicketStateTransitionAudit is an append-only record of one ticket
// status transition. The orchestrator writes one for each ticket when
// create, processAsync and confirm change its status, always with
// Successful set; failed attempts, order-level transitions, and the
// SOLD/COMPLIMENTARY transitions made by seat assignment are not
// recorded.
type TicketStateTransitionAudit struct {
	AuditID      string    `dynamodbav:"audit_id"`
	TicketID     string    `dynamodbav:"ticket_id"`
	FromStatus   string    `dynamodbav:"from_status"`
	ToStatus     string    `dynamodbav:"to_status"`
	At           time.Time `dynamodbav:"at,unixtime"`
	PerformedBy  string    `dynamodbav:"performed_by"`
	Reason       string    `dynamodbav:"reason,omitempty"`
	Successful   bool      `dynamodbav:"successful"`
	Error        string    `dynamodbav:"error,omitempty"`
}
