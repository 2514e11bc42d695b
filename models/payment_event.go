package models

import "time"

// PaymentEvent is the message published to Kafka after a settlement
// transition, for downstream consumers (notifications, reporting).
type PaymentEvent struct {
	Type      string    `json:"type"` // payment_confirmed | payment_canceled | payment_failed
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id,omitempty"`
	ChargeID  string    `json:"charge_id,omitempty"`
	Amount    int       `json:"amount"`
	Method    string    `json:"method"`
	Timestamp time.Time `json:"timestamp"`
}
