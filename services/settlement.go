package services

import (
	"time"

	"checkout-service/models"

	"gorm.io/gorm"
)

// transition is one legal move of the order state machine. fulfill marks the
// transitions that grant entitlements.
type transition struct {
	status        models.OrderStatus
	paymentStatus models.PaymentStatus
	fulfill       bool
}

var (
	confirmTransition = transition{
		status:        models.OrderStatusCompleted,
		paymentStatus: models.PaymentStatusConfirmed,
		fulfill:       true,
	}
	cancelTransition = transition{
		status:        models.OrderStatusCanceled,
		paymentStatus: models.PaymentStatusCanceled,
	}
	failTransition = transition{
		status:        models.OrderStatusCanceled,
		paymentStatus: models.PaymentStatusFailed,
	}
)

// transitionForEvent maps a vendor webhook event onto the internal state
// machine. Unmapped events produce no state change and are acknowledged only.
func transitionForEvent(event string) (transition, bool) {
	switch event {
	case "PAYMENT_RECEIVED", "PAYMENT_CONFIRMED":
		return confirmTransition, true
	case "PAYMENT_OVERDUE", "PAYMENT_DELETED", "PAYMENT_REFUNDED", "PAYMENT_REFUND_IN_PROGRESS":
		return cancelTransition, true
	default:
		return transition{}, false
	}
}

// transitionForChargeStatus maps the vendor's synchronous card result.
func transitionForChargeStatus(status string) transition {
	switch status {
	case "RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH":
		return confirmTransition
	case "PENDING", "AWAITING_RISK_ANALYSIS":
		return transition{status: models.OrderStatusPending, paymentStatus: models.PaymentStatusProcessing}
	default:
		return transition{status: models.OrderStatusCanceled, paymentStatus: models.PaymentStatusFailed}
	}
}

// applyTransition moves the locked order to the target state and fulfills it
// when the transition confirms payment. Terminal payment statuses never
// regress; a repeat of the same transition is a no-op. Returns whether any
// durable change was made. Must run inside the Settle transaction so the
// status decision and the entitlement grant commit or roll back together.
func applyTransition(tx *gorm.DB, order *models.Order, tr transition, now time.Time, entitlements *EntitlementService) (bool, error) {
	if order.PaymentStatus.Terminal() {
		return false, nil
	}
	if order.Status == tr.status && order.PaymentStatus == tr.paymentStatus {
		return false, nil
	}

	updates := map[string]interface{}{
		"status":         tr.status,
		"payment_status": tr.paymentStatus,
	}
	switch tr.status {
	case models.OrderStatusCompleted:
		updates["completed_at"] = now
	case models.OrderStatusCanceled:
		updates["canceled_at"] = now
	}

	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
		return false, err
	}

	if tr.fulfill {
		if err := entitlements.FulfillOrder(tx, order); err != nil {
			return false, err
		}
	}

	order.Status = tr.status
	order.PaymentStatus = tr.paymentStatus
	return true, nil
}
