package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const seenMarkerTTL = 24 * time.Hour

// WebhookEvent is the vendor notification shape. The charge carries the
// order id back to us in externalReference.
type WebhookEvent struct {
	Event   string        `json:"event"`
	Payment WebhookCharge `json:"payment"`
}

type WebhookCharge struct {
	ID                string  `json:"id"`
	ExternalReference string  `json:"externalReference"`
	Status            string  `json:"status"`
	Value             float64 `json:"value"`
}

// WebhookService reconciles asynchronous gateway notifications against the
// order store. Delivery is at-least-once and possibly concurrent; the row
// lock taken by Settle plus terminal-status checks make redeliveries no-ops.
type WebhookService struct {
	orders       repository.OrderRepository
	entitlements *EntitlementService
	redis        *redis.Client // optional duplicate-delivery marker
	producer     EventProducer // optional
	logger       *zap.Logger
	now          func() time.Time
}

func NewWebhookService(
	orders repository.OrderRepository,
	entitlements *EntitlementService,
	redisClient *redis.Client,
	producer EventProducer,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		orders:       orders,
		entitlements: entitlements,
		redis:        redisClient,
		producer:     producer,
		logger:       logger,
		now:          time.Now,
	}
}

// ProcessEvent applies one vendor notification. A nil return means the
// event was handled (including "nothing to do"); a non-nil return is an
// internal failure that the boundary logs but never surfaces to the vendor.
func (s *WebhookService) ProcessEvent(ctx context.Context, evt WebhookEvent) error {
	tr, mapped := transitionForEvent(evt.Event)
	if !mapped {
		s.logger.Info("ignoring unmapped webhook event", zap.String("event", evt.Event))
		return nil
	}

	orderID, err := uuid.Parse(evt.Payment.ExternalReference)
	if err != nil {
		s.logger.Warn("webhook carries no resolvable order reference",
			zap.String("event", evt.Event),
			zap.String("external_reference", evt.Payment.ExternalReference),
		)
		return nil
	}

	if s.alreadySeen(ctx, orderID, evt.Event) {
		s.logger.Info("skipping duplicate webhook delivery",
			zap.String("order_id", orderID.String()),
			zap.String("event", evt.Event),
		)
		return nil
	}

	var (
		changed bool
		settled *models.Order
	)
	err = s.orders.Settle(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		var applyErr error
		changed, applyErr = applyTransition(tx, order, tr, s.now(), s.entitlements)
		settled = order
		return applyErr
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unknown order: acknowledge and move on. Making the vendor
			// retry forever cannot resolve data we never had.
			s.logger.Warn("webhook references unknown order",
				zap.String("order_id", orderID.String()),
				zap.String("event", evt.Event),
			)
			return nil
		}
		return fmt.Errorf("failed to settle order %s: %w", orderID, err)
	}

	if changed {
		eventType := "payment_canceled"
		if tr.fulfill {
			eventType = "payment_confirmed"
		}
		s.publishEvent(settled, eventType)
		s.logger.Info("order settled from webhook",
			zap.String("order_id", orderID.String()),
			zap.String("event", evt.Event),
			zap.String("payment_status", string(settled.PaymentStatus)),
		)
	}

	s.markSeen(ctx, orderID, evt.Event)
	return nil
}

// ConfirmManually applies the confirmation transition outside the webhook
// flow. Backs the operator override route; access control happens at the
// boundary.
func (s *WebhookService) ConfirmManually(ctx context.Context, orderID uuid.UUID) (*models.Order, *ServiceError) {
	var (
		changed bool
		settled *models.Order
	)
	err := s.orders.Settle(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		var applyErr error
		changed, applyErr = applyTransition(tx, order, confirmTransition, s.now(), s.entitlements)
		settled = order
		return applyErr
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newNotFoundError("order not found")
		}
		s.logger.Error("manual confirmation failed",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		return nil, newInternalError("failed to confirm payment")
	}

	if changed {
		s.publishEvent(settled, "payment_confirmed")
	}
	return settled, nil
}

// alreadySeen and markSeen keep a best-effort duplicate marker in Redis.
// Correctness never depends on them; the settlement transaction is what
// guarantees idempotence. They only short-circuit redundant work.
func (s *WebhookService) alreadySeen(ctx context.Context, orderID uuid.UUID, event string) bool {
	if s.redis == nil {
		return false
	}
	n, err := s.redis.Exists(ctx, seenKey(orderID, event)).Result()
	if err != nil {
		s.logger.Debug("duplicate marker lookup failed", zap.Error(err))
		return false
	}
	return n > 0
}

func (s *WebhookService) markSeen(ctx context.Context, orderID uuid.UUID, event string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, seenKey(orderID, event), 1, seenMarkerTTL).Err(); err != nil {
		s.logger.Debug("duplicate marker write failed", zap.Error(err))
	}
}

func seenKey(orderID uuid.UUID, event string) string {
	return fmt.Sprintf("webhook:seen:%s:%s", orderID, event)
}

func (s *WebhookService) publishEvent(order *models.Order, eventType string) {
	if s.producer == nil {
		return
	}
	event := models.PaymentEvent{
		Type:      eventType,
		OrderID:   order.ID.String(),
		Amount:    order.TotalAmount,
		Method:    string(order.PaymentMethod),
		Timestamp: s.now().UTC(),
	}
	if order.UserID != nil {
		event.UserID = order.UserID.String()
	}
	if order.ChargeID != nil {
		event.ChargeID = *order.ChargeID
	}
	if err := s.producer.SendPaymentEvent(event); err != nil {
		s.logger.Warn("failed to publish payment event",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}
