package services

import (
	"context"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EntitlementService is the single abstraction over "may this user access
// this item" for all three item kinds. Courses grant an enrollment row;
// ebooks and documents derive possession from the confirmed order itself,
// so their grant is a no-op by design of the data model.
type EntitlementService struct {
	repo   repository.EntitlementRepository
	logger *zap.Logger
}

func NewEntitlementService(repo repository.EntitlementRepository, logger *zap.Logger) *EntitlementService {
	return &EntitlementService{repo: repo, logger: logger}
}

// Has reports whether the user already holds the entitlement for the item.
func (s *EntitlementService) Has(ctx context.Context, userID uuid.UUID, ref models.ItemRef) (bool, error) {
	if ref.Kind == models.ItemKindCourse {
		return s.repo.EnrollmentExists(ctx, userID, ref.ID)
	}
	return s.repo.HasConfirmedOrderItem(ctx, userID, ref)
}

// FulfillOrder grants access for every item of a confirmed order, inside the
// caller's settlement transaction. Safe to invoke more than once for the
// same order: enrollment inserts are insert-if-absent, derived entitlements
// have no row to duplicate.
func (s *EntitlementService) FulfillOrder(tx *gorm.DB, order *models.Order) error {
	if order.UserID == nil {
		s.logger.Warn("confirmed order has no owning user; nothing to fulfill",
			zap.String("order_id", order.ID.String()),
		)
		return nil
	}

	for _, item := range order.Items {
		ref, err := item.Ref()
		if err != nil {
			return err
		}
		if ref.Kind != models.ItemKindCourse {
			continue
		}
		if err := s.repo.GrantEnrollment(tx, *order.UserID, ref.ID); err != nil {
			return err
		}
		s.logger.Info("enrollment granted",
			zap.String("order_id", order.ID.String()),
			zap.String("user_id", order.UserID.String()),
			zap.String("course_id", ref.ID.String()),
		)
	}

	return nil
}
