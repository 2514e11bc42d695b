package repository

import (
	"context"

	"checkout-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntitlementRepository answers and records "may this user access this item".
// Courses are materialized as enrollment rows; ebooks and documents are
// derived from order items on confirmed orders.
type EntitlementRepository interface {
	EnrollmentExists(ctx context.Context, userID, courseID uuid.UUID) (bool, error)

	// GrantEnrollment inserts the enrollment if absent. The unique index on
	// (user_id, course_id) plus ON CONFLICT DO NOTHING makes this a single
	// atomic operation, safe under concurrent duplicate deliveries.
	GrantEnrollment(tx *gorm.DB, userID, courseID uuid.UUID) error

	HasConfirmedOrderItem(ctx context.Context, userID uuid.UUID, ref models.ItemRef) (bool, error)
}

type GormEntitlementRepository struct {
	db *gorm.DB
}

func NewGormEntitlementRepository(db *gorm.DB) EntitlementRepository {
	return &GormEntitlementRepository{db: db}
}

func (r *GormEntitlementRepository) EnrollmentExists(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormEntitlementRepository) GrantEnrollment(tx *gorm.DB, userID, courseID uuid.UUID) error {
	enrollment := models.Enrollment{
		ID:       uuid.New(),
		UserID:   userID,
		CourseID: courseID,
	}
	return tx.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(&enrollment).Error
}

func (r *GormEntitlementRepository) HasConfirmedOrderItem(ctx context.Context, userID uuid.UUID, ref models.ItemRef) (bool, error) {
	itemColumn := ""
	switch ref.Kind {
	case models.ItemKindCourse:
		itemColumn = "order_items.course_id"
	case models.ItemKindEbook:
		itemColumn = "order_items.ebook_id"
	case models.ItemKindDocument:
		itemColumn = "order_items.document_id"
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND orders.payment_status = ? AND "+itemColumn+" = ?",
			userID, models.PaymentStatusConfirmed, ref.ID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
