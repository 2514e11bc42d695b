package repository

import (
	"context"
	"fmt"

	"checkout-service/models"

	"gorm.io/gorm"
)

// CatalogRepository resolves purchasable items by their union reference.
type CatalogRepository interface {
	FindItem(ctx context.Context, ref models.ItemRef) (*models.ItemSnapshot, error)
}

type GormCatalogRepository struct {
	db *gorm.DB
}

func NewGormCatalogRepository(db *gorm.DB) CatalogRepository {
	return &GormCatalogRepository{db: db}
}

func (r *GormCatalogRepository) FindItem(ctx context.Context, ref models.ItemRef) (*models.ItemSnapshot, error) {
	switch ref.Kind {
	case models.ItemKindCourse:
		var course models.Course
		if err := r.db.WithContext(ctx).First(&course, "id = ?", ref.ID).Error; err != nil {
			return nil, err
		}
		return &models.ItemSnapshot{Ref: ref, Title: course.Title, Description: course.Description, Price: course.Price}, nil
	case models.ItemKindEbook:
		var ebook models.Ebook
		if err := r.db.WithContext(ctx).First(&ebook, "id = ?", ref.ID).Error; err != nil {
			return nil, err
		}
		return &models.ItemSnapshot{Ref: ref, Title: ebook.Title, Description: ebook.Description, Price: ebook.Price}, nil
	case models.ItemKindDocument:
		var doc models.Document
		if err := r.db.WithContext(ctx).First(&doc, "id = ?", ref.ID).Error; err != nil {
			return nil, err
		}
		return &models.ItemSnapshot{Ref: ref, Title: doc.Title, Description: doc.Description, Price: doc.Price}, nil
	default:
		return nil, fmt.Errorf("unknown item kind: %s", ref.Kind)
	}
}
