package repository_test

import (
	"context"
	"regexp"
	"testing"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEnrollmentExists(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormEntitlementRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "enrollments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.EnrollmentExists(context.Background(), uuid.New(), uuid.New())
	assert.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "enrollments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	exists, err = repo.EnrollmentExists(context.Background(), uuid.New(), uuid.New())
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestGrantEnrollment_InsertsWithConflictGuard(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormEntitlementRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT ("user_id","course_id") DO NOTHING`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	err := repo.GrantEnrollment(gormDB, uuid.New(), uuid.New())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantEnrollment_DuplicateIsNoOp(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormEntitlementRepository(gormDB)

	// The conflicting insert returns no rows; no error surfaces.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT ("user_id","course_id") DO NOTHING`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	err := repo.GrantEnrollment(gormDB, uuid.New(), uuid.New())
	assert.NoError(t, err)
}

func TestHasConfirmedOrderItem(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormEntitlementRepository(gormDB)

	ref := models.ItemRef{Kind: models.ItemKindEbook, ID: uuid.New()}

	mock.ExpectQuery(regexp.QuoteMeta(`JOIN orders ON orders.id = order_items.order_id`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	has, err := repo.HasConfirmedOrderItem(context.Background(), uuid.New(), ref)
	assert.NoError(t, err)
	assert.True(t, has)
}
