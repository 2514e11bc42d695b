package services_test

import (
	"context"
	"fmt"
	"testing"

	"checkout-service/gateway"
	"checkout-service/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newSettleDB builds a sqlmock-backed gorm DB that accepts a handful of
// order UPDATE statements. Used as the transaction handle passed to Settle
// callbacks by the mock order repository.
func newSettleDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	for i := 0; i < 8; i++ {
		mock.ExpectExec(`UPDATE "orders"`).WillReturnResult(sqlmock.NewResult(0, 1))
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	assert.NoError(t, err)
	return gormDB
}

// ---- mock order repository ----

type mockOrderRepo struct {
	orders   map[uuid.UUID]*models.Order
	created  []*models.Order
	updates  []map[string]interface{}
	settleDB *gorm.DB
}

func newMockOrderRepo(t *testing.T) *mockOrderRepo {
	return &mockOrderRepo{
		orders:   make(map[uuid.UUID]*models.Order),
		settleDB: newSettleDB(t),
	}
}

func (m *mockOrderRepo) Create(_ context.Context, order *models.Order) error {
	m.created = append(m.created, order)
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if o, ok := m.orders[id]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOrderRepo) FindByIDAndUserID(_ context.Context, id, userID uuid.UUID) (*models.Order, error) {
	o, ok := m.orders[id]
	if !ok || o.UserID == nil || *o.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) FindByUserID(_ context.Context, userID uuid.UUID, _, _ int) ([]models.Order, int64, error) {
	var out []models.Order
	for _, o := range m.orders {
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockOrderRepo) FindAll(_ context.Context, _, _ int) ([]models.Order, int64, error) {
	var out []models.Order
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (m *mockOrderRepo) UpdateFields(_ context.Context, id uuid.UUID, updates map[string]interface{}) error {
	m.updates = append(m.updates, updates)
	o, ok := m.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range updates {
		switch k {
		case "status":
			o.Status = v.(models.OrderStatus)
		case "payment_status":
			o.PaymentStatus = v.(models.PaymentStatus)
		case "charge_id":
			s := v.(string)
			o.ChargeID = &s
		case "pix_payload":
			s := v.(string)
			o.PixPayload = &s
		case "bank_slip_url":
			s := v.(string)
			o.BankSlipURL = &s
		case "bank_slip_barcode":
			s := v.(string)
			o.BankSlipBarcode = &s
		}
	}
	return nil
}

func (m *mockOrderRepo) Settle(_ context.Context, id uuid.UUID, fn func(tx *gorm.DB, order *models.Order) error) error {
	o, ok := m.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	return fn(m.settleDB, o)
}

// ---- mock entitlement repository ----

type mockEntitlementRepo struct {
	enrollments  map[string]bool
	grantCalls   int
	hasConfirmed bool
}

func newMockEntitlementRepo() *mockEntitlementRepo {
	return &mockEntitlementRepo{enrollments: make(map[string]bool)}
}

func enrollmentKey(userID, courseID uuid.UUID) string {
	return fmt.Sprintf("%s|%s", userID, courseID)
}

func (m *mockEntitlementRepo) EnrollmentExists(_ context.Context, userID, courseID uuid.UUID) (bool, error) {
	return m.enrollments[enrollmentKey(userID, courseID)], nil
}

func (m *mockEntitlementRepo) GrantEnrollment(_ *gorm.DB, userID, courseID uuid.UUID) error {
	m.grantCalls++
	m.enrollments[enrollmentKey(userID, courseID)] = true
	return nil
}

func (m *mockEntitlementRepo) HasConfirmedOrderItem(_ context.Context, _ uuid.UUID, _ models.ItemRef) (bool, error) {
	return m.hasConfirmed, nil
}

func (m *mockEntitlementRepo) enrollmentCount() int {
	count := 0
	for _, v := range m.enrollments {
		if v {
			count++
		}
	}
	return count
}

// ---- mock user repository ----

type mockUserRepo struct {
	byID    map[uuid.UUID]*models.User
	byEmail map[string]*models.User
	created []*models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		byID:    make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]*models.User),
	}
}

func (m *mockUserRepo) add(user *models.User) {
	m.byID[user.ID] = user
	m.byEmail[user.Email] = user
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	m.created = append(m.created, user)
	m.add(user)
	return nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ---- mock catalog repository ----

type mockCatalogRepo struct {
	items map[uuid.UUID]*models.ItemSnapshot
}

func newMockCatalogRepo() *mockCatalogRepo {
	return &mockCatalogRepo{items: make(map[uuid.UUID]*models.ItemSnapshot)}
}

func (m *mockCatalogRepo) FindItem(_ context.Context, ref models.ItemRef) (*models.ItemSnapshot, error) {
	if snap, ok := m.items[ref.ID]; ok && snap.Ref.Kind == ref.Kind {
		return snap, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ---- mock payment gateway ----

type mockGateway struct {
	customerRef  string
	reconcileErr error
	openedSpecs  []gateway.ChargeSpec
	charge       *gateway.Charge
	openErr      error
	payResult    *gateway.Charge
	payErr       error
	payHook      func() // runs before PayWithCard returns
	pix          *gateway.InstantTransferCode
	pixErr       error
}

func (m *mockGateway) ReconcileCustomer(_ context.Context, _ gateway.CustomerProfile) (string, error) {
	if m.reconcileErr != nil {
		return "", m.reconcileErr
	}
	return m.customerRef, nil
}

func (m *mockGateway) OpenCharge(_ context.Context, spec gateway.ChargeSpec) (*gateway.Charge, error) {
	m.openedSpecs = append(m.openedSpecs, spec)
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.charge, nil
}

func (m *mockGateway) PayWithCard(_ context.Context, _ string, _ gateway.CardDetails, _ gateway.CardHolderInfo) (*gateway.Charge, error) {
	if m.payHook != nil {
		m.payHook()
	}
	if m.payErr != nil {
		return nil, m.payErr
	}
	return m.payResult, nil
}

func (m *mockGateway) GetInstantTransferCode(_ context.Context, _ string) (*gateway.InstantTransferCode, error) {
	if m.pixErr != nil {
		return nil, m.pixErr
	}
	return m.pix, nil
}

func (m *mockGateway) CancelCharge(_ context.Context, _ string) error { return nil }

func (m *mockGateway) Refund(_ context.Context, _ string, _ int) error { return nil }

// ---- mock event producer ----

type mockProducer struct {
	events []models.PaymentEvent
}

func (m *mockProducer) SendPaymentEvent(event models.PaymentEvent) error {
	m.events = append(m.events, event)
	return nil
}
