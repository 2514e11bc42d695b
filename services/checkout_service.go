package services

import (
	"context"
	"errors"
	"time"

	"checkout-service/gateway"
	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Due-date policy per instrument: card settles now, PIX codes expire in 30
// minutes, bank slips run for 7 days.
const (
	pixDueWindow    = 30 * time.Minute
	boletoDueWindow = 7 * 24 * time.Hour
)

type CustomerInfo struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	TaxID string `json:"tax_id" binding:"required"`
	Phone string `json:"phone"`
}

type RegistrationInfo struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type CheckoutRequest struct {
	CourseID      *uuid.UUID           `json:"course_id"`
	EbookID       *uuid.UUID           `json:"ebook_id"`
	DocumentID    *uuid.UUID           `json:"document_id"`
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required"`
	Customer      CustomerInfo         `json:"customer" binding:"required"`
	CreditCard    *gateway.CardDetails `json:"credit_card"`
	Installments  int                  `json:"installments"`
	Registration  *RegistrationInfo    `json:"registration"`
}

type PixInstructions struct {
	Payload        string    `json:"payload"`
	QRCodeImage    string    `json:"qr_code_image"` // base64 PNG
	ExpirationDate time.Time `json:"expiration_date"`
}

type BankSlipInstructions struct {
	URL     string `json:"url"`
	Barcode string `json:"barcode"`
}

type CardInstructions struct {
	Status string `json:"status"` // vendor status string
}

type CheckoutResponse struct {
	OrderID       uuid.UUID             `json:"order_id"`
	ChargeID      string                `json:"charge_id"`
	Status        models.OrderStatus    `json:"status"`
	PaymentStatus models.PaymentStatus  `json:"payment_status"`
	Pix           *PixInstructions      `json:"pix,omitempty"`
	BankSlip      *BankSlipInstructions `json:"bank_slip,omitempty"`
	Card          *CardInstructions     `json:"card,omitempty"`
}

type OrderListResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

// EventProducer publishes settlement events for downstream consumers.
type EventProducer interface {
	SendPaymentEvent(event models.PaymentEvent) error
}

type CheckoutService struct {
	orders       repository.OrderRepository
	users        repository.UserRepository
	catalog      repository.CatalogRepository
	entitlements *EntitlementService
	gateway      gateway.PaymentGateway
	producer     EventProducer // optional
	logger       *zap.Logger
	now          func() time.Time
}

func NewCheckoutService(
	orders repository.OrderRepository,
	users repository.UserRepository,
	catalog repository.CatalogRepository,
	entitlements *EntitlementService,
	gw gateway.PaymentGateway,
	producer EventProducer,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		orders:       orders,
		users:        users,
		catalog:      catalog,
		entitlements: entitlements,
		gateway:      gw,
		producer:     producer,
		logger:       logger,
		now:          time.Now,
	}
}

// Checkout validates the purchase request, creates the order and opens the
// charge at the gateway. The card path may settle synchronously; PIX and
// boleto orders stay PENDING until the webhook reconciler hears back.
func (s *CheckoutService) Checkout(ctx context.Context, authUserID string, req *CheckoutRequest) (*CheckoutResponse, *ServiceError) {
	if !req.PaymentMethod.Valid() {
		return nil, newValidationError("payment_method must be PIX, BOLETO or CREDIT_CARD")
	}

	ref, err := models.NewItemRef(req.CourseID, req.EbookID, req.DocumentID)
	if err != nil {
		return nil, newValidationError(err.Error())
	}

	user, svcErr := s.resolveUser(ctx, authUserID, req.Registration)
	if svcErr != nil {
		return nil, svcErr
	}

	snapshot, err := s.catalog.FindItem(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newNotFoundError("purchasable item not found")
		}
		s.logger.Error("failed to resolve catalog item", zap.Error(err))
		return nil, newInternalError("failed to resolve item")
	}

	owned, err := s.entitlements.Has(ctx, user.ID, ref)
	if err != nil {
		s.logger.Error("entitlement lookup failed", zap.Error(err))
		return nil, newInternalError("failed to check existing access")
	}
	if owned {
		if ref.Kind == models.ItemKindCourse {
			return nil, newConflictError("user is already enrolled in this course")
		}
		return nil, newConflictError("item already purchased")
	}

	order := s.buildOrder(user, req, snapshot)
	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Error("failed to create order", zap.Error(err))
		return nil, newInternalError("failed to create order")
	}

	charge, svcErr := s.openCharge(ctx, order, req, snapshot)
	if svcErr != nil {
		// The order row is already durable; mark it failed instead of
		// leaving a PENDING order that no webhook will ever settle.
		s.markOrderFailed(ctx, order.ID)
		return nil, svcErr
	}

	if err := s.orders.UpdateFields(ctx, order.ID, map[string]interface{}{"charge_id": charge.ID}); err != nil {
		s.logger.Error("failed to attach charge to order",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil, newInternalError("failed to record charge")
	}
	order.ChargeID = &charge.ID

	switch req.PaymentMethod {
	case models.PaymentMethodCreditCard:
		return s.finishCardCheckout(ctx, order, charge, req)
	case models.PaymentMethodPix:
		return s.finishPixCheckout(ctx, order, charge)
	default:
		return s.finishBoletoCheckout(ctx, order, charge)
	}
}

// resolveUser creates an account when a registration payload is present,
// otherwise requires a pre-authenticated identity.
func (s *CheckoutService) resolveUser(ctx context.Context, authUserID string, reg *RegistrationInfo) (*models.User, *ServiceError) {
	if reg != nil {
		if _, err := s.users.FindByEmail(ctx, reg.Email); err == nil {
			return nil, newConflictError("an account with this email already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("account lookup failed", zap.Error(err))
			return nil, newInternalError("failed to create account")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, newInternalError("failed to create account")
		}
		user := &models.User{
			ID:           uuid.New(),
			Name:         reg.Name,
			Email:        reg.Email,
			PasswordHash: string(hash),
			Role:         "customer",
		}
		if err := s.users.Create(ctx, user); err != nil {
			s.logger.Error("account creation failed", zap.Error(err))
			return nil, newInternalError("failed to create account")
		}
		return user, nil
	}

	if authUserID == "" {
		return nil, newUnauthorizedError("authentication or registration is required")
	}
	userID, err := uuid.Parse(authUserID)
	if err != nil {
		return nil, newUnauthorizedError("invalid user identity")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newUnauthorizedError("unknown user identity")
		}
		s.logger.Error("user lookup failed", zap.Error(err))
		return nil, newInternalError("failed to resolve user")
	}
	return user, nil
}

func (s *CheckoutService) buildOrder(user *models.User, req *CheckoutRequest, snapshot *models.ItemSnapshot) *models.Order {
	now := s.now()
	userID := user.ID

	order := &models.Order{
		ID:            uuid.New(),
		UserID:        &userID,
		TotalAmount:   snapshot.Price,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: req.PaymentMethod,
		CustomerName:  req.Customer.Name,
		CustomerEmail: req.Customer.Email,
		CustomerTaxID: req.Customer.TaxID,
		CustomerPhone: req.Customer.Phone,
		DueDate:       s.dueDate(req.PaymentMethod, now),
	}

	item := models.OrderItem{
		ID:          uuid.New(),
		OrderID:     order.ID,
		Title:       snapshot.Title,
		Description: snapshot.Description,
		Price:       snapshot.Price,
	}
	switch snapshot.Ref.Kind {
	case models.ItemKindCourse:
		id := snapshot.Ref.ID
		item.CourseID = &id
	case models.ItemKindEbook:
		id := snapshot.Ref.ID
		item.EbookID = &id
	case models.ItemKindDocument:
		id := snapshot.Ref.ID
		item.DocumentID = &id
	}
	order.Items = []models.OrderItem{item}

	return order
}

func (s *CheckoutService) dueDate(method models.PaymentMethod, now time.Time) time.Time {
	switch method {
	case models.PaymentMethodPix:
		return now.Add(pixDueWindow)
	case models.PaymentMethodBoleto:
		return now.Add(boletoDueWindow)
	default:
		return now
	}
}

func (s *CheckoutService) openCharge(ctx context.Context, order *models.Order, req *CheckoutRequest, snapshot *models.ItemSnapshot) (*gateway.Charge, *ServiceError) {
	customerRef, err := s.gateway.ReconcileCustomer(ctx, gateway.CustomerProfile{
		Name:  order.CustomerName,
		Email: order.CustomerEmail,
		TaxID: order.CustomerTaxID,
		Phone: order.CustomerPhone,
	})
	if err != nil {
		return nil, s.translateGatewayError("customer reconciliation failed", err)
	}

	spec := gateway.ChargeSpec{
		CustomerRef:       customerRef,
		BillingType:       order.PaymentMethod,
		Value:             order.TotalAmount,
		DueDate:           order.DueDate,
		ExternalReference: order.ID.String(),
		Description:       snapshot.Title,
	}
	if req.Installments > 1 {
		spec.InstallmentCount = req.Installments
	}

	charge, err := s.gateway.OpenCharge(ctx, spec)
	if err != nil {
		return nil, s.translateGatewayError("failed to open charge", err)
	}
	return charge, nil
}

func (s *CheckoutService) finishCardCheckout(ctx context.Context, order *models.Order, charge *gateway.Charge, req *CheckoutRequest) (*CheckoutResponse, *ServiceError) {
	if req.CreditCard == nil {
		// No card data: the charge stays open and the customer pays through
		// the vendor's hosted invoice; settlement arrives via webhook.
		return s.checkoutResponse(order, charge, nil), nil
	}

	result, err := s.gateway.PayWithCard(ctx, charge.ID, *req.CreditCard, gateway.CardHolderInfo{
		Name:  order.CustomerName,
		Email: order.CustomerEmail,
		TaxID: order.CustomerTaxID,
		Phone: order.CustomerPhone,
	})
	if err != nil {
		s.markOrderFailed(ctx, order.ID)
		return nil, s.translateGatewayError("card payment failed", err)
	}

	tr := transitionForChargeStatus(result.Status)
	var changed bool
	settleErr := s.orders.Settle(ctx, order.ID, func(tx *gorm.DB, locked *models.Order) error {
		var err error
		changed, err = applyTransition(tx, locked, tr, s.now(), s.entitlements)
		return err
	})
	if settleErr != nil {
		s.logger.Error("failed to apply card settlement",
			zap.String("order_id", order.ID.String()),
			zap.Error(settleErr),
		)
		return nil, newInternalError("failed to record payment result")
	}

	order.Status = tr.status
	order.PaymentStatus = tr.paymentStatus
	if changed && tr.fulfill {
		s.publishEvent(order, "payment_confirmed")
	}

	return s.checkoutResponse(order, charge, &CardInstructions{Status: result.Status}), nil
}

func (s *CheckoutService) finishPixCheckout(ctx context.Context, order *models.Order, charge *gateway.Charge) (*CheckoutResponse, *ServiceError) {
	code, err := s.gateway.GetInstantTransferCode(ctx, charge.ID)
	if err != nil {
		// The charge is open; the order stays PENDING and can still settle
		// via webhook even though the QR payload was not delivered.
		return nil, s.translateGatewayError("failed to fetch instant transfer code", err)
	}

	updates := map[string]interface{}{
		"pix_payload": code.Payload,
	}
	if !code.ExpirationDate.IsZero() {
		updates["pix_expires_at"] = code.ExpirationDate
	}
	if err := s.orders.UpdateFields(ctx, order.ID, updates); err != nil {
		s.logger.Error("failed to persist pix payload",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil, newInternalError("failed to record payment instructions")
	}

	resp := s.checkoutResponse(order, charge, nil)
	resp.Pix = &PixInstructions{
		Payload:        code.Payload,
		QRCodeImage:    code.EncodedImage,
		ExpirationDate: code.ExpirationDate,
	}
	return resp, nil
}

func (s *CheckoutService) finishBoletoCheckout(ctx context.Context, order *models.Order, charge *gateway.Charge) (*CheckoutResponse, *ServiceError) {
	updates := map[string]interface{}{
		"bank_slip_url":     charge.BankSlipURL,
		"bank_slip_barcode": charge.Barcode,
	}
	if err := s.orders.UpdateFields(ctx, order.ID, updates); err != nil {
		s.logger.Error("failed to persist bank slip artifacts",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil, newInternalError("failed to record payment instructions")
	}

	resp := s.checkoutResponse(order, charge, nil)
	resp.BankSlip = &BankSlipInstructions{
		URL:     charge.BankSlipURL,
		Barcode: charge.Barcode,
	}
	return resp, nil
}

func (s *CheckoutService) checkoutResponse(order *models.Order, charge *gateway.Charge, card *CardInstructions) *CheckoutResponse {
	return &CheckoutResponse{
		OrderID:       order.ID,
		ChargeID:      charge.ID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Card:          card,
	}
}

// markOrderFailed runs the failure transition under the settlement row lock.
// A confirmation webhook may have settled the order while the synchronous
// call was in flight; the terminal guard then makes this a no-op instead of
// clobbering a CONFIRMED order.
func (s *CheckoutService) markOrderFailed(ctx context.Context, orderID uuid.UUID) {
	err := s.orders.Settle(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		_, applyErr := applyTransition(tx, order, failTransition, s.now(), s.entitlements)
		return applyErr
	})
	if err != nil {
		s.logger.Error("failed to mark order as failed",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
	}
}

func (s *CheckoutService) translateGatewayError(msg string, err error) *ServiceError {
	if errors.Is(err, gateway.ErrNotConfigured) {
		return newGatewayNotConfiguredError()
	}
	var reqErr *gateway.RequestError
	if errors.As(err, &reqErr) {
		return newGatewayError(msg + ": " + reqErr.Reason)
	}
	return newGatewayError(msg)
}

func (s *CheckoutService) publishEvent(order *models.Order, eventType string) {
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

// GetOrderStatus returns the order snapshot, restricted to the owning user
// unless the caller is an administrator.
func (s *CheckoutService) GetOrderStatus(ctx context.Context, authUserID string, isAdmin bool, orderID uuid.UUID) (*models.Order, *ServiceError) {
	if isAdmin {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, newNotFoundError("order not found")
			}
			return nil, newInternalError("failed to fetch order")
		}
		return order, nil
	}

	userID, err := uuid.Parse(authUserID)
	if err != nil {
		return nil, newUnauthorizedError("invalid user identity")
	}
	order, err := s.orders.FindByIDAndUserID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newNotFoundError("order not found")
		}
		return nil, newInternalError("failed to fetch order")
	}
	return order, nil
}

// GetUserOrders retrieves paginated orders for a specific user.
func (s *CheckoutService) GetUserOrders(ctx context.Context, authUserID string, page, limit int) (*OrderListResponse, *ServiceError) {
	userID, err := uuid.Parse(authUserID)
	if err != nil {
		return nil, newUnauthorizedError("invalid user identity")
	}

	orders, total, err := s.orders.FindByUserID(ctx, userID, page, limit)
	if err != nil {
		s.logger.Error("failed to fetch user orders", zap.String("user_id", authUserID), zap.Error(err))
		return nil, newInternalError("failed to fetch orders")
	}

	return s.orderList(orders, total, page, limit), nil
}

// GetAllOrders retrieves paginated orders across all users (admin only).
func (s *CheckoutService) GetAllOrders(ctx context.Context, page, limit int) (*OrderListResponse, *ServiceError) {
	orders, total, err := s.orders.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("failed to fetch all orders", zap.Error(err))
		return nil, newInternalError("failed to fetch orders")
	}
	return s.orderList(orders, total, page, limit), nil
}

func (s *CheckoutService) orderList(orders []models.Order, total int64, page, limit int) *OrderListResponse {
	return &OrderListResponse{
		Orders: orders,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
