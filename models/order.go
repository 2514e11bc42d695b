package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "PIX"
	PaymentMethodBoleto     PaymentMethod = "BOLETO"
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodPix, PaymentMethodBoleto, PaymentMethodCreditCard:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCanceled   OrderStatus = "CANCELED"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusPaid       PaymentStatus = "PAID"
	PaymentStatusConfirmed  PaymentStatus = "CONFIRMED"
	PaymentStatusOverdue    PaymentStatus = "OVERDUE"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCanceled   PaymentStatus = "CANCELED"
)

// Terminal reports whether a payment status may never change again.
// Webhook redeliveries arriving after a terminal status must be no-ops.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusConfirmed, PaymentStatusCanceled, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

type Order struct {
	ID            uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        *uuid.UUID    `gorm:"type:uuid;index" json:"user_id,omitempty"`
	TotalAmount   int           `gorm:"not null" json:"total_amount"` // minor currency units
	Status        OrderStatus   `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"payment_status"`
	PaymentMethod PaymentMethod `gorm:"type:varchar(20);not null" json:"payment_method"`

	// Customer snapshot taken at checkout time, not a live reference.
	CustomerName  string `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerEmail string `gorm:"type:varchar(255);not null" json:"customer_email"`
	CustomerTaxID string `gorm:"type:varchar(32);not null" json:"customer_tax_id"`
	CustomerPhone string `gorm:"type:varchar(32)" json:"customer_phone"`

	ChargeID        *string    `gorm:"uniqueIndex" json:"charge_id,omitempty"`
	PixPayload      *string    `gorm:"type:text" json:"pix_payload,omitempty"`
	PixExpiresAt    *time.Time `json:"pix_expires_at,omitempty"`
	BankSlipURL     *string    `gorm:"type:varchar(1024)" json:"bank_slip_url,omitempty"`
	BankSlipBarcode *string    `gorm:"type:varchar(255)" json:"bank_slip_barcode,omitempty"`

	DueDate     time.Time      `gorm:"not null" json:"due_date"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CanceledAt  *time.Time     `json:"canceled_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

type OrderItem struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Price       int       `gorm:"not null" json:"price"` // minor currency units

	// Exactly one of the three references is set; validated at the boundary
	// via NewItemRef before the row is created.
	CourseID   *uuid.UUID `gorm:"type:uuid;index" json:"course_id,omitempty"`
	EbookID    *uuid.UUID `gorm:"type:uuid;index" json:"ebook_id,omitempty"`
	DocumentID *uuid.UUID `gorm:"type:uuid;index" json:"document_id,omitempty"`
}

// Ref rebuilds the item union from the persisted columns.
func (i OrderItem) Ref() (ItemRef, error) {
	return NewItemRef(i.CourseID, i.EbookID, i.DocumentID)
}
