package gateway

import (
	"time"

	"checkout-service/models"
)

// CustomerProfile is the payer identity sent to the vendor. TaxID is the
// dedup key: one vendor customer per tax id.
type CustomerProfile struct {
	Name  string
	Email string
	TaxID string
	Phone string
}

// ChargeSpec describes a charge to be opened at the vendor. Installment
// fields are serialized only when InstallmentCount > 1; the vendor prorates
// a one-shot payment differently when a count of 1 is sent, so a plain
// charge must carry no installment fields at all. Plans always send the full
// total and let the vendor split it, so non-divisible amounts never lose the
// remainder to client-side division.
type ChargeSpec struct {
	CustomerRef       string
	BillingType       models.PaymentMethod
	Value             int // minor currency units
	DueDate           time.Time
	ExternalReference string
	Description       string
	InstallmentCount  int
}

// Charge is the vendor-side view of an opened charge.
type Charge struct {
	ID          string
	Status      string
	InvoiceURL  string
	BankSlipURL string
	Barcode     string
}

type CardDetails struct {
	HolderName  string `json:"holder_name"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CCV         string `json:"ccv"`
}

type CardHolderInfo struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	TaxID         string `json:"tax_id"`
	Phone         string `json:"phone"`
	PostalCode    string `json:"postal_code"`
	AddressNumber string `json:"address_number"`
}

// InstantTransferCode is the scannable PIX artifact for a pending charge.
type InstantTransferCode struct {
	Payload        string
	EncodedImage   string // base64 PNG
	ExpirationDate time.Time
}

// wire shapes

type customerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	CpfCnpj     string `json:"cpfCnpj"`
	MobilePhone string `json:"mobilePhone,omitempty"`
}

type customerResponse struct {
	ID string `json:"id"`
}

type customerListResponse struct {
	Data []customerResponse `json:"data"`
}

type chargeRequest struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value,omitempty"`
	DueDate           string  `json:"dueDate"`
	ExternalReference string  `json:"externalReference"`
	Description       string  `json:"description,omitempty"`
	InstallmentCount  int     `json:"installmentCount,omitempty"`
	TotalValue        float64 `json:"totalValue,omitempty"`
}

type chargeResponse struct {
	ID                  string  `json:"id"`
	Status              string  `json:"status"`
	Value               float64 `json:"value"`
	InvoiceURL          string  `json:"invoiceUrl"`
	BankSlipURL         string  `json:"bankSlipUrl"`
	IdentificationField string  `json:"identificationField"`
	ExternalReference   string  `json:"externalReference"`
}

type cardPayRequest struct {
	CreditCard struct {
		HolderName  string `json:"holderName"`
		Number      string `json:"number"`
		ExpiryMonth string `json:"expiryMonth"`
		ExpiryYear  string `json:"expiryYear"`
		Ccv         string `json:"ccv"`
	} `json:"creditCard"`
	CreditCardHolderInfo struct {
		Name          string `json:"name"`
		Email         string `json:"email"`
		CpfCnpj       string `json:"cpfCnpj"`
		Phone         string `json:"phone,omitempty"`
		PostalCode    string `json:"postalCode,omitempty"`
		AddressNumber string `json:"addressNumber,omitempty"`
	} `json:"creditCardHolderInfo"`
}

type pixQrCodeResponse struct {
	EncodedImage   string `json:"encodedImage"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"` // "2006-01-02 15:04:05"
}

type refundRequest struct {
	Value float64 `json:"value,omitempty"`
}

type vendorErrorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}
