package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"checkout-service/gateway"
	"checkout-service/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *gateway.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return gateway.NewClient(srv.URL, "test_api_key", zap.NewNop())
}

func TestClient_NotConfigured(t *testing.T) {
	client := gateway.NewClient("", "", zap.NewNop())

	_, err := client.OpenCharge(context.Background(), gateway.ChargeSpec{})
	assert.ErrorIs(t, err, gateway.ErrNotConfigured)

	_, err = client.ReconcileCustomer(context.Background(), gateway.CustomerProfile{})
	assert.ErrorIs(t, err, gateway.ErrNotConfigured)

	_, err = client.GetInstantTransferCode(context.Background(), "pay_1")
	assert.ErrorIs(t, err, gateway.ErrNotConfigured)
}

func TestOpenCharge_SingleInstallmentStaysOffTheWire(t *testing.T) {
	var captured map[string]interface{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "test_api_key", r.Header.Get("access_token"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "pay_1", "status": "PENDING"})
	}))

	due := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	charge, err := client.OpenCharge(context.Background(), gateway.ChargeSpec{
		CustomerRef:       "cus_1",
		BillingType:       models.PaymentMethodPix,
		Value:             4990,
		DueDate:           due,
		ExternalReference: "order-ref",
		InstallmentCount:  1,
	})

	assert.NoError(t, err)
	assert.Equal(t, "pay_1", charge.ID)

	// A plain charge must carry no installment fields at all.
	_, hasCount := captured["installmentCount"]
	_, hasTotal := captured["totalValue"]
	assert.False(t, hasCount)
	assert.False(t, hasTotal)

	assert.Equal(t, "PIX", captured["billingType"])
	assert.Equal(t, 49.90, captured["value"])
	assert.Equal(t, "2026-03-15", captured["dueDate"])
	assert.Equal(t, "order-ref", captured["externalReference"])
}

func TestOpenCharge_InstallmentPlanSendsCountAndTotal(t *testing.T) {
	var captured map[string]interface{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "pay_2", "status": "PENDING"})
	}))

	// 19901 does not divide by 4; the vendor gets the exact total and owns
	// the per-installment split.
	_, err := client.OpenCharge(context.Background(), gateway.ChargeSpec{
		CustomerRef:      "cus_1",
		BillingType:      models.PaymentMethodCreditCard,
		Value:            19901,
		DueDate:          time.Now(),
		InstallmentCount: 4,
	})

	assert.NoError(t, err)
	assert.Equal(t, float64(4), captured["installmentCount"])
	assert.Equal(t, 199.01, captured["totalValue"])

	_, hasValue := captured["value"]
	_, hasPerInstallment := captured["installmentValue"]
	assert.False(t, hasValue)
	assert.False(t, hasPerInstallment)
}

func TestOpenCharge_VendorRejectionTranslated(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": []map[string]string{
				{"code": "invalid_value", "description": "O valor da cobrança é inválido"},
			},
		})
	}))

	_, err := client.OpenCharge(context.Background(), gateway.ChargeSpec{Value: -1, DueDate: time.Now()})

	var reqErr *gateway.RequestError
	assert.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	assert.Equal(t, "O valor da cobrança é inválido", reqErr.Reason)
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "pay_3", "status": "PENDING"})
	}))

	charge, err := client.OpenCharge(context.Background(), gateway.ChargeSpec{DueDate: time.Now()})

	assert.NoError(t, err)
	assert.Equal(t, "pay_3", charge.ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.OpenCharge(context.Background(), gateway.ChargeSpec{DueDate: time.Now()})

	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestReconcileCustomer_ReusesExisting(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/customers":
			assert.Equal(t, "12345678909", r.URL.Query().Get("cpfCnpj"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]string{{"id": "cus_existing"}},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/customers/cus_existing":
			json.NewEncoder(w).Encode(map[string]string{"id": "cus_existing"})
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	ref, err := client.ReconcileCustomer(context.Background(), gateway.CustomerProfile{
		Name:  "Maria Souza",
		Email: "maria@example.com",
		TaxID: "12345678909",
	})

	assert.NoError(t, err)
	assert.Equal(t, "cus_existing", ref)
}

func TestReconcileCustomer_CreatesWhenMissing(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/customers":
			json.NewEncoder(w).Encode(map[string]interface{}{"data": []map[string]string{}})
		case r.Method == http.MethodPost && r.URL.Path == "/customers":
			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "12345678909", body["cpfCnpj"])
			json.NewEncoder(w).Encode(map[string]string{"id": "cus_new"})
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	ref, err := client.ReconcileCustomer(context.Background(), gateway.CustomerProfile{
		Name:  "Maria Souza",
		TaxID: "12345678909",
	})

	assert.NoError(t, err)
	assert.Equal(t, "cus_new", ref)
}

func TestGetInstantTransferCode_ParsesExpiry(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_9/pixQrCode", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"encodedImage":   "iVBORw0KGgo=",
			"payload":        "00020126580014br.gov.bcb.pix",
			"expirationDate": "2026-03-15 12:30:00",
		})
	}))

	code, err := client.GetInstantTransferCode(context.Background(), "pay_9")

	assert.NoError(t, err)
	assert.Equal(t, "00020126580014br.gov.bcb.pix", code.Payload)
	assert.Equal(t, "iVBORw0KGgo=", code.EncodedImage)
	assert.Equal(t, time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC), code.ExpirationDate)
}

func TestPayWithCard_MapsChargeResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_7/payWithCreditCard", r.URL.Path)
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		card := body["creditCard"].(map[string]interface{})
		assert.Equal(t, "4111111111111111", card["number"])
		json.NewEncoder(w).Encode(map[string]string{"id": "pay_7", "status": "CONFIRMED"})
	}))

	charge, err := client.PayWithCard(context.Background(), "pay_7",
		gateway.CardDetails{
			HolderName:  "Maria Souza",
			Number:      "4111111111111111",
			ExpiryMonth: "12",
			ExpiryYear:  "2030",
			CCV:         "123",
		},
		gateway.CardHolderInfo{Name: "Maria Souza", Email: "maria@example.com", TaxID: "12345678909"},
	)

	assert.NoError(t, err)
	assert.Equal(t, "CONFIRMED", charge.Status)
}
