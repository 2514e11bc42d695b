package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"checkout-service/controllers"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// The boundary tests below never reach a repository or the gateway; request
// validation fails first. Deeper flows are covered at the service level.
func newCheckoutRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	svc := services.NewCheckoutService(emptyOrderRepo{}, nil, nil, nil, nil, nil, logger)
	cc := controllers.NewCheckoutController(svc, logger)

	r := gin.New()
	r.POST("/checkout/create", cc.CreateCheckout)
	r.GET("/checkout/status/:orderId", cc.GetCheckoutStatus)
	return r
}

func TestCreateCheckout_MalformedJSON(t *testing.T) {
	r := newCheckoutRouter()

	req := httptest.NewRequest(http.MethodPost, "/checkout/create", bytes.NewReader([]byte(`{not json`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCheckout_MissingCustomerRejected(t *testing.T) {
	r := newCheckoutRouter()

	body, _ := json.Marshal(map[string]interface{}{
		"ebook_id":       uuid.New().String(),
		"payment_method": "PIX",
	})
	req := httptest.NewRequest(http.MethodPost, "/checkout/create", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCheckout_UnknownPaymentMethodRejected(t *testing.T) {
	r := newCheckoutRouter()

	body, _ := json.Marshal(map[string]interface{}{
		"ebook_id":       uuid.New().String(),
		"payment_method": "WIRE",
		"customer": map[string]string{
			"name":   "Maria Souza",
			"email":  "maria@example.com",
			"tax_id": "12345678909",
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/checkout/create", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, services.CodeValidation, resp["code"])
}

func TestGetCheckoutStatus_InvalidOrderID(t *testing.T) {
	r := newCheckoutRouter()

	req := httptest.NewRequest(http.MethodGet, "/checkout/status/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
