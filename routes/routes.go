package routes

import (
	"net/http"

	"checkout-service/controllers"
	"checkout-service/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, jwtSecret string, cc *controllers.CheckoutController, wc *controllers.WebhookController) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	checkout := r.Group("/checkout")
	checkout.Use(middleware.CheckoutRateLimit())
	checkout.POST("/create", middleware.OptionalAuthMiddleware(jwtSecret), cc.CreateCheckout)
	checkout.GET("/status/:orderId", middleware.AuthMiddleware(jwtSecret), cc.GetCheckoutStatus)

	orders := r.Group("/orders")
	orders.Use(middleware.AuthMiddleware(jwtSecret))
	orders.GET("", cc.GetOrders)
	orders.GET("/all", middleware.RequireRole("admin"), cc.GetAllOrders)

	// Vendor-originated; authenticated by signature, not by session.
	r.POST("/webhooks/asaas", middleware.WebhookRateLimit(), wc.HandleGatewayWebhook)

	r.POST("/test/confirm-payment/:orderId",
		middleware.AuthMiddleware(jwtSecret),
		middleware.RequireRole("admin"),
		wc.ConfirmPayment,
	)
}
