package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/princinho/sahoassist/metrics"
	"github.com/princinho/sahoassist/middleware"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/services"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/utils"
)

// API is everything the HTTP handlers depend on.
type API struct {
	Users       store.UserStore
	Requests    *services.RequestService
	Broadcaster *services.Broadcaster
	Notifier    *services.Notifier
	Vendors     *services.VendorService
	Tickets     *services.TicketService
	Chat        *services.ChatService
	Health      *services.HealthService
	Sweeper     *services.Sweeper
	Metrics     *metrics.Metrics

	// Uploads is nil when no object storage is configured.
	Uploads utils.ObjectStore
	Exports utils.ObjectStore
	Images  *utils.FileValidator

	JWTSecret string
	AccessTTL time.Duration
	Limits    PageLimits
}

// Register mounts every route of the API on r.
func Register(r *gin.Engine, api API) {
	r.GET("/ping", Ping())
	r.GET("/health", Health(api.Health))
	r.GET("/metrics", gin.WrapH(api.Metrics.Handler()))

	r.POST("/auth/login", Login(api.Users, api.JWTSecret, api.AccessTTL))

	r.POST("/products/search", SearchProducts(api.Chat))
	r.POST("/categories/suggest", SuggestCategories(api.Chat))
	r.GET("/vendor-response", OpenVendorResponse(api.Notifier))
	r.POST("/webhooks/vendor-response", VendorResponseWebhook(api.Notifier))

	// guests and signed-in customers share these; a valid token attaches the user
	public := r.Group("/")
	public.Use(middleware.OptionalAuth(api.JWTSecret))
	{
		public.POST("/chat/messages", PostChatMessage(api.Chat))
		public.POST("/chat/images", UploadChatImage(api.Chat, api.Images))
		public.POST("/product-requests", CreateProductRequest(api.Broadcaster, api.Images, api.Uploads))
		public.POST("/support/tickets", CreateSupportTicket(api.Tickets))
	}

	r.GET("/product-requests/mine", middleware.AuthMiddleware(api.JWTSecret), GetMyProductRequests(api.Requests, api.Limits))

	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(api.JWTSecret, models.RoleAdmin, models.RoleAgent))
	{
		admin.GET("/product-requests", GetProductRequests(api.Requests, api.Limits))
		admin.GET("/product-requests/overdue", GetOverdueProductRequests(api.Requests))
		admin.GET("/product-requests/stats", GetProductRequestStats(api.Requests))
		admin.POST("/product-requests/export", ExportProductRequests(api.Requests, api.Exports))
		admin.GET("/product-requests/:id", GetProductRequest(api.Requests))
		admin.PATCH("/product-requests/:id", UpdateProductRequest(api.Requests))
		admin.POST("/product-requests/:id/complete", CompleteProductRequest(api.Requests))
		admin.POST("/product-requests/:id/cancel", CancelProductRequest(api.Requests))
		admin.POST("/product-requests/:id/notify", NotifyProductRequestVendors(api.Requests, api.Notifier))
		admin.DELETE("/product-requests/:id", DeleteProductRequest(api.Requests))

		admin.GET("/vendors", GetVendors(api.Vendors, api.Limits))
		admin.POST("/vendors", CreateVendor(api.Vendors))
		admin.GET("/vendors/:id", GetVendor(api.Vendors))
		admin.PATCH("/vendors/:id", UpdateVendor(api.Vendors))
		admin.POST("/vendors/:id/categories", AddVendorCategory(api.Vendors))
		admin.GET("/vendors/:id/notifications", GetVendorNotifications(api.Vendors, api.Limits))

		admin.GET("/tickets", GetTickets(api.Tickets, api.Limits))
		admin.GET("/tickets/stats", GetTicketStats(api.Tickets))
		admin.GET("/tickets/:id", GetTicket(api.Tickets))
		admin.PATCH("/tickets/:id", UpdateTicket(api.Tickets))
		admin.POST("/tickets/:id/replies", AddTicketReply(api.Tickets))
		admin.POST("/tickets/:id/close", CloseTicket(api.Tickets))
		admin.GET("/tickets/:id/suggested-responses", GetSuggestedResponses(api.Tickets))

		admin.GET("/conversations", GetConversations(api.Chat, api.Limits))
		admin.GET("/conversations/stats", GetConversationStats(api.Chat))

		admin.POST("/sweeps/:name", RunSweep(api.Sweeper))

		admin.POST("/users", CreateUser(api.Users))
	}
}
