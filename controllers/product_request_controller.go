package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/princinho/sahoassist/dto"
	"github.com/princinho/sahoassist/middleware"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/services"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/utils"
)

// ====== CreateProductRequest (public, no auth) ======
// POST /product-requests
// application/json: CreateProductRequestDTO
// multipart/form-data:
//   - data: JSON string (CreateProductRequestDTO)
//   - image: optional file (jpg/png/webp/gif)
func CreateProductRequest(b *services.Broadcaster, images *utils.FileValidator, uploads utils.ObjectStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var body dto.CreateProductRequestDTO
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			dataStr := c.PostForm("data")
			if dataStr == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "missing data field"})
				return
			}
			if err := json.Unmarshal([]byte(dataStr), &body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data json", "details": err.Error()})
				return
			}

			// Optional reference image
			file, errFile := c.FormFile("image")
			if errFile == nil && file != nil {
				data, mimeType, err := images.ReadFile(file)
				if err != nil {
					badRequest(c, err)
					return
				}
				if uploads == nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "image uploads are not enabled"})
					return
				}
				url, err := uploads.Put(ctx, utils.ObjectKey("product-requests", utils.ExtensionFor(mimeType)), mimeType, data)
				if err != nil {
					respondError(c, err)
					return
				}
				body.ImageURL = url
			}
		} else if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}

		res, err := b.CreateAndNotify(ctx, services.CreateRequestInput{
			UserID:        middleware.UserID(c),
			Category:      body.Category,
			Description:   body.Description,
			ImageURL:      strings.TrimSpace(body.ImageURL),
			CustomerName:  strings.TrimSpace(body.CustomerName),
			CustomerEmail: strings.TrimSpace(body.CustomerEmail),
			CustomerPhone: strings.TrimSpace(body.CustomerPhone),
			Priority:      models.Priority(strings.ToLower(strings.TrimSpace(body.Priority))),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

func requestFilter(c *gin.Context) store.RequestFilter {
	f := store.RequestFilter{
		Category:      strings.TrimSpace(c.Query("category")),
		UserID:        utils.ParseInt64Default(c.Query("userId"), 0),
		Priority:      models.Priority(strings.TrimSpace(c.Query("priority"))),
		Search:        strings.TrimSpace(c.Query("q")),
		CreatedAfter:  utils.ParseDate(c.Query("from")),
		CreatedBefore: utils.ParseDate(c.Query("to")),
		OldestFirst:   c.Query("order") == "oldest",
	}
	for _, s := range queryList(c, "status") {
		f.Statuses = append(f.Statuses, models.ProductRequestStatus(s))
	}
	return f
}

// GET /product-requests/mine?page=1&limit=20&status=pending,processing
// Lists the signed-in customer's own requests, newest first.
func GetMyProductRequests(requests *services.RequestService, limits PageLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		if userID <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "sign in to see your requests"})
			return
		}
		p := limits.page(c)
		f := store.RequestFilter{UserID: userID}
		for _, s := range queryList(c, "status") {
			f.Statuses = append(f.Statuses, models.ProductRequestStatus(s))
		}
		items, total, err := requests.List(c.Request.Context(), f, p)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, items, total, p)
	}
}

// ====== GetProductRequests (admin) ======
// GET /admin/product-requests?page=1&limit=20&status=pending,processing&category=&priority=&q=&from=&to=&order=oldest
func GetProductRequests(requests *services.RequestService, limits PageLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := limits.page(c)
		items, total, err := requests.List(c.Request.Context(), requestFilter(c), p)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, items, total, p)
	}
}

// GET /admin/product-requests/overdue
func GetOverdueProductRequests(requests *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := requests.Overdue(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
	}
}

// GET /admin/product-requests/stats?days=30
func GetProductRequestStats(requests *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := requests.Statistics(c.Request.Context(), queryDays(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// POST /admin/product-requests/export
// Takes the same filters as the list endpoint. Answers 204 when nothing matches.
func ExportProductRequests(requests *services.RequestService, exports utils.ObjectStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := requests.ExportCSV(c.Request.Context(), requestFilter(c), exports)
		if err != nil {
			respondError(c, err)
			return
		}
		if res == nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

// GET /admin/product-requests/:id
func GetProductRequest(requests *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		detail, err := requests.Detail(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

// PATCH /admin/product-requests/:id
func UpdateProductRequest(requests *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var body dto.UpdateProductRequestDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}

		in := services.UpdateRequestInput{
			Notes:             body.Notes,
			VendorsContacted:  body.VendorsContacted,
			ResponsesReceived: body.ResponsesReceived,
		}
		if body.Status != nil {
			st := models.ProductRequestStatus(strings.ToLower(strings.TrimSpace(*body.Status)))
			in.Status = &st
		}
		if body.Priority != nil {
			pr := models.Priority(strings.ToLower(strings.TrimSpace(*body.Priority)))
			in.Priority = &pr
		}

		r, err := requests.Update(c.Request.Context(), id, in, actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// POST /admin/product-requests/:id/complete
func CompleteProductRequest(requests *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var body dto.CompleteProductRequestDTO
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				badRequest(c, err)
				return
			}
		}
		r, err := requests.Complete(c.Request.Context(), id, body.Notes, actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// POST /admin/product-requests/:id/cancel
func CancelProductRequest(requests *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var body dto.CancelProductRequestDTO
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				badRequest(c, err)
				return
			}
		}
		r, err := requests.Cancel(c.Request.Context(), id, body.Reason, actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// POST /admin/product-requests/:id/notify
// Re-runs the vendor broadcast; vendors already reached are not emailed twice.
func NotifyProductRequestVendors(requests *services.RequestService, notifier *services.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		ids, err := notifier.NotifyVendors(ctx, "", "", id, 0)
		if err != nil {
			respondError(c, err)
			return
		}
		r, err := requests.Get(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		if count := len(ids); count > r.VendorsContacted {
			r, err = requests.Update(ctx, id, services.UpdateRequestInput{VendorsContacted: &count}, actor(c))
			if err != nil {
				respondError(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"request": r, "vendorIds": ids, "vendorsContacted": len(ids)})
	}
}

// DELETE /admin/product-requests/:id
func DeleteProductRequest(requests *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		if err := requests.Delete(c.Request.Context(), id, actor(c)); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
