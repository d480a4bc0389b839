package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/princinho/sahoassist/dto"
	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/services"
	"github.com/princinho/sahoassist/store"
)

// GET /admin/vendors?page=1&limit=20&status=active&category=electronics&q=
func GetVendors(vendors *services.VendorService, limits PageLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := limits.page(c)
		f := store.VendorFilter{
			Status:   models.VendorStatus(strings.TrimSpace(c.Query("status"))),
			Category: strings.TrimSpace(c.Query("category")),
			Search:   strings.TrimSpace(c.Query("q")),
		}
		items, total, err := vendors.List(c.Request.Context(), f, p)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, items, total, p)
	}
}

// POST /admin/vendors
func CreateVendor(vendors *services.VendorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.CreateVendorDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		v, err := vendors.Create(c.Request.Context(), services.VendorInput{
			UserID:     body.UserID,
			Name:       body.Name,
			Email:      body.Email,
			Company:    body.Company,
			Phone:      body.Phone,
			Categories: body.Categories,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, v)
	}
}

// GET /admin/vendors/:id
func GetVendor(vendors *services.VendorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		v, err := vendors.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// PATCH /admin/vendors/:id
func UpdateVendor(vendors *services.VendorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var body dto.UpdateVendorDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		patch := services.VendorPatch{
			Name:                 body.Name,
			Company:              body.Company,
			Phone:                body.Phone,
			NotificationsEnabled: body.NotificationsEnabled,
		}
		if body.Status != nil {
			st := models.VendorStatus(strings.ToLower(strings.TrimSpace(*body.Status)))
			patch.Status = &st
		}
		v, err := vendors.Update(c.Request.Context(), id, patch)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// POST /admin/vendors/:id/categories
func AddVendorCategory(vendors *services.VendorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var body dto.AddVendorCategoryDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
		v, err := vendors.AddCategory(c.Request.Context(), id, body.Name, body.Primary)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, v)
	}
}

// GET /admin/vendors/:id/notifications?page=1&limit=20
func GetVendorNotifications(vendors *services.VendorService, limits PageLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		p := limits.page(c)
		items, total, err := vendors.Notifications(c.Request.Context(), id, p)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, items, total, p)
	}
}
