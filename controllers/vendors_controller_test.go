package controllers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/princinho/sahoassist/models"
)

func TestCreateVendor(t *testing.T) {
	h := newHarness(t)

	v := h.addVendor("Shop@Example.com", "Électronique", "Home Office", "home office")
	assert.Equal(t, "shop@example.com", v.Email)
	assert.Equal(t, models.VendorStatusActive, v.Status)
	assert.True(t, v.NotificationsEnabled)
	require.Len(t, v.Categories, 2)
	assert.Equal(t, "electronique", v.Categories[0].CategorySlug)
	assert.True(t, v.Categories[0].IsPrimary)
	assert.Equal(t, "home-office", v.Categories[1].CategorySlug)

	w := h.admin(http.MethodPost, "/admin/vendors", gin.H{"name": "Again", "email": "shop@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.admin(http.MethodPost, "/admin/vendors", gin.H{"name": "No mail"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateVendor(t *testing.T) {
	h := newHarness(t)
	v := h.addVendor("shop@example.com", "electronics")
	path := "/admin/vendors/" + itoa(v.ID)

	w := h.admin(http.MethodPatch, path, gin.H{"status": "Inactive", "company": "Shop Ltd"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[models.Vendor](t, w)
	assert.Equal(t, models.VendorStatusInactive, got.Status)
	assert.Equal(t, "Shop Ltd", got.Company)

	w = h.admin(http.MethodPatch, path, gin.H{"status": "banned"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.admin(http.MethodPatch, path, gin.H{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.admin(http.MethodPatch, "/admin/vendors/404", gin.H{"company": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// inactive vendors are skipped by broadcasts
	res := h.submitRequest("electronics")
	assert.Equal(t, 0, res.VendorsContacted)
	assert.Empty(t, h.mail.to("shop@example.com"))
}

func TestAddVendorCategory(t *testing.T) {
	h := newHarness(t)
	v := h.addVendor("shop@example.com", "electronics")
	path := "/admin/vendors/" + itoa(v.ID) + "/categories"

	w := h.admin(http.MethodPost, path, gin.H{"name": "Furniture"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	got := decode[models.Vendor](t, w)
	require.Len(t, got.Categories, 2)
	assert.Equal(t, "furniture", got.Categories[1].CategorySlug)

	w = h.admin(http.MethodPost, path, gin.H{"name": "furniture"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.admin(http.MethodPost, path, gin.H{"name": "!!!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.admin(http.MethodPost, "/admin/vendors/404/categories", gin.H{"name": "toys"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	res := h.submitRequest("furniture")
	assert.Equal(t, 1, res.VendorsContacted)
}

func TestListVendors(t *testing.T) {
	h := newHarness(t)
	h.addVendor("a@example.com", "electronics")
	h.addVendor("b@example.com", "furniture")
	h.addVendor("c@example.com", "electronics", "toys")

	w := h.admin(http.MethodGet, "/admin/vendors?category=Electronics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[listBody[models.Vendor]](t, w)
	assert.EqualValues(t, 2, page.Total)

	w = h.admin(http.MethodGet, "/admin/vendors?q=b@", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[listBody[models.Vendor]](t, w)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "b@example.com", page.Items[0].Email)

	w = h.admin(http.MethodGet, "/admin/vendors/404/notifications", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
