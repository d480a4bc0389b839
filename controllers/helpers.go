package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/princinho/sahoassist/apperr"
	"github.com/princinho/sahoassist/middleware"
	"github.com/princinho/sahoassist/store"
	"github.com/princinho/sahoassist/utils"
)

// PageLimits bounds the page size of list endpoints.
type PageLimits struct {
	Max     int
	Default int
}

func (l PageLimits) page(c *gin.Context) store.Page {
	maxLimit, defaultLimit := l.Max, l.Default
	if maxLimit <= 0 {
		maxLimit = 100
	}
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	page, limit := utils.PageParams(c.Query("page"), c.Query("limit"), maxLimit, defaultLimit)
	return store.Page{Page: page, PerPage: limit}
}

func respondList[T any](c *gin.Context, items []T, total int64, p store.Page) {
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"page":  p.Page,
		"limit": p.PerPage,
		"total": total,
	})
}

// respondError answers with the status of the error kind. Internal errors are
// attached to the context for the request logger and not shown to the caller.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// actor names the authenticated caller in activity logs.
func actor(c *gin.Context) string {
	if email := c.GetString(middleware.KeyEmail); email != "" {
		return email
	}
	return "admin"
}

func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func queryDays(c *gin.Context) int {
	days := utils.ParseIntDefault(c.Query("days"), 30)
	if days < 1 {
		days = 30
	}
	return days
}
