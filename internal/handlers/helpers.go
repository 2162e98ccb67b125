package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vietTNT/DoveRx-backend/internal/auth"
	"github.com/vietTNT/DoveRx-backend/internal/middleware"
	"github.com/vietTNT/DoveRx-backend/internal/models"
	"github.com/vietTNT/DoveRx-backend/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func identity(c *gin.Context) (auth.Identity, bool) {
	id, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
	}
	return id, ok
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

// summariesByID bulk-loads user summaries for payload assembly.
func summariesByID(ctx context.Context, users repositories.UserRepository, ids []int) (map[int]models.UserSummary, error) {
	seen := make(map[int]struct{}, len(ids))
	unique := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	loaded, err := users.BulkUsers(ctx, unique)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]models.UserSummary, len(loaded))
	for _, u := range loaded {
		byID[u.ID] = u.Summary()
	}
	return byID, nil
}
