package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/middleware"
	"github.com/GoPolymarket/arena/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// caller returns the authenticated identity; AuthMiddleware must run first.
func caller(c *gin.Context) (address.Address, bool) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized: missing identity", nil))
		return address.Zero, false
	}
	return identity, true
}

func addressParam(c *gin.Context, name string) (address.Address, bool) {
	addr, err := address.Parse(c.Param(name))
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, fmt.Sprintf("invalid %s address", name), err))
		return address.Zero, false
	}
	return addr, true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, "invalid request body", err))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, def int) int {
	if raw := c.Query(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return def
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format")
}
