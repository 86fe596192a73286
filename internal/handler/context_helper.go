package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/classtrace/classtrace-api/internal/middleware"
	"github.com/classtrace/classtrace-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
