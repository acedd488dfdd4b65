package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/seventic/ops-api/internal/middleware"
	"github.com/seventic/ops-api/internal/models"
	"github.com/seventic/ops-api/internal/service"
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

func viewerFromClaims(claims *models.JWTClaims) service.Viewer {
	if claims == nil {
		return service.Viewer{}
	}
	return service.Viewer{ID: claims.UserID, Role: claims.Role}
}
