package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studydocs-backend/internal/shared/server/middleware"
	"studydocs-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches the /auth/me endpoint.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/me", meHandler)
}

func meHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "Not authorized, no token")
		return
	}

	user := gin.H{"_id": userID}
	if email := middleware.UserEmailFromContext(c); email != "" {
		user["email"] = email
	}
	if name := middleware.UserNameFromContext(c); name != "" {
		user["name"] = name
	}
	respond.Success(c, http.StatusOK, user, "")
}
