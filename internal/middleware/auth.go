package middleware

import (
	"net/http"
	"strings"
	"time"

	"proxy-panel/internal/models"
	"proxy-panel/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthMiddleware checks the admin JWT and puts the current admin into the
// context.
func AuthMiddleware(jwtSecret string, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenStr string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenStr = parts[1]
			}
		}

		// query fallback for download links that cannot set headers
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}

		if tokenStr == "" {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not authenticated")
			c.Abort()
			return
		}

		claims, err := util.ParseAdminToken(jwtSecret, tokenStr)
		if err != nil || claims.ExpiresAt == nil || claims.ExpiresAt.Before(time.Now()) {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "session expired, log in again")
			c.Abort()
			return
		}

		var admin models.Admin
		if err := db.First(&admin, claims.AdminID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				util.Error(c, http.StatusUnauthorized, util.CodeAuth, "admin not found")
			} else {
				util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "load admin failed")
			}
			c.Abort()
			return
		}

		c.Set("currentAdmin", &admin)
		c.Next()
	}
}

// CurrentAdmin reads the admin placed by AuthMiddleware.
func CurrentAdmin(c *gin.Context) (*models.Admin, bool) {
	v, ok := c.Get("currentAdmin")
	if !ok {
		return nil, false
	}
	admin, ok := v.(*models.Admin)
	if !ok || admin == nil {
		return nil, false
	}
	return admin, true
}
