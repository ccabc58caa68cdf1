package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"taskify/backend/internal/dav"
	"taskify/backend/internal/davxml"
	"taskify/backend/internal/middleware"
	"taskify/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// handleSyncError writes the response for an error from a sync, import or
// read path. action completes "failed to ...".
func handleSyncError(c *gin.Context, action string, err error) {
	var validation *services.ValidationError
	var remote *dav.RemoteError
	var parse *davxml.ParseError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.Is(err, services.ErrCredentialsMissing):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.As(err, &remote):
		log.Printf("❌ DAV %s %s failed: %v", remote.Method, remote.URL, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to " + action + " on DAV server",
			"details": remote.Detail(),
		})
	case errors.As(err, &parse):
		log.Printf("❌ DAV response could not be parsed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to parse DAV response",
			"details": parse.Error(),
		})
	default:
		log.Printf("❌ failed to %s: %v", action, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to " + action,
			"details": err.Error(),
		})
	}
}

func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, false
	}
	return userID, true
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
