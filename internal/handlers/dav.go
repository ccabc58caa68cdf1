package handlers

import (
	"net/http"

	"taskify/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DAVHandler struct {
	db         *gorm.DB
	davService services.DAVService
}

func NewDAVHandler(db *gorm.DB, davService services.DAVService) *DAVHandler {
	return &DAVHandler{db: db, davService: davService}
}

func (h *DAVHandler) Setup(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var input services.DAVSetupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.davService.Setup(c.Request.Context(), h.db, userID, input)
	if err != nil {
		handleSyncError(c, "store DAV credentials", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *DAVHandler) Check(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	status, err := h.davService.Status(c.Request.Context(), h.db, userID)
	if err != nil {
		handleSyncError(c, "check DAV credentials", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *DAVHandler) Disconnect(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.davService.Disconnect(c.Request.Context(), h.db, userID); err != nil {
		handleSyncError(c, "clear DAV credentials", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "DAV credentials removed"})
}
