package handlers

import (
	"net/http"

	"taskify/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SearchHandler struct {
	db            *gorm.DB
	searchService services.SearchService
}

func NewSearchHandler(db *gorm.DB, searchService services.SearchService) *SearchHandler {
	return &SearchHandler{db: db, searchService: searchService}
}

// Search handles GET /search?q=&type=tasks|contacts.
func (h *SearchHandler) Search(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.searchService.Search(c.Request.Context(), h.db, userID, c.Query("q"), c.Query("type"))
	if err != nil {
		handleSyncError(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
