package handlers

import (
	"net/http"

	"taskify/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ContactHandler struct {
	db             *gorm.DB
	contactService services.ContactService
}

func NewContactHandler(db *gorm.DB, contactService services.ContactService) *ContactHandler {
	return &ContactHandler{db: db, contactService: contactService}
}

func (h *ContactHandler) CreateContact(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var input services.ContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.contactService.CreateContact(c.Request.Context(), h.db, userID, input)
	if err != nil {
		handleSyncError(c, "create contact", err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var input services.ContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.contactService.UpdateContact(c.Request.Context(), h.db, userID, id, input)
	if err != nil {
		handleSyncError(c, "update contact", err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) DeleteContact(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.contactService.DeleteContact(c.Request.Context(), h.db, userID, id); err != nil {
		handleSyncError(c, "delete contact", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	contacts, err := h.contactService.GetContacts(c.Request.Context(), h.db)
	if err != nil {
		handleSyncError(c, "load contacts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"contacts": contacts,
		"total":    len(contacts),
	})
}

func (h *ContactHandler) GetContactMap(c *gin.Context) {
	points, err := h.contactService.GetContactMap(c.Request.Context(), h.db)
	if err != nil {
		handleSyncError(c, "load contact map", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

func (h *ContactHandler) ImportContacts(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.contactService.ImportContacts(c.Request.Context(), h.db, userID)
	if err != nil {
		handleSyncError(c, "import contacts", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
