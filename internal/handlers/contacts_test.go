package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskify/backend/internal/davxml"
	"taskify/backend/internal/handlers"
	"taskify/backend/internal/models"
	"taskify/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MockContactService struct {
	err      error
	contacts []models.Contact
	points   []services.MapPoint
}

func (m *MockContactService) CreateContact(ctx context.Context, db *gorm.DB, userID uint, input services.ContactInput) (models.Contact, error) {
	if m.err != nil {
		return models.Contact{}, m.err
	}
	return models.Contact{ID: 1, FirstName: input.FirstName, LastName: input.LastName, DisplayName: input.FirstName + " " + input.LastName}, nil
}

func (m *MockContactService) GetContacts(ctx context.Context, db *gorm.DB) ([]models.Contact, error) {
	return m.contacts, m.err
}

func (m *MockContactService) GetContactMap(ctx context.Context, db *gorm.DB) ([]services.MapPoint, error) {
	return m.points, m.err
}

func (m *MockContactService) UpdateContact(ctx context.Context, db *gorm.DB, userID, id uint, input services.ContactInput) (models.Contact, error) {
	if m.err != nil {
		return models.Contact{}, m.err
	}
	return models.Contact{ID: id, DisplayName: input.DisplayName}, nil
}

func (m *MockContactService) DeleteContact(ctx context.Context, db *gorm.DB, userID, id uint) error {
	return m.err
}

func (m *MockContactService) ImportContacts(ctx context.Context, db *gorm.DB, userID uint) (services.ImportResult, error) {
	if m.err != nil {
		return services.ImportResult{}, m.err
	}
	return services.ImportResult{Status: services.StatusSynchronized, Fetched: 1, Imported: 1}, nil
}

func setupContactHandler() (*handlers.ContactHandler, *MockContactService, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	mockService := &MockContactService{}
	handler := handlers.NewContactHandler(nil, mockService)
	router := gin.New()
	router.Use(withUser(7))

	router.POST("/contacts", handler.CreateContact)
	router.GET("/contacts", handler.GetContacts)
	router.GET("/contacts/map", handler.GetContactMap)
	router.PUT("/contacts/:id", handler.UpdateContact)
	router.DELETE("/contacts/:id", handler.DeleteContact)
	router.POST("/contacts/import", handler.ImportContacts)
	return handler, mockService, router
}

func TestCreateContact(t *testing.T) {
	_, _, router := setupContactHandler()

	req, _ := http.NewRequest("POST", "/contacts", bytes.NewBuffer([]byte(`{"first_name":"Ada","last_name":"Lovelace"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d", http.StatusCreated, w.Code)
	}

	var contact models.Contact
	_ = json.Unmarshal(w.Body.Bytes(), &contact)
	if contact.DisplayName != "Ada Lovelace" {
		t.Errorf("Expected display name 'Ada Lovelace', got '%s'", contact.DisplayName)
	}
}

func TestGetContacts(t *testing.T) {
	_, mockService, router := setupContactHandler()
	mockService.contacts = []models.Contact{{ID: 1, DisplayName: "Ada"}, {ID: 2, DisplayName: "Grace"}}

	req, _ := http.NewRequest("GET", "/contacts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &response)
	if response["total"] != float64(2) {
		t.Errorf("Expected total 2, got %v", response["total"])
	}
}

func TestGetContactMap(t *testing.T) {
	_, mockService, router := setupContactHandler()
	mockService.points = []services.MapPoint{{ContactID: 1, Kind: "home", Latitude: 51.5, Longitude: -0.1}}

	req, _ := http.NewRequest("GET", "/contacts/map", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		Points []services.MapPoint `json:"points"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &response)
	if len(response.Points) != 1 || response.Points[0].Kind != "home" {
		t.Errorf("Unexpected points %+v", response.Points)
	}
}

func TestUpdateContactNotFound(t *testing.T) {
	_, mockService, router := setupContactHandler()
	mockService.err = services.ErrNotFound

	req, _ := http.NewRequest("PUT", "/contacts/9", bytes.NewBuffer([]byte(`{"display_name":"Ada"}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestDeleteContact(t *testing.T) {
	_, _, router := setupContactHandler()

	req, _ := http.NewRequest("DELETE", "/contacts/3", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status %d, got %d", http.StatusNoContent, w.Code)
	}
}

func TestImportContactsParseError(t *testing.T) {
	_, mockService, router := setupContactHandler()
	mockService.err = &davxml.ParseError{Reason: "malformed xml"}

	req, _ := http.NewRequest("POST", "/contacts/import", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}

	var response map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &response)
	if response["error"] != "failed to parse DAV response" {
		t.Errorf("Unexpected error %q", response["error"])
	}
}

func TestImportContactsAddressBookMissing(t *testing.T) {
	_, mockService, router := setupContactHandler()
	mockService.err = services.ErrAddressBookMissing

	req, _ := http.NewRequest("POST", "/contacts/import", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestGetContactsDatabaseError(t *testing.T) {
	_, mockService, router := setupContactHandler()
	mockService.err = errors.New("connection reset")

	req, _ := http.NewRequest("GET", "/contacts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}
