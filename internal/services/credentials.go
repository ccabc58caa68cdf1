package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"taskify/backend/internal/crypto"
	"taskify/backend/internal/dav"
	"taskify/backend/internal/models"

	"gorm.io/gorm"
)

type DAVSetupInput struct {
	URL      string `json:"caldav_url"`
	Username string `json:"caldav_username"`
	Password string `json:"caldav_password"`
}

type DAVStatus struct {
	Configured bool   `json:"configured"`
	URL        string `json:"caldav_url,omitempty"`
	Username   string `json:"caldav_username,omitempty"`
}

type DAVService interface {
	Setup(ctx context.Context, db *gorm.DB, userID uint, input DAVSetupInput) (DAVStatus, error)
	Status(ctx context.Context, db *gorm.DB, userID uint) (DAVStatus, error)
	Disconnect(ctx context.Context, db *gorm.DB, userID uint) error
}

// CredentialService stores the per-user DAV credentials and hands them
// back, decrypted, to the sync and import paths.
type CredentialService struct {
	encryptor *crypto.Encryptor
}

func NewCredentialService(encryptor *crypto.Encryptor) *CredentialService {
	return &CredentialService{encryptor: encryptor}
}

func (s *CredentialService) Setup(ctx context.Context, db *gorm.DB, userID uint, input DAVSetupInput) (DAVStatus, error) {
	input.URL = strings.TrimSpace(input.URL)
	input.Username = strings.TrimSpace(input.Username)

	if input.URL == "" {
		return DAVStatus{}, invalid("caldav_url", "is required")
	}
	if u, err := url.Parse(input.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return DAVStatus{}, invalid("caldav_url", "must be an absolute http(s) URL")
	}
	if input.Username == "" {
		return DAVStatus{}, invalid("caldav_username", "is required")
	}
	if input.Password == "" {
		return DAVStatus{}, invalid("caldav_password", "is required")
	}

	ciphertext, err := s.encryptor.Encrypt(input.Password)
	if err != nil {
		return DAVStatus{}, fmt.Errorf("failed to encrypt password: %w", err)
	}

	result := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"caldav_url":        input.URL,
		"caldav_username":   input.Username,
		"caldav_password":   ciphertext,
		"caldav_configured": true,
	})
	if result.Error != nil {
		return DAVStatus{}, result.Error
	}
	if result.RowsAffected == 0 {
		return DAVStatus{}, ErrNotFound
	}

	return DAVStatus{Configured: true, URL: input.URL, Username: input.Username}, nil
}

func (s *CredentialService) Status(ctx context.Context, db *gorm.DB, userID uint) (DAVStatus, error) {
	user, err := loadUser(ctx, db, userID)
	if err != nil {
		return DAVStatus{}, err
	}
	if !user.CaldavConfigured || !user.HasAddressBookCredentials() {
		return DAVStatus{}, nil
	}
	return DAVStatus{Configured: true, URL: user.CaldavURL, Username: user.CaldavUsername}, nil
}

func (s *CredentialService) Disconnect(ctx context.Context, db *gorm.DB, userID uint) error {
	result := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"caldav_url":        "",
		"caldav_username":   "",
		"caldav_password":   "",
		"caldav_configured": false,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Calendar returns the user row and decrypted credentials for calendar
// sync, which needs the server URL as well as username and password.
func (s *CredentialService) Calendar(ctx context.Context, db *gorm.DB, userID uint) (models.User, dav.Credentials, error) {
	user, err := loadUser(ctx, db, userID)
	if errors.Is(err, ErrNotFound) || (err == nil && !user.HasCalendarCredentials()) {
		return models.User{}, dav.Credentials{}, ErrCredentialsMissing
	}
	if err != nil {
		return models.User{}, dav.Credentials{}, err
	}

	creds, err := s.decrypt(user)
	return user, creds, err
}

func (s *CredentialService) AddressBook(ctx context.Context, db *gorm.DB, userID uint) (dav.Credentials, error) {
	user, err := loadUser(ctx, db, userID)
	if errors.Is(err, ErrNotFound) || (err == nil && !user.HasAddressBookCredentials()) {
		return dav.Credentials{}, ErrCredentialsMissing
	}
	if err != nil {
		return dav.Credentials{}, err
	}
	return s.decrypt(user)
}

func (s *CredentialService) decrypt(user models.User) (dav.Credentials, error) {
	password, err := s.encryptor.Decrypt(user.CaldavPassword)
	if err != nil {
		return dav.Credentials{}, fmt.Errorf("failed to decrypt DAV password: %w", err)
	}
	return dav.Credentials{Username: user.CaldavUsername, Password: password}, nil
}

func loadUser(ctx context.Context, db *gorm.DB, userID uint) (models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// CalendarCollectionURL is the user's default calendar collection,
// always with a trailing slash.
func CalendarCollectionURL(user models.User) string {
	return fmt.Sprintf("%s/calendars/%s/default/", strings.TrimRight(user.CaldavURL, "/"), user.CaldavUsername)
}

func TaskResourceURL(user models.User, uid string) string {
	return CalendarCollectionURL(user) + uid + ".ics"
}

func ContactResourceURL(addressBookURL, uid string) string {
	if !strings.HasSuffix(addressBookURL, "/") {
		addressBookURL += "/"
	}
	return addressBookURL + uid + ".vcf"
}
