package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"taskify/backend/internal/dav"
	"taskify/backend/internal/mapper"
	"taskify/backend/internal/models"

	"gorm.io/gorm"
)

type ContactService interface {
	CreateContact(ctx context.Context, db *gorm.DB, userID uint, input ContactInput) (models.Contact, error)
	GetContacts(ctx context.Context, db *gorm.DB) ([]models.Contact, error)
	GetContactMap(ctx context.Context, db *gorm.DB) ([]MapPoint, error)
	UpdateContact(ctx context.Context, db *gorm.DB, userID, id uint, input ContactInput) (models.Contact, error)
	DeleteContact(ctx context.Context, db *gorm.DB, userID, id uint) error
	ImportContacts(ctx context.Context, db *gorm.DB, userID uint) (ImportResult, error)
}

type ContactInput struct {
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	DisplayName    string   `json:"display_name"`
	PrimaryEmail   string   `json:"primary_email"`
	SecondaryEmail string   `json:"secondary_email"`
	HomePhone      string   `json:"home_phone"`
	WorkPhone      string   `json:"work_phone"`
	MobileNumber   string   `json:"mobile_number"`
	JobTitle       string   `json:"job_title"`
	Department     string   `json:"department"`
	Organization   string   `json:"organization"`
	HomeAddress    string   `json:"home_address"`
	HomeCity       string   `json:"home_city"`
	HomeState      string   `json:"home_state"`
	HomeZipcode    string   `json:"home_zipcode"`
	HomeCountry    string   `json:"home_country"`
	WorkAddress    string   `json:"work_address"`
	WorkCity       string   `json:"work_city"`
	WorkState      string   `json:"work_state"`
	WorkZipcode    string   `json:"work_zipcode"`
	WorkCountry    string   `json:"work_country"`
	HLatitude      *float64 `json:"h_latitude"`
	HLongitude     *float64 `json:"h_longitude"`
	WLatitude      *float64 `json:"w_latitude"`
	WLongitude     *float64 `json:"w_longitude"`
}

// apply copies every editable field onto c. vcf_url, uid and id are left
// alone.
func (in ContactInput) apply(c *models.Contact) {
	c.FirstName = strings.TrimSpace(in.FirstName)
	c.LastName = strings.TrimSpace(in.LastName)
	c.DisplayName = strings.TrimSpace(in.DisplayName)
	c.PrimaryEmail = in.PrimaryEmail
	c.SecondaryEmail = in.SecondaryEmail
	c.HomePhone = in.HomePhone
	c.WorkPhone = in.WorkPhone
	c.MobileNumber = in.MobileNumber
	c.JobTitle = in.JobTitle
	c.Department = in.Department
	c.Organization = in.Organization
	c.HomeAddress = in.HomeAddress
	c.HomeCity = in.HomeCity
	c.HomeState = in.HomeState
	c.HomeZipcode = in.HomeZipcode
	c.HomeCountry = in.HomeCountry
	c.WorkAddress = in.WorkAddress
	c.WorkCity = in.WorkCity
	c.WorkState = in.WorkState
	c.WorkZipcode = in.WorkZipcode
	c.WorkCountry = in.WorkCountry
	c.HLatitude, c.HLongitude = in.HLatitude, in.HLongitude
	c.WLatitude, c.WLongitude = in.WLatitude, in.WLongitude
}

// MapPoint is one pin on the contacts map. A contact with both home and
// work coordinates yields two points.
type MapPoint struct {
	ContactID   uint    `json:"contact_id"`
	DisplayName string  `json:"display_name"`
	Kind        string  `json:"kind"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Address     string  `json:"address,omitempty"`
}

type ContactServiceImpl struct {
	deps     SyncDeps
	importer *Importer
}

func NewContactService(deps SyncDeps) *ContactServiceImpl {
	deps = deps.withDefaults()
	return &ContactServiceImpl{deps: deps, importer: NewImporter(deps)}
}

func (s *ContactServiceImpl) GetContacts(ctx context.Context, db *gorm.DB) ([]models.Contact, error) {
	contacts := []models.Contact{}
	err := db.WithContext(ctx).Order("display_name asc, id asc").Find(&contacts).Error
	return contacts, err
}

func (s *ContactServiceImpl) GetContactMap(ctx context.Context, db *gorm.DB) ([]MapPoint, error) {
	var contacts []models.Contact
	err := db.WithContext(ctx).
		Where("(h_latitude IS NOT NULL AND h_longitude IS NOT NULL) OR (w_latitude IS NOT NULL AND w_longitude IS NOT NULL)").
		Order("id asc").
		Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	points := []MapPoint{}
	for _, c := range contacts {
		if c.HasHomeCoordinates() {
			points = append(points, MapPoint{
				ContactID:   c.ID,
				DisplayName: c.DisplayName,
				Kind:        "home",
				Latitude:    *c.HLatitude,
				Longitude:   *c.HLongitude,
				Address:     joinAddress(c.HomeAddress, c.HomeCity, c.HomeState, c.HomeZipcode, c.HomeCountry),
			})
		}
		if c.HasWorkCoordinates() {
			points = append(points, MapPoint{
				ContactID:   c.ID,
				DisplayName: c.DisplayName,
				Kind:        "work",
				Latitude:    *c.WLatitude,
				Longitude:   *c.WLongitude,
				Address:     joinAddress(c.WorkAddress, c.WorkCity, c.WorkState, c.WorkZipcode, c.WorkCountry),
			})
		}
	}
	return points, nil
}

func joinAddress(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

func (s *ContactServiceImpl) getContact(ctx context.Context, db *gorm.DB, id uint) (models.Contact, error) {
	var contact models.Contact
	err := db.WithContext(ctx).First(&contact, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Contact{}, ErrNotFound
	}
	return contact, err
}

// CreateContact derives vcf_url from the address book URL and a fresh
// uid, puts the card, then inserts the row. A failed insert deletes the
// card again.
func (s *ContactServiceImpl) CreateContact(ctx context.Context, db *gorm.DB, userID uint, input ContactInput) (models.Contact, error) {
	var contact models.Contact
	input.apply(&contact)
	if contact.FirstName == "" {
		return models.Contact{}, invalid("first_name", "is required")
	}
	if contact.LastName == "" {
		return models.Contact{}, invalid("last_name", "is required")
	}
	if contact.DisplayName == "" {
		contact.DisplayName = contact.FirstName + " " + contact.LastName
	}

	if s.deps.DAV.AddressBookURL == "" {
		return models.Contact{}, ErrAddressBookMissing
	}
	creds, err := s.deps.Credentials.AddressBook(ctx, db, userID)
	if err != nil {
		return models.Contact{}, err
	}

	uid, err := s.deps.NewUID()
	if err != nil {
		return models.Contact{}, fmt.Errorf("failed to generate contact uid: %w", err)
	}
	contact.UID = uid
	contact.VCFURL = ContactResourceURL(s.deps.DAV.AddressBookURL, uid)

	body, err := mapper.EncodeContact(contact, uid, mapper.CreateShape)
	if err != nil {
		return models.Contact{}, err
	}
	remote := s.deps.Connector.Connect(creds)

	err = NewSaga("contact.create", s.deps.Logger, s.deps.Metrics).
		Remote("put card", func(ctx context.Context) error {
			return remote.Put(ctx, contact.VCFURL, dav.ContentTypeVCard, body)
		}, func(ctx context.Context) error {
			return remote.Delete(ctx, contact.VCFURL)
		}).
		Local("insert contact", func(ctx context.Context) error {
			return db.WithContext(ctx).Create(&contact).Error
		}, nil).
		Run(ctx)
	if err != nil {
		return models.Contact{}, err
	}
	return contact, nil
}

// UpdateContact overwrites the card at the stored vcf_url, then the row.
func (s *ContactServiceImpl) UpdateContact(ctx context.Context, db *gorm.DB, userID, id uint, input ContactInput) (models.Contact, error) {
	if strings.TrimSpace(input.DisplayName) == "" {
		return models.Contact{}, invalid("display_name", "is required")
	}

	existing, err := s.getContact(ctx, db, id)
	if err != nil {
		return models.Contact{}, err
	}
	if existing.VCFURL == "" {
		return models.Contact{}, invalid("vcf_url", "contact is not linked to a vCard")
	}

	creds, err := s.deps.Credentials.AddressBook(ctx, db, userID)
	if err != nil {
		return models.Contact{}, err
	}

	updated := existing
	input.apply(&updated)
	if updated.UID == "" {
		updated.UID = uidFromVCFURL(existing.VCFURL)
	}

	body, err := mapper.EncodeContact(updated, updated.UID, mapper.UpdateShape)
	if err != nil {
		return models.Contact{}, err
	}
	remote := s.deps.Connector.Connect(creds)

	err = NewSaga("contact.update", s.deps.Logger, s.deps.Metrics).
		Remote("put card", func(ctx context.Context) error {
			return remote.Put(ctx, updated.VCFURL, dav.ContentTypeVCard, body)
		}, nil).
		Local("save contact", func(ctx context.Context) error {
			return db.WithContext(ctx).Save(&updated).Error
		}, nil).
		Run(ctx)
	if err != nil {
		return models.Contact{}, err
	}
	return updated, nil
}

// DeleteContact removes the row, then the card. If the card cannot be
// deleted the full row is inserted again with its original id.
func (s *ContactServiceImpl) DeleteContact(ctx context.Context, db *gorm.DB, userID, id uint) error {
	contact, err := s.getContact(ctx, db, id)
	if err != nil {
		return err
	}
	if contact.VCFURL == "" {
		return invalid("vcf_url", "contact is not linked to a vCard")
	}

	creds, err := s.deps.Credentials.AddressBook(ctx, db, userID)
	if err != nil {
		return err
	}
	remote := s.deps.Connector.Connect(creds)

	return NewSaga("contact.delete", s.deps.Logger, s.deps.Metrics).
		Local("delete contact", func(ctx context.Context) error {
			return db.WithContext(ctx).Delete(&models.Contact{}, contact.ID).Error
		}, func(ctx context.Context) error {
			restored := contact
			return db.WithContext(ctx).Create(&restored).Error
		}).
		Remote("delete card", func(ctx context.Context) error {
			return remote.Delete(ctx, contact.VCFURL)
		}, nil).
		Run(ctx)
}

func (s *ContactServiceImpl) ImportContacts(ctx context.Context, db *gorm.DB, userID uint) (ImportResult, error) {
	return s.importer.ImportContacts(ctx, db, userID)
}

// uidFromVCFURL recovers the uid of a card created before uids were
// stored: the last path segment without ".vcf".
func uidFromVCFURL(vcfURL string) string {
	return strings.TrimSuffix(path.Base(vcfURL), ".vcf")
}
