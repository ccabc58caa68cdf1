package models

import (
	"time"
)

type Contact struct {
	ID             uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	DisplayName    string `json:"display_name" gorm:"not null"`
	PrimaryEmail   string `json:"primary_email"`
	SecondaryEmail string `json:"secondary_email"`
	HomePhone      string `json:"home_phone"`
	WorkPhone      string `json:"work_phone"`
	MobileNumber   string `json:"mobile_number"`
	JobTitle       string `json:"job_title"`
	Department     string `json:"department"`
	Organization   string `json:"organization"`

	HomeAddress string `json:"home_address"`
	HomeCity    string `json:"home_city"`
	HomeState   string `json:"home_state"`
	HomeZipcode string `json:"home_zipcode"`
	HomeCountry string `json:"home_country"`

	WorkAddress string `json:"work_address"`
	WorkCity    string `json:"work_city"`
	WorkState   string `json:"work_state"`
	WorkZipcode string `json:"work_zipcode"`
	WorkCountry string `json:"work_country"`

	HLatitude  *float64 `json:"h_latitude" gorm:"column:h_latitude"`
	HLongitude *float64 `json:"h_longitude" gorm:"column:h_longitude"`
	WLatitude  *float64 `json:"w_latitude" gorm:"column:w_latitude"`
	WLongitude *float64 `json:"w_longitude" gorm:"column:w_longitude"`

	VCFURL string `json:"vcf_url" gorm:"column:vcf_url;uniqueIndex"`
	UID    string `json:"uid" gorm:"column:uid"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Contact) TableName() string {
	return "addressbook1"
}

func (c *Contact) HasHomeCoordinates() bool {
	return c.HLatitude != nil && c.HLongitude != nil
}

func (c *Contact) HasWorkCoordinates() bool {
	return c.WLatitude != nil && c.WLongitude != nil
}
