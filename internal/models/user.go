package models

import (
	"time"
)

// User carries the DAV credentials used by every sync operation.
// CaldavPassword holds ciphertext; see internal/crypto.
type User struct {
	ID       uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Username string `json:"username" gorm:"unique"`
	Email    string `json:"email" gorm:"unique;not null"`

	CaldavURL        string `json:"caldav_url" gorm:"column:caldav_url"`
	CaldavUsername   string `json:"caldav_username" gorm:"column:caldav_username"`
	CaldavPassword   string `json:"-" gorm:"column:caldav_password"`
	CaldavConfigured bool   `json:"caldav_configured" gorm:"column:caldav_configured;default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Tasks []Task `json:"tasks,omitempty" gorm:"foreignKey:UserID"`
}

func (u *User) HasCalendarCredentials() bool {
	return u.CaldavURL != "" && u.CaldavUsername != "" && u.CaldavPassword != ""
}

func (u *User) HasAddressBookCredentials() bool {
	return u.CaldavUsername != "" && u.CaldavPassword != ""
}
