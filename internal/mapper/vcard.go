package mapper

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"taskify/backend/internal/models"

	"github.com/emersion/go-vcard"
	"github.com/samber/mo"
)

// VCardShape selects how ADR lines are written. Both shapes decode.
type VCardShape int

const (
	// CreateShape writes the street only: ADR;TYPE=HOME:<street>.
	CreateShape VCardShape = iota
	// UpdateShape writes the postal components:
	// ADR;TYPE=HOME:;;<street>;<city>;<state>;<zip>;<country>.
	UpdateShape
)

// EncodeContact renders a vCard 3.0 payload for the contact. uid is the
// resource identifier that also names the .vcf file.
func EncodeContact(c models.Contact, uid string, shape VCardShape) ([]byte, error) {
	if uid == "" {
		return nil, fmt.Errorf("encode contact: missing uid")
	}

	card := vcard.Card{}
	card.SetValue(vcard.FieldVersion, "3.0")
	card.SetValue(vcard.FieldFormattedName, c.DisplayName)
	if c.FirstName != "" || c.LastName != "" {
		card.SetValue(vcard.FieldName, strings.Join([]string{c.LastName, c.FirstName, "", "", ""}, ";"))
	}
	card.SetValue(vcard.FieldUID, uid)

	addTyped(card, vcard.FieldEmail, c.PrimaryEmail)
	addTyped(card, vcard.FieldEmail, c.SecondaryEmail, "HOME")
	addTyped(card, vcard.FieldTelephone, c.HomePhone, "HOME", "VOICE")
	addTyped(card, vcard.FieldTelephone, c.WorkPhone, "WORK", "VOICE")
	addTyped(card, vcard.FieldTelephone, c.MobileNumber, "CELL", "VOICE")

	switch shape {
	case UpdateShape:
		addPostal(card, "HOME", c.HomeAddress, c.HomeCity, c.HomeState, c.HomeZipcode, c.HomeCountry)
		addPostal(card, "WORK", c.WorkAddress, c.WorkCity, c.WorkState, c.WorkZipcode, c.WorkCountry)
	default:
		addTyped(card, vcard.FieldAddress, c.HomeAddress, "HOME")
		addTyped(card, vcard.FieldAddress, c.WorkAddress, "WORK")
	}

	addTyped(card, vcard.FieldOrganization, c.Organization)
	addTyped(card, vcard.FieldTitle, c.JobTitle)
	addTyped(card, "DEPARTMENT", c.Department)

	// GEO fields are positional: home first, then work. A bare "GEO:;"
	// holds the home slot when only work coordinates exist.
	switch {
	case c.HasHomeCoordinates():
		card.Add(vcard.FieldGeolocation, &vcard.Field{Value: formatGeo(*c.HLatitude, *c.HLongitude)})
	case c.HasWorkCoordinates():
		card.Add(vcard.FieldGeolocation, &vcard.Field{Value: ";"})
	}
	if c.HasWorkCoordinates() {
		card.Add(vcard.FieldGeolocation, &vcard.Field{Value: formatGeo(*c.WLatitude, *c.WLongitude)})
	}

	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(card); err != nil {
		return nil, fmt.Errorf("encode contact %s: %w", uid, err)
	}
	return buf.Bytes(), nil
}

// addTyped appends a field when value is non-empty. types become TYPE
// parameters.
func addTyped(card vcard.Card, name, value string, types ...string) {
	if value == "" {
		return
	}
	field := &vcard.Field{Value: value}
	if len(types) > 0 {
		field.Params = vcard.Params{vcard.ParamType: types}
	}
	card.Add(name, field)
}

// addPostal writes ADR as ;;street;city;state;zip;country, skipping an
// address with every component empty.
func addPostal(card vcard.Card, addrType string, parts ...string) {
	for _, p := range parts {
		if p != "" {
			addTyped(card, vcard.FieldAddress, ";;"+strings.Join(parts, ";"), addrType)
			return
		}
	}
}

func formatGeo(lat, long float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + ";" + strconv.FormatFloat(long, 'f', -1, 64)
}

type Address struct {
	Street  mo.Option[string]
	City    mo.Option[string]
	State   mo.Option[string]
	Zipcode mo.Option[string]
	Country mo.Option[string]
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

type ContactFields struct {
	DisplayName    mo.Option[string]
	FirstName      mo.Option[string]
	LastName       mo.Option[string]
	PrimaryEmail   mo.Option[string]
	SecondaryEmail mo.Option[string]
	HomePhone      mo.Option[string]
	WorkPhone      mo.Option[string]
	MobileNumber   mo.Option[string]
	JobTitle       mo.Option[string]
	Organization   mo.Option[string]
	Department     mo.Option[string]
	UID            mo.Option[string]
	Home           Address
	Work           Address
	HomeGeo        mo.Option[Coordinates]
	WorkGeo        mo.Option[Coordinates]
}

// Contact builds an addressbook row from the decoded fields. vcf_url is
// left for the caller.
func (f ContactFields) Contact() models.Contact {
	c := models.Contact{
		DisplayName:    f.DisplayName.OrEmpty(),
		FirstName:      f.FirstName.OrEmpty(),
		LastName:       f.LastName.OrEmpty(),
		PrimaryEmail:   f.PrimaryEmail.OrEmpty(),
		SecondaryEmail: f.SecondaryEmail.OrEmpty(),
		HomePhone:      f.HomePhone.OrEmpty(),
		WorkPhone:      f.WorkPhone.OrEmpty(),
		MobileNumber:   f.MobileNumber.OrEmpty(),
		JobTitle:       f.JobTitle.OrEmpty(),
		Organization:   f.Organization.OrEmpty(),
		Department:     f.Department.OrEmpty(),
		UID:            f.UID.OrEmpty(),
		HomeAddress:    f.Home.Street.OrEmpty(),
		HomeCity:       f.Home.City.OrEmpty(),
		HomeState:      f.Home.State.OrEmpty(),
		HomeZipcode:    f.Home.Zipcode.OrEmpty(),
		HomeCountry:    f.Home.Country.OrEmpty(),
		WorkAddress:    f.Work.Street.OrEmpty(),
		WorkCity:       f.Work.City.OrEmpty(),
		WorkState:      f.Work.State.OrEmpty(),
		WorkZipcode:    f.Work.Zipcode.OrEmpty(),
		WorkCountry:    f.Work.Country.OrEmpty(),
	}
	if geo, ok := f.HomeGeo.Get(); ok {
		c.HLatitude, c.HLongitude = &geo.Latitude, &geo.Longitude
	}
	if geo, ok := f.WorkGeo.Get(); ok {
		c.WLatitude, c.WLongitude = &geo.Latitude, &geo.Longitude
	}
	return c
}

// DecodeContact extracts the known vCard fields. Only the first EMAIL:
// line becomes the primary address; GEO lines fill home then work.
func DecodeContact(data string) ContactFields {
	var f ContactFields
	text := func(dst *mo.Option[string]) Setter {
		return func(v string) error {
			*dst = mo.Some(unescapeText(v))
			return nil
		}
	}
	geoSlots := 0

	NewScanner(
		Field{Prefix: "FN:", Set: text(&f.DisplayName)},
		Field{Prefix: "N:", Set: func(v string) error {
			parts := splitComponents(v)
			f.LastName = mo.Some(strings.TrimSpace(parts[0]))
			if len(parts) > 1 {
				f.FirstName = mo.Some(strings.TrimSpace(parts[1]))
			}
			return nil
		}},
		Field{Prefix: "EMAIL:", Set: func(v string) error {
			if f.PrimaryEmail.IsPresent() {
				return nil
			}
			f.PrimaryEmail = mo.Some(unescapeText(v))
			return nil
		}},
		Field{Prefix: "EMAIL;TYPE=HOME:", Set: text(&f.SecondaryEmail)},
		Field{Prefix: "TEL;TYPE=WORK,VOICE:", Set: text(&f.WorkPhone)},
		Field{Prefix: "TEL;TYPE=WORK;TYPE=VOICE:", Set: text(&f.WorkPhone)},
		Field{Prefix: "TEL;TYPE=HOME,VOICE:", Set: text(&f.HomePhone)},
		Field{Prefix: "TEL;TYPE=HOME;TYPE=VOICE:", Set: text(&f.HomePhone)},
		Field{Prefix: "TEL;TYPE=CELL,VOICE:", Set: text(&f.MobileNumber)},
		Field{Prefix: "TEL;TYPE=CELL;TYPE=VOICE:", Set: text(&f.MobileNumber)},
		Field{Prefix: "ADR;TYPE=HOME:", Set: address(&f.Home)},
		Field{Prefix: "ADR;TYPE=WORK:", Set: address(&f.Work)},
		Field{Prefix: "TITLE:", Set: text(&f.JobTitle)},
		Field{Prefix: "ORG:", Set: text(&f.Organization)},
		Field{Prefix: "DEPARTMENT:", Set: text(&f.Department)},
		Field{Prefix: "UID:", Set: text(&f.UID)},
		Field{Prefix: "GEO:", Set: func(v string) error {
			geoSlots++
			var dst *mo.Option[Coordinates]
			switch geoSlots {
			case 1:
				dst = &f.HomeGeo
			case 2:
				dst = &f.WorkGeo
			default:
				return nil
			}
			coords, err := parseGeo(v)
			if err != nil {
				return err
			}
			*dst = mo.Some(coords)
			return nil
		}},
	).Scan(data)

	return f
}

// address reads either the short street-only shape or the postal
// components at positions 2..6.
func address(dst *Address) Setter {
	return func(v string) error {
		parts := splitComponents(v)
		if len(parts) == 1 {
			dst.Street = mo.Some(strings.TrimSpace(parts[0]))
			return nil
		}
		at := func(i int) mo.Option[string] {
			if i < len(parts) {
				return mo.Some(strings.TrimSpace(parts[i]))
			}
			return mo.Some("")
		}
		dst.Street = at(2)
		dst.City = at(3)
		dst.State = at(4)
		dst.Zipcode = at(5)
		dst.Country = at(6)
		return nil
	}
}

func parseGeo(v string) (Coordinates, error) {
	parts := strings.Split(v, ";")
	if len(parts) < 2 {
		return Coordinates{}, fmt.Errorf("geo %q: expected latitude;longitude", v)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geo latitude: %w", err)
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geo longitude: %w", err)
	}
	return Coordinates{Latitude: lat, Longitude: long}, nil
}
