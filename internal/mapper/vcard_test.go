package mapper

import (
	"strings"
	"testing"

	"taskify/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func sampleContact() models.Contact {
	return models.Contact{
		FirstName:      "Ada",
		LastName:       "Lovelace",
		DisplayName:    "Ada Lovelace",
		PrimaryEmail:   "ada@example.com",
		SecondaryEmail: "ada@home.example.com",
		HomePhone:      "+44 20 1234",
		WorkPhone:      "+44 20 5678",
		MobileNumber:   "+44 7700 900",
		JobTitle:       "Analyst",
		Department:     "Engines",
		Organization:   "Babbage, Ltd",
		HomeAddress:    "12 St James's Sq",
		HomeCity:       "London",
		HomeCountry:    "UK",
		WorkAddress:    "1 Dorset St",
		HLatitude:      floatPtr(51.5074),
		HLongitude:     floatPtr(-0.1278),
	}
}

func TestEncodeContact_CreateShapeRoundTrip(t *testing.T) {
	contact := sampleContact()

	data, err := EncodeContact(contact, "5f2b", CreateShape)
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "BEGIN:VCARD\r\n"))
	assert.Contains(t, text, "ADR;TYPE=HOME:12 St James's Sq\r\n")
	assert.Contains(t, text, "GEO:51.5074;-0.1278\r\n")

	got := DecodeContact(text).Contact()
	assert.Equal(t, contact.DisplayName, got.DisplayName)
	assert.Equal(t, contact.FirstName, got.FirstName)
	assert.Equal(t, contact.LastName, got.LastName)
	assert.Equal(t, contact.PrimaryEmail, got.PrimaryEmail)
	assert.Equal(t, contact.SecondaryEmail, got.SecondaryEmail)
	assert.Equal(t, contact.HomePhone, got.HomePhone)
	assert.Equal(t, contact.WorkPhone, got.WorkPhone)
	assert.Equal(t, contact.MobileNumber, got.MobileNumber)
	assert.Equal(t, contact.Organization, got.Organization)
	assert.Equal(t, contact.HomeAddress, got.HomeAddress)
	assert.Equal(t, "5f2b", got.UID)
	require.True(t, got.HasHomeCoordinates())
	assert.Equal(t, 51.5074, *got.HLatitude)
	assert.False(t, got.HasWorkCoordinates())
}

func TestEncodeContact_UpdateShapeRoundTrip(t *testing.T) {
	contact := sampleContact()
	contact.WLatitude = floatPtr(51.52)
	contact.WLongitude = floatPtr(-0.15)

	data, err := EncodeContact(contact, "5f2b", UpdateShape)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "ADR;TYPE=HOME:;;12 St James's Sq;London;;;UK\r\n")

	got := DecodeContact(text).Contact()
	assert.Equal(t, "12 St James's Sq", got.HomeAddress)
	assert.Equal(t, "London", got.HomeCity)
	assert.Equal(t, "", got.HomeState)
	assert.Equal(t, "UK", got.HomeCountry)
	assert.Equal(t, "1 Dorset St", got.WorkAddress)
	require.True(t, got.HasWorkCoordinates())
	assert.Equal(t, 51.52, *got.WLatitude)
	assert.Equal(t, -0.15, *got.WLongitude)
}

func TestEncodeContact_WorkCoordinatesOnly(t *testing.T) {
	contact := models.Contact{
		DisplayName: "Remote Worker",
		WLatitude:   floatPtr(40.7),
		WLongitude:  floatPtr(-74.0),
	}

	data, err := EncodeContact(contact, "rw", CreateShape)
	require.NoError(t, err)

	got := DecodeContact(string(data)).Contact()
	assert.False(t, got.HasHomeCoordinates())
	require.True(t, got.HasWorkCoordinates())
	assert.Equal(t, 40.7, *got.WLatitude)
}

func TestEncodeContact_Escaping(t *testing.T) {
	contact := models.Contact{
		DisplayName:  "Lovelace, Ada",
		Organization: "Babbage, Ltd",
		JobTitle:     "Analyst\nEngines",
	}

	data, err := EncodeContact(contact, "esc", CreateShape)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "FN:Lovelace\\, Ada\r\n")
	assert.True(t, strings.HasSuffix(text, "END:VCARD\r\n"))

	got := DecodeContact(text).Contact()
	assert.Equal(t, "Lovelace, Ada", got.DisplayName)
	assert.Equal(t, "Babbage, Ltd", got.Organization)
	assert.Equal(t, "Analyst\nEngines", got.JobTitle)
}

func TestDecodeContact_TelephoneParameterSpellings(t *testing.T) {
	data := strings.Join([]string{
		"TEL;TYPE=HOME;TYPE=VOICE:222",
		"TEL;TYPE=WORK,VOICE:111",
		"TEL;TYPE=CELL;TYPE=VOICE:333",
	}, "\r\n")

	got := DecodeContact(data).Contact()
	assert.Equal(t, "222", got.HomePhone)
	assert.Equal(t, "111", got.WorkPhone)
	assert.Equal(t, "333", got.MobileNumber)
}

func TestEncodeContact_MissingUID(t *testing.T) {
	_, err := EncodeContact(sampleContact(), "", CreateShape)
	assert.Error(t, err)
}

func TestDecodeContact_GeoPositional(t *testing.T) {
	two := "BEGIN:VCARD\nFN:Geo\nGEO:37.1;-122.1\nGEO:37.2;-122.2\nEND:VCARD\n"

	f := DecodeContact(two)
	home, ok := f.HomeGeo.Get()
	require.True(t, ok)
	assert.Equal(t, Coordinates{Latitude: 37.1, Longitude: -122.1}, home)
	work, ok := f.WorkGeo.Get()
	require.True(t, ok)
	assert.Equal(t, Coordinates{Latitude: 37.2, Longitude: -122.2}, work)

	one := "BEGIN:VCARD\nFN:Geo\nGEO:37.1;-122.1\nEND:VCARD\n"
	f = DecodeContact(one)
	assert.True(t, f.HomeGeo.IsPresent())
	assert.False(t, f.WorkGeo.IsPresent())
}

func TestDecodeContact_MalformedGeoSkipsOnlyThatField(t *testing.T) {
	data := "FN:Broken\nGEO:north;south\nGEO:37.2;-122.2\nEMAIL:b@example.com\n"

	f := DecodeContact(data)
	assert.False(t, f.HomeGeo.IsPresent())
	assert.True(t, f.WorkGeo.IsPresent())
	assert.Equal(t, "b@example.com", f.PrimaryEmail.OrEmpty())
	assert.Equal(t, "Broken", f.DisplayName.OrEmpty())
}

func TestDecodeContact_Prefixes(t *testing.T) {
	data := strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:3.0",
		"FN:Grace Hopper",
		"N:Hopper;Grace;;;",
		"EMAIL:grace@navy.mil",
		"EMAIL:second@navy.mil",
		"EMAIL;TYPE=HOME:grace@home.example",
		"TEL;TYPE=WORK,VOICE:111",
		"TEL;TYPE=HOME,VOICE:222",
		"TEL;TYPE=CELL,VOICE:333",
		"ADR;TYPE=WORK:;;1 Navy Way;Arlington;VA;22202;USA",
		"TITLE:Rear Admiral",
		"ORG:US Navy",
		"DEPARTMENT:Computing",
		"UID:gh-1",
		"PHOTO;VALUE=uri:https://example.com/p.jpg",
		"END:VCARD",
	}, "\r\n")

	c := DecodeContact(data).Contact()
	assert.Equal(t, "Grace Hopper", c.DisplayName)
	assert.Equal(t, "Grace", c.FirstName)
	assert.Equal(t, "Hopper", c.LastName)
	assert.Equal(t, "grace@navy.mil", c.PrimaryEmail)
	assert.Equal(t, "grace@home.example", c.SecondaryEmail)
	assert.Equal(t, "111", c.WorkPhone)
	assert.Equal(t, "222", c.HomePhone)
	assert.Equal(t, "333", c.MobileNumber)
	assert.Equal(t, "1 Navy Way", c.WorkAddress)
	assert.Equal(t, "Arlington", c.WorkCity)
	assert.Equal(t, "VA", c.WorkState)
	assert.Equal(t, "22202", c.WorkZipcode)
	assert.Equal(t, "USA", c.WorkCountry)
	assert.Equal(t, "Rear Admiral", c.JobTitle)
	assert.Equal(t, "US Navy", c.Organization)
	assert.Equal(t, "Computing", c.Department)
	assert.Equal(t, "gh-1", c.UID)
	assert.Empty(t, c.HomeAddress)
}

func TestDecodeContact_Empty(t *testing.T) {
	c := DecodeContact("").Contact()
	assert.Equal(t, models.Contact{}, c)
}
