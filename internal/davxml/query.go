package davxml

import (
	"github.com/beevik/etree"
)

const (
	nsDAV     = "DAV:"
	nsCalDAV  = "urn:ietf:params:xml:ns:caldav"
	nsCardDAV = "urn:ietf:params:xml:ns:carddav"
)

// CalendarQuery is the REPORT body listing every VEVENT with its etag
// and calendar data.
func CalendarQuery() []byte {
	doc := newDocument()
	query := doc.CreateElement("c:calendar-query")
	query.CreateAttr("xmlns:d", nsDAV)
	query.CreateAttr("xmlns:c", nsCalDAV)

	prop := query.CreateElement("d:prop")
	prop.CreateElement("d:getetag")
	prop.CreateElement("c:calendar-data")

	filter := query.CreateElement("c:filter")
	calendar := filter.CreateElement("c:comp-filter")
	calendar.CreateAttr("name", "VCALENDAR")
	event := calendar.CreateElement("c:comp-filter")
	event.CreateAttr("name", "VEVENT")

	return write(doc)
}

// AddressBookQuery is the REPORT body listing every card's address data.
func AddressBookQuery() []byte {
	doc := newDocument()
	query := doc.CreateElement("c:addressbook-query")
	query.CreateAttr("xmlns:d", nsDAV)
	query.CreateAttr("xmlns:c", nsCardDAV)

	prop := query.CreateElement("d:prop")
	prop.CreateElement("d:getetag")
	prop.CreateElement("c:address-data")

	return write(doc)
}

func newDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	return doc
}

func write(doc *etree.Document) []byte {
	doc.Indent(2)
	b, _ := doc.WriteToBytes()
	return b
}
