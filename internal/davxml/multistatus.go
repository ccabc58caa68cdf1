// Package davxml reads WebDAV multistatus responses and builds the
// REPORT bodies used to fetch calendar and address book collections.
package davxml

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"taskify/backend/internal/mapper"

	"github.com/beevik/etree"
)

const (
	CalendarData = "calendar-data"
	AddressData  = "address-data"
)

// Resource is one response element of a multistatus body.
type Resource struct {
	Href string
	ETag string
	Data string
}

// ParseError reports a multistatus body that could not be read. The
// whole fetch is abandoned when it occurs.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("multistatus: %s: %v", e.Reason, e.Err)
	}
	return "multistatus: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse returns one Resource per response element. dataTag names the
// property holding the payload (CalendarData or AddressData). Relative
// hrefs are resolved against base when base is non-nil.
func Parse(body []byte, base *url.URL, dataTag string) ([]Resource, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, &ParseError{Reason: "malformed xml", Err: err}
	}

	root := doc.Root()
	if root == nil {
		return nil, &ParseError{Reason: "empty document"}
	}
	if root.Tag != "multistatus" {
		return nil, &ParseError{Reason: fmt.Sprintf("unexpected root element %q", root.Tag)}
	}

	responses := root.SelectElements("response")
	resources := make([]Resource, 0, len(responses))
	for i, resp := range responses {
		hrefElem := resp.SelectElement("href")
		if hrefElem == nil {
			return nil, &ParseError{Reason: fmt.Sprintf("response %d: missing href", i)}
		}
		href, err := resolve(base, strings.TrimSpace(hrefElem.Text()))
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("response %d: bad href", i), Err: err}
		}

		propstats := resp.SelectElements("propstat")
		if len(propstats) == 0 {
			return nil, &ParseError{Reason: fmt.Sprintf("response %d (%s): missing propstat", i, href)}
		}

		res, ok := readPropstats(propstats, dataTag)
		if !ok {
			return nil, &ParseError{Reason: fmt.Sprintf("response %d (%s): missing prop/%s", i, href, dataTag)}
		}
		res.Href = href
		resources = append(resources, res)
	}

	return resources, nil
}

// readPropstats returns the first 2xx propstat carrying dataTag. A
// propstat without a status element counts as 2xx.
func readPropstats(propstats []*etree.Element, dataTag string) (Resource, bool) {
	for _, ps := range propstats {
		if !successful(ps.SelectElement("status")) {
			continue
		}
		prop := ps.SelectElement("prop")
		if prop == nil {
			continue
		}
		data := prop.SelectElement(dataTag)
		if data == nil {
			continue
		}
		res := Resource{Data: data.Text()}
		if etag := prop.SelectElement("getetag"); etag != nil {
			res.ETag = strings.Trim(strings.TrimSpace(etag.Text()), `"`)
		}
		return res, true
	}
	return Resource{}, false
}

// successful reads a status line such as "HTTP/1.1 200 OK".
func successful(status *etree.Element) bool {
	if status == nil {
		return true
	}
	fields := strings.Fields(status.Text())
	if len(fields) < 2 {
		return false
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return false
	}
	return code >= 200 && code < 300
}

func resolve(base *url.URL, href string) (string, error) {
	if base == nil {
		return href, nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

type TaskEntry struct {
	Href   string
	Fields mapper.TaskFields
}

// ParseTasks parses a calendar-query response and decodes each event.
func ParseTasks(body []byte, base *url.URL) ([]TaskEntry, error) {
	resources, err := Parse(body, base, CalendarData)
	if err != nil {
		return nil, err
	}
	entries := make([]TaskEntry, 0, len(resources))
	for _, r := range resources {
		entries = append(entries, TaskEntry{Href: r.Href, Fields: mapper.DecodeTask(r.Data)})
	}
	return entries, nil
}

// ContactEntry carries the absolute vcf_url of the card.
type ContactEntry struct {
	VCFURL string
	Fields mapper.ContactFields
}

// ParseContacts parses an addressbook-query response and decodes each
// card.
func ParseContacts(body []byte, base *url.URL) ([]ContactEntry, error) {
	resources, err := Parse(body, base, AddressData)
	if err != nil {
		return nil, err
	}
	entries := make([]ContactEntry, 0, len(resources))
	for _, r := range resources {
		entries = append(entries, ContactEntry{VCFURL: r.Href, Fields: mapper.DecodeContact(r.Data)})
	}
	return entries, nil
}
