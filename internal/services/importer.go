package services

import (
	"context"
	"net/url"
	"sync/atomic"

	"taskify/backend/internal/dav"
	"taskify/backend/internal/davxml"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const StatusSynchronized = "synchronized"

type ImportResult struct {
	Status   string `json:"status"`
	Fetched  int    `json:"fetched"`
	Imported int    `json:"imported"`
	Failed   int    `json:"failed"`
}

// Importer pulls a whole remote collection with one REPORT and writes
// each entry locally. Entry failures are logged and counted; only a
// failed REPORT or an unparsable response fails the import.
type Importer struct {
	deps SyncDeps
}

func NewImporter(deps SyncDeps) *Importer {
	return &Importer{deps: deps.withDefaults()}
}

func (i *Importer) limit() int {
	if n := i.deps.DAV.ImportConcurrency; n > 0 {
		return n
	}
	return -1
}

// importCredentials returns the configured import account, if any.
func (i *Importer) importCredentials() (dav.Credentials, bool) {
	if i.deps.DAV.ImportUsername == "" {
		return dav.Credentials{}, false
	}
	return dav.Credentials{Username: i.deps.DAV.ImportUsername, Password: i.deps.DAV.ImportPassword}, true
}

func (i *Importer) calendarTarget(ctx context.Context, db *gorm.DB, userID uint) (string, dav.Credentials, error) {
	creds, configured := i.importCredentials()
	if configured && i.deps.DAV.CalendarURL != "" {
		return i.deps.DAV.CalendarURL, creds, nil
	}

	user, stored, err := i.deps.Credentials.Calendar(ctx, db, userID)
	if err != nil {
		return "", dav.Credentials{}, err
	}
	collection := i.deps.DAV.CalendarURL
	if collection == "" {
		collection = CalendarCollectionURL(user)
	}
	if !configured {
		creds = stored
	}
	return collection, creds, nil
}

func (i *Importer) addressBookTarget(ctx context.Context, db *gorm.DB, userID uint) (string, dav.Credentials, error) {
	if i.deps.DAV.AddressBookURL == "" {
		return "", dav.Credentials{}, ErrAddressBookMissing
	}
	if creds, ok := i.importCredentials(); ok {
		return i.deps.DAV.AddressBookURL, creds, nil
	}
	creds, err := i.deps.Credentials.AddressBook(ctx, db, userID)
	return i.deps.DAV.AddressBookURL, creds, err
}

func (i *Importer) fetch(ctx context.Context, collection string, creds dav.Credentials, query []byte) ([]byte, *url.URL, error) {
	base, err := url.Parse(collection)
	if err != nil {
		return nil, nil, err
	}
	body, err := i.deps.Connector.Connect(creds).Report(ctx, collection, query)
	if err != nil {
		return nil, nil, err
	}
	return body, base, nil
}

// ImportTasks upserts every event of the calendar keyed by the user and
// caldav_uid. Running it twice updates the rows written by the first run.
// Rows of other users with the same uid are left alone.
func (i *Importer) ImportTasks(ctx context.Context, db *gorm.DB, userID uint) (ImportResult, error) {
	collection, creds, err := i.calendarTarget(ctx, db, userID)
	if err != nil {
		return ImportResult{}, err
	}

	body, base, err := i.fetch(ctx, collection, creds, davxml.CalendarQuery())
	if err != nil {
		return ImportResult{}, err
	}
	entries, err := davxml.ParseTasks(body, base)
	if err != nil {
		return ImportResult{}, err
	}

	logger := i.deps.Logger.With("import", "tasks", "collection", collection)
	var imported, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(i.limit())
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			task := entry.Fields.Task()
			task.UserID = userID
			if task.CaldavUID == "" {
				failed.Add(1)
				logger.Warn("skipping event without UID", "href", entry.Href)
				return nil
			}

			err := db.WithContext(ctx).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "caldav_uid"}},
				DoUpdates: clause.AssignmentColumns([]string{"title", "description", "start_time", "end_time", "status", "location", "updated_at"}),
			}).Create(&task).Error
			if err != nil {
				failed.Add(1)
				logger.Error("failed to upsert task", "href", entry.Href, "uid", task.CaldavUID, "error", err)
				return nil
			}
			imported.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result := ImportResult{
		Status:   StatusSynchronized,
		Fetched:  len(entries),
		Imported: int(imported.Load()),
		Failed:   int(failed.Load()),
	}
	i.deps.Metrics.RecordImport("tasks", result.Imported, result.Failed)
	logger.Info("import finished", "fetched", result.Fetched, "imported", result.Imported, "failed", result.Failed)
	return result, nil
}

// ImportContacts inserts every card of the address book that is not yet
// present, keyed by vcf_url. A second run over an unchanged address book
// imports nothing.
func (i *Importer) ImportContacts(ctx context.Context, db *gorm.DB, userID uint) (ImportResult, error) {
	collection, creds, err := i.addressBookTarget(ctx, db, userID)
	if err != nil {
		return ImportResult{}, err
	}

	body, base, err := i.fetch(ctx, collection, creds, davxml.AddressBookQuery())
	if err != nil {
		return ImportResult{}, err
	}
	entries, err := davxml.ParseContacts(body, base)
	if err != nil {
		return ImportResult{}, err
	}

	logger := i.deps.Logger.With("import", "contacts", "collection", collection)
	var imported, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(i.limit())
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			contact := entry.Fields.Contact()
			contact.VCFURL = entry.VCFURL
			if contact.DisplayName == "" {
				contact.DisplayName = joinName(contact.FirstName, contact.LastName)
			}

			result := db.WithContext(ctx).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "vcf_url"}},
				DoNothing: true,
			}).Create(&contact)
			if result.Error != nil {
				failed.Add(1)
				logger.Error("failed to insert contact", "vcf_url", contact.VCFURL, "error", result.Error)
				return nil
			}
			if result.RowsAffected > 0 {
				imported.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := ImportResult{
		Status:   StatusSynchronized,
		Fetched:  len(entries),
		Imported: int(imported.Load()),
		Failed:   int(failed.Load()),
	}
	i.deps.Metrics.RecordImport("contacts", result.Imported, result.Failed)
	logger.Info("import finished", "fetched", result.Fetched, "imported", result.Imported, "failed", result.Failed)
	return result, nil
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}

// IsPartial reports whether some entries of a finished import failed.
func (r ImportResult) IsPartial() bool {
	return r.Failed > 0
}

