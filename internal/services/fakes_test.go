package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"taskify/backend/internal/config"
	"taskify/backend/internal/crypto"
	"taskify/backend/internal/dav"
	"taskify/backend/internal/models"
	"taskify/backend/internal/monitoring"
	"taskify/backend/internal/repositories"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type davRequest struct {
	Method   string
	Path     string
	Body     string
	Username string
	Password string
	Depth    string
}

// fakeDAV records every request. PUT stores the body, DELETE removes it,
// REPORT answers with report. A non-zero failPut/failDelete status makes
// that method fail with failBody.
type fakeDAV struct {
	mu         sync.Mutex
	requests   []davRequest
	resources  map[string]string
	report     string
	failPut    int
	failDelete int
	failReport int
	failBody   string
}

func newFakeDAV() *fakeDAV {
	return &fakeDAV{resources: make(map[string]string), failBody: "remote refused"}
}

func (f *fakeDAV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	user, pass, _ := r.BasicAuth()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, davRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		Body:     string(body),
		Username: user,
		Password: pass,
		Depth:    r.Header.Get("Depth"),
	})

	switch r.Method {
	case http.MethodPut:
		if f.failPut != 0 {
			http.Error(w, f.failBody, f.failPut)
			return
		}
		f.resources[r.URL.Path] = string(body)
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		if f.failDelete != 0 {
			http.Error(w, f.failBody, f.failDelete)
			return
		}
		delete(f.resources, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	case "REPORT":
		if f.failReport != 0 {
			http.Error(w, f.failBody, f.failReport)
			return
		}
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = io.WriteString(w, f.report)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeDAV) Requests() []davRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]davRequest(nil), f.requests...)
}

func (f *fakeDAV) methods() []string {
	var out []string
	for _, r := range f.Requests() {
		out = append(out, r.Method+" "+r.Path)
	}
	return out
}

func (f *fakeDAV) resource(path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.resources[path]
	return body, ok
}

func (f *fakeDAV) setReport(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.report = body
}

type syncEnv struct {
	db      *gorm.DB
	dav     *fakeDAV
	server  *httptest.Server
	creds   *CredentialService
	user    models.User
	deps    SyncDeps
	metrics *monitoring.SyncMetrics
}

var fixedNow = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, repositories.AutoMigrate(db))
	return db
}

// sequentialUIDs returns uid-1, uid-2, ...
func sequentialUIDs() func() (string, error) {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("uid-%d", n), nil
	}
}

func newSyncEnv(t *testing.T) *syncEnv {
	t.Helper()

	fake := newFakeDAV()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	db := openTestDB(t)

	encryptor, err := crypto.NewEncryptor("test-credentials-key")
	require.NoError(t, err)
	creds := NewCredentialService(encryptor)

	user := models.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, db.Create(&user).Error)
	_, err = creds.Setup(context.Background(), db, user.ID, DAVSetupInput{
		URL:      server.URL + "/",
		Username: "alice",
		Password: "s3cret",
	})
	require.NoError(t, err)

	metrics := monitoring.NewSyncMetrics()
	return &syncEnv{
		db:      db,
		dav:     fake,
		server:  server,
		creds:   creds,
		user:    user,
		metrics: metrics,
		deps: SyncDeps{
			Connector:   dav.NewDialer(dav.Options{ReportTimeout: 5 * time.Second}),
			Credentials: creds,
			DAV: config.DAVConfig{
				AddressBookURL: server.URL + "/addressbooks/alice/contacts/",
			},
			Metrics: metrics,
			Now:     func() time.Time { return fixedNow },
			NewUID:  sequentialUIDs(),
		},
	}
}

func (e *syncEnv) addressBookPath(name string) string {
	return "/addressbooks/alice/contacts/" + name
}

func multistatus(dataTag string, entries map[string]string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav" xmlns:card="urn:ietf:params:xml:ns:carddav">`)
	for href, data := range entries {
		fmt.Fprintf(&b, `<d:response><d:href>%s</d:href><d:propstat><d:prop><d:getetag>"1"</d:getetag><%s>%s</%s></d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat></d:response>`,
			href, dataTag, data, dataTag)
	}
	b.WriteString(`</d:multistatus>`)
	return b.String()
}
