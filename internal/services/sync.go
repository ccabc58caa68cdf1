package services

import (
	"log/slog"
	"time"

	"taskify/backend/internal/config"
	"taskify/backend/internal/dav"
	"taskify/backend/internal/monitoring"

	"github.com/gofrs/uuid"
)

// SyncDeps is what the task, contact and import services share.
type SyncDeps struct {
	Connector   dav.Connector
	Credentials *CredentialService
	DAV         config.DAVConfig
	Logger      *slog.Logger
	Metrics     *monitoring.SyncMetrics

	Now    func() time.Time
	NewUID func() (string, error)
}

func (d SyncDeps) withDefaults() SyncDeps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = monitoring.Sync()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewUID == nil {
		d.NewUID = newUID
	}
	return d
}

func newUID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
