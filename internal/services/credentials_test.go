package services

import (
	"context"
	"errors"
	"testing"

	"taskify/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialService_SetupEncryptsPassword(t *testing.T) {
	env := newSyncEnv(t)

	var user models.User
	require.NoError(t, env.db.First(&user, env.user.ID).Error)
	assert.True(t, user.CaldavConfigured)
	assert.NotEmpty(t, user.CaldavPassword)
	assert.NotEqual(t, "s3cret", user.CaldavPassword)

	_, creds, err := env.creds.Calendar(context.Background(), env.db, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", creds.Username)
	assert.Equal(t, "s3cret", creds.Password)
}

func TestCredentialService_Status(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	status, err := env.creds.Status(ctx, env.db, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, DAVStatus{Configured: true, URL: env.server.URL + "/", Username: "alice"}, status)

	require.NoError(t, env.creds.Disconnect(ctx, env.db, env.user.ID))

	status, err = env.creds.Status(ctx, env.db, env.user.ID)
	require.NoError(t, err)
	assert.False(t, status.Configured)

	_, err = env.creds.AddressBook(ctx, env.db, env.user.ID)
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}

func TestCredentialService_SetupValidation(t *testing.T) {
	env := newSyncEnv(t)

	tests := []struct {
		name  string
		input DAVSetupInput
		field string
	}{
		{"missing url", DAVSetupInput{Username: "a", Password: "b"}, "caldav_url"},
		{"relative url", DAVSetupInput{URL: "dav.example.com", Username: "a", Password: "b"}, "caldav_url"},
		{"ftp url", DAVSetupInput{URL: "ftp://dav.example.com", Username: "a", Password: "b"}, "caldav_url"},
		{"missing username", DAVSetupInput{URL: "https://dav.example.com", Password: "b"}, "caldav_username"},
		{"missing password", DAVSetupInput{URL: "https://dav.example.com", Username: "a"}, "caldav_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.creds.Setup(context.Background(), env.db, env.user.ID, tt.input)

			var validation *ValidationError
			require.True(t, errors.As(err, &validation))
			assert.Equal(t, tt.field, validation.Field)
		})
	}
}

func TestCredentialService_UnknownUser(t *testing.T) {
	env := newSyncEnv(t)
	ctx := context.Background()

	_, err := env.creds.Setup(ctx, env.db, 999, DAVSetupInput{URL: "https://dav.example.com", Username: "a", Password: "b"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.creds.Status(ctx, env.db, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = env.creds.Calendar(ctx, env.db, 999)
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}

func TestResourceURLs(t *testing.T) {
	user := models.User{CaldavURL: "https://dav.example.com/", CaldavUsername: "bob"}

	assert.Equal(t, "https://dav.example.com/calendars/bob/default/", CalendarCollectionURL(user))
	assert.Equal(t, "https://dav.example.com/calendars/bob/default/abc.ics", TaskResourceURL(user, "abc"))
	assert.Equal(t, "https://dav.example.com/ab/abc.vcf", ContactResourceURL("https://dav.example.com/ab", "abc"))
	assert.Equal(t, "https://dav.example.com/ab/abc.vcf", ContactResourceURL("https://dav.example.com/ab/", "abc"))
}
