package services

import (
	"context"
	"errors"
	"testing"

	"taskify/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSearch(t *testing.T) (*SearchServiceImpl, *syncEnv) {
	t.Helper()
	env := newSyncEnv(t)
	require.NoError(t, env.db.Create(&[]models.Task{
		{UserID: env.user.ID, Title: "Quarterly Report", Status: models.StatusPending, CaldavUID: "t1"},
		{UserID: env.user.ID, Title: "Lunch", Description: "report back to Bob", Status: models.StatusPending, CaldavUID: "t2"},
		{UserID: env.user.ID, Title: "100% done", Status: models.StatusCompleted, CaldavUID: "t3"},
		{UserID: env.user.ID + 1, Title: "Someone else's report", Status: models.StatusPending, CaldavUID: "t4"},
	}).Error)
	require.NoError(t, env.db.Create(&[]models.Contact{
		{DisplayName: "Report Desk", VCFURL: "c1"},
		{DisplayName: "Bob", Organization: "Acme", VCFURL: "c2"},
	}).Error)
	return NewSearchService(), env
}

func TestSearch_BothKinds(t *testing.T) {
	svc, env := seedSearch(t)

	result, err := svc.Search(context.Background(), env.db, env.user.ID, "  REPORT ", "")
	require.NoError(t, err)

	assert.Equal(t, "REPORT", result.Query)
	assert.Len(t, result.Tasks, 2)
	require.Len(t, result.Contacts, 1)
	assert.Equal(t, "Report Desk", result.Contacts[0].DisplayName)
}

func TestSearch_SingleKind(t *testing.T) {
	svc, env := seedSearch(t)

	result, err := svc.Search(context.Background(), env.db, env.user.ID, "acme", SearchContacts)
	require.NoError(t, err)
	assert.Nil(t, result.Tasks)
	assert.Len(t, result.Contacts, 1)
}

func TestSearch_WildcardsAreLiteral(t *testing.T) {
	svc, env := seedSearch(t)

	result, err := svc.Search(context.Background(), env.db, env.user.ID, "%", SearchTasks)
	require.NoError(t, err)
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, "100% done", result.Tasks[0].Title)
}

func TestSearch_Validation(t *testing.T) {
	svc, env := seedSearch(t)
	var validation *ValidationError

	_, err := svc.Search(context.Background(), env.db, env.user.ID, " ", "")
	assert.True(t, errors.As(err, &validation))

	_, err = svc.Search(context.Background(), env.db, env.user.ID, "x", "users")
	assert.True(t, errors.As(err, &validation))
	assert.Equal(t, "type", validation.Field)
}
