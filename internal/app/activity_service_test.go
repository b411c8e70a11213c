package app_test

import (
	"context"
	"testing"
	"time"

	"focusblock/internal/adapter/memory"
	"focusblock/internal/app"
	"focusblock/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedActivity(t *testing.T, db *memory.DB) {
	t.Helper()
	base := fixedClock()
	entries := []domain.ActivityEntry{
		{ID: "1", User: "alice", Action: domain.ActionCreateSession, ResourceID: "s1", Timestamp: base},
		{ID: "2", User: "alice", Action: domain.ActionStartSession, ResourceID: "s1", Timestamp: base.Add(time.Minute)},
		{ID: "3", User: "bob", Action: domain.ActionCreateSession, ResourceID: "s2", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, db.AppendActivity(context.Background(), e))
	}
}

func TestActivityList_ScopedToCaller(t *testing.T) {
	db := memory.New()
	seedActivity(t, db)
	svc := app.NewActivityService(db)

	page, err := svc.List(context.Background(), alice, app.ListActivityInput{User: "bob"})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "2", page.Data[0].ID)
	assert.Equal(t, "1", page.Data[1].ID)
}

func TestActivityList_AdminFilters(t *testing.T) {
	db := memory.New()
	seedActivity(t, db)
	svc := app.NewActivityService(db)
	ctx := context.Background()

	page, err := svc.List(ctx, admin, app.ListActivityInput{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.Equal(t, "3", page.Data[0].ID)

	page, err = svc.List(ctx, admin, app.ListActivityInput{Action: "CREATE_SESSION"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.Total)

	page, err = svc.List(ctx, admin, app.ListActivityInput{ResourceID: "s1", Limit: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.Total)
	assert.Len(t, page.Data, 1)
	assert.True(t, page.Pagination.HasNext)
}

func TestActivityList_Validation(t *testing.T) {
	svc := app.NewActivityService(memory.New())

	_, err := svc.List(context.Background(), alice, app.ListActivityInput{Action: "DELETE_EVERYTHING"})
	assert.ErrorIs(t, err, app.ErrValidation)

	_, err = svc.List(context.Background(), alice, app.ListActivityInput{Page: intPtr(0)})
	assert.ErrorIs(t, err, app.ErrValidation)

	_, err = svc.List(context.Background(), domain.Identity{}, app.ListActivityInput{})
	assert.ErrorIs(t, err, app.ErrUnauthorized)
}
