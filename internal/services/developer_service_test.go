package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/agrigpt/backend/pkg/errors"
)

func TestGrantAndRevokeDeveloper(t *testing.T) {
	db := openTestDB(t)
	svc, err := NewDeveloperService(db)
	require.NoError(t, err)
	ctx := context.Background()

	account := createAccount(t, db, "dev@example.com", "secret1")

	granted, err := svc.IsDeveloper(ctx, account.ID)
	require.NoError(t, err)
	require.False(t, granted)

	grant, err := svc.GrantByEmail(ctx, "Dev@Example.com")
	require.NoError(t, err)
	require.Equal(t, account.ID, grant.AccountID)

	granted, err = svc.IsDeveloper(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, granted)

	// Granting twice stays a single grant.
	_, err = svc.GrantByEmail(ctx, "dev@example.com")
	require.NoError(t, err)

	grants, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, grants, 1)

	require.NoError(t, svc.RevokeByEmail(ctx, "dev@example.com"))

	granted, err = svc.IsDeveloper(ctx, account.ID)
	require.NoError(t, err)
	require.False(t, granted)
}

func TestGrantUnknownEmail(t *testing.T) {
	db := openTestDB(t)
	svc, err := NewDeveloperService(db)
	require.NoError(t, err)

	_, err = svc.GrantByEmail(context.Background(), "stranger@example.com")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRevokeWithoutGrant(t *testing.T) {
	db := openTestDB(t)
	svc, err := NewDeveloperService(db)
	require.NoError(t, err)

	createAccount(t, db, "dev@example.com", "secret1")

	err = svc.RevokeByEmail(context.Background(), "dev@example.com")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFeedbackSubmitAndList(t *testing.T) {
	db := openTestDB(t)
	svc, err := NewFeedbackService(db)
	require.NoError(t, err)
	ctx := context.Background()

	account := createAccount(t, db, "farmer@example.com", "secret1")

	_, err = svc.Submit(ctx, account.ID, FeedbackInput{
		Name:    "Farmer",
		Email:   "Farmer@Example.com",
		Message: "Very helpful",
	})
	require.NoError(t, err)

	// Anonymous submission is allowed.
	anon, err := svc.Submit(ctx, "", FeedbackInput{Name: "Visitor", Message: "Nice"})
	require.NoError(t, err)
	require.Nil(t, anon.AccountID)

	entries, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	_, err = svc.Submit(ctx, "", FeedbackInput{Name: "", Message: ""})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 400, appErr.StatusCode)
}
