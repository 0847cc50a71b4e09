package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	apperrors "github.com/agrigpt/backend/pkg/errors"
)

func TestCreateReport(t *testing.T) {
	db := openTestDB(t)
	generator := &staticGenerator{payload: datatypes.JSON(`{"soil":"loamy"}`)}
	svc, err := NewReportService(db, generator)
	require.NoError(t, err)
	ctx := context.Background()

	account := createAccount(t, db, "farmer@example.com", "secret1")

	report, err := svc.Create(ctx, account.ID, ReportRequest{
		CropName: " wheat ",
		Region:   "Punjab",
		Language: "en",
	})
	require.NoError(t, err)
	require.Equal(t, "wheat", report.CropName)
	require.JSONEq(t, `{"soil":"loamy"}`, string(report.Payload))

	fetched, err := svc.Get(ctx, account.ID, report.ID)
	require.NoError(t, err)
	require.Equal(t, report.ID, fetched.ID)
}

func TestCreateReportValidation(t *testing.T) {
	db := openTestDB(t)
	svc, err := NewReportService(db, &staticGenerator{payload: datatypes.JSON(`{}`)})
	require.NoError(t, err)

	account := createAccount(t, db, "farmer@example.com", "secret1")

	_, err = svc.Create(context.Background(), account.ID, ReportRequest{CropName: "wheat"})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 400, appErr.StatusCode)
}

func TestCreateReportGeneratorFailure(t *testing.T) {
	db := openTestDB(t)
	svc, err := NewReportService(db, &staticGenerator{err: errors.New("generator down")})
	require.NoError(t, err)

	account := createAccount(t, db, "farmer@example.com", "secret1")

	_, err = svc.Create(context.Background(), account.ID, ReportRequest{CropName: "wheat", Region: "Punjab"})
	require.Error(t, err)

	reports, listErr := svc.List(context.Background(), account.ID)
	require.NoError(t, listErr)
	require.Empty(t, reports)
}

func TestReportOwnership(t *testing.T) {
	db := openTestDB(t)
	svc, err := NewReportService(db, &staticGenerator{payload: datatypes.JSON(`{}`)})
	require.NoError(t, err)
	ctx := context.Background()

	owner := createAccount(t, db, "owner@example.com", "secret1")
	other := createAccount(t, db, "other@example.com", "secret1")

	report, err := svc.Create(ctx, owner.ID, ReportRequest{CropName: "wheat", Region: "Punjab"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, other.ID, report.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	err = svc.Delete(ctx, other.ID, report.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, owner.ID, report.ID))

	reports, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Empty(t, reports)
}
