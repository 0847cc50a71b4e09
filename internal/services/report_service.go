package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/models"
	apperrors "github.com/agrigpt/backend/pkg/errors"
	"github.com/agrigpt/backend/pkg/logger"
)

// ReportRequest describes the report to generate.
type ReportRequest struct {
	CropName string
	Region   string
	Language string
}

// Generator produces report content for a crop and region. The content
// generation integration lives behind this interface.
type Generator interface {
	Generate(ctx context.Context, req ReportRequest) (datatypes.JSON, error)
}

// ReportService creates and serves stored farming reports.
type ReportService struct {
	db        *gorm.DB
	generator Generator
	log       *zap.Logger
}

// NewReportService constructs a ReportService instance.
func NewReportService(db *gorm.DB, generator Generator) (*ReportService, error) {
	if db == nil {
		return nil, errors.New("report service: db is required")
	}
	if generator == nil {
		return nil, errors.New("report service: generator is required")
	}
	return &ReportService{
		db:        db,
		generator: generator,
		log:       logger.WithModule("services.report"),
	}, nil
}

// Create generates and stores a report for the account.
func (s *ReportService) Create(ctx context.Context, accountID string, req ReportRequest) (*models.Report, error) {
	ctx = ensureContext(ctx)

	req.CropName = strings.TrimSpace(req.CropName)
	req.Region = strings.TrimSpace(req.Region)
	if req.CropName == "" || req.Region == "" {
		return nil, apperrors.NewBadRequest("Crop name and region are required")
	}

	payload, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.log.Error("report generation failed",
			zap.String("crop", req.CropName),
			zap.String("region", req.Region),
			zap.Error(err))
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	report := &models.Report{
		AccountID: accountID,
		CropName:  req.CropName,
		Region:    req.Region,
		Language:  req.Language,
		Payload:   payload,
	}
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	return report, nil
}

// List returns the account's reports, newest first.
func (s *ReportService) List(ctx context.Context, accountID string) ([]models.Report, error) {
	ctx = ensureContext(ctx)

	var reports []models.Report
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&reports).Error
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return reports, nil
}

// Get fetches one owned report.
func (s *ReportService) Get(ctx context.Context, accountID, reportID string) (*models.Report, error) {
	ctx = ensureContext(ctx)

	var report models.Report
	err := s.db.WithContext(ctx).
		Take(&report, "id = ? AND account_id = ?", reportID, accountID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return &report, nil
}

// Delete removes one owned report.
func (s *ReportService) Delete(ctx context.Context, accountID, reportID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", reportID, accountID).
		Delete(&models.Report{})
	if result.Error != nil {
		return apperrors.ErrInternalServer.WithInternal(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
