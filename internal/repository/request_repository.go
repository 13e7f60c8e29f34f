package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
)

// EmergencyRequestModel is the GORM model for the emergency_requests table.
type EmergencyRequestModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RequestNumber string     `gorm:"uniqueIndex;not null;size:20"`
	Type          string     `gorm:"not null;size:20;index"`
	Latitude      float64    `gorm:"not null"`
	Longitude     float64    `gorm:"not null"`
	Address       string     `gorm:"size:500"`
	Description   string     `gorm:"size:2000;not null"`
	Status        string     `gorm:"not null;size:20;index"`
	StationID     string     `gorm:"size:64;index"`
	CancelNote    string     `gorm:"size:500"`
	DispatchedAt  *time.Time `gorm:""`
	ResolvedAt    *time.Time `gorm:""`
	CancelledAt   *time.Time `gorm:""`
	Version       int64      `gorm:"not null;default:1"`
	CreatedAt     time.Time  `gorm:"not null;index"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (EmergencyRequestModel) TableName() string {
	return "emergency_requests"
}

// GormRequestRepository is the GORM-based implementation of RequestRepository.
type GormRequestRepository struct {
	db *gorm.DB
}

// NewGormRequestRepository creates a new GormRequestRepository.
func NewGormRequestRepository(db *gorm.DB) *GormRequestRepository {
	return &GormRequestRepository{db: db}
}

// FindByID retrieves a request by its unique identifier.
func (r *GormRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*emergency.Request, error) {
	var model EmergencyRequestModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("EmergencyRequest", id.String())
		}
		return nil, fmt.Errorf("failed to find emergency request by ID: %w", err)
	}
	return toDomainRequest(&model)
}

// List retrieves requests newest first. An empty status lists every request.
func (r *GormRequestRepository) List(ctx context.Context, status emergency.RequestStatus, page, limit int) ([]*emergency.Request, int64, error) {
	query := r.db.WithContext(ctx).Model(&EmergencyRequestModel{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count emergency requests: %w", err)
	}

	var models []EmergencyRequestModel
	offset := (page - 1) * limit
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list emergency requests: %w", err)
	}

	requests := make([]*emergency.Request, len(models))
	for i := range models {
		req, err := toDomainRequest(&models[i])
		if err != nil {
			return nil, 0, err
		}
		requests[i] = req
	}
	return requests, total, nil
}

// Save persists a new request.
func (r *GormRequestRepository) Save(ctx context.Context, req *emergency.Request) error {
	if err := r.db.WithContext(ctx).Create(toRequestModel(req)).Error; err != nil {
		return fmt.Errorf("failed to save emergency request: %w", err)
	}
	return nil
}

// Update persists changes to an existing request with optimistic locking.
// The caller has already called IncrementVersion.
func (r *GormRequestRepository) Update(ctx context.Context, req *emergency.Request) error {
	model := toRequestModel(req)

	expectedVersion := req.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&EmergencyRequestModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":        model.Status,
			"station_id":    model.StationID,
			"cancel_note":   model.CancelNote,
			"dispatched_at": model.DispatchedAt,
			"resolved_at":   model.ResolvedAt,
			"cancelled_at":  model.CancelledAt,
			"version":       model.Version,
			"updated_at":    model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update emergency request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("emergency request was modified by another transaction")
	}
	return nil
}

// CountByStatus returns request counts grouped by status.
func (r *GormRequestRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&EmergencyRequestModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// --- Conversion Helpers ---

func toRequestModel(req *emergency.Request) *EmergencyRequestModel {
	loc := req.Location()
	return &EmergencyRequestModel{
		ID:            req.ID(),
		RequestNumber: req.RequestNumber(),
		Type:          string(req.Type()),
		Latitude:      loc.Latitude,
		Longitude:     loc.Longitude,
		Address:       req.Address(),
		Description:   req.Description(),
		Status:        string(req.Status()),
		StationID:     req.StationID(),
		CancelNote:    req.CancelNote(),
		DispatchedAt:  req.DispatchedAt(),
		ResolvedAt:    req.ResolvedAt(),
		CancelledAt:   req.CancelledAt(),
		Version:       req.Version(),
		CreatedAt:     req.CreatedAt(),
		UpdatedAt:     req.UpdatedAt(),
	}
}

func toDomainRequest(m *EmergencyRequestModel) (*emergency.Request, error) {
	t, err := emergency.ParseType(m.Type)
	if err != nil {
		return nil, fmt.Errorf("stored request %s: %w", m.ID, err)
	}
	status, err := emergency.ParseRequestStatus(m.Status)
	if err != nil {
		return nil, fmt.Errorf("stored request %s: %w", m.ID, err)
	}

	return emergency.ReconstructRequest(
		m.ID,
		m.RequestNumber,
		t,
		location.Point{Latitude: m.Latitude, Longitude: m.Longitude},
		m.Address,
		m.Description,
		status,
		m.StationID,
		m.CancelNote,
		m.DispatchedAt,
		m.ResolvedAt,
		m.CancelledAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
