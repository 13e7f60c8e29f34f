package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/station"
)

// StationModel is the GORM model for the stations table.
type StationModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"not null;size:200"`
	Type      string    `gorm:"not null;size:20;index"`
	Latitude  float64   `gorm:"not null"`
	Longitude float64   `gorm:"not null"`
	Address   string    `gorm:"size:500"`
	Contact   string    `gorm:"size:50"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (StationModel) TableName() string { return "stations" }

// GormStationRepository is a station.Store backed by postgres.
type GormStationRepository struct {
	db *gorm.DB
}

// NewGormStationRepository creates a new GormStationRepository.
func NewGormStationRepository(db *gorm.DB) *GormStationRepository {
	return &GormStationRepository{db: db}
}

// Fetch returns every station in insertion order. Records are passed through
// as stored; the directory loader validates them.
func (r *GormStationRepository) Fetch(ctx context.Context) ([]station.RawStation, error) {
	var models []StationModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch stations: %w", err)
	}

	raw := make([]station.RawStation, len(models))
	for i := range models {
		raw[i] = toRawStation(&models[i])
	}
	return raw, nil
}

// Upsert inserts a station or updates the existing row with the same id.
func (r *GormStationRepository) Upsert(ctx context.Context, s station.Station) error {
	model := toStationModel(s)
	now := time.Now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "type", "latitude", "longitude", "address", "contact", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert station: %w", err)
	}
	return nil
}

// Delete removes a station by id.
func (r *GormStationRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&StationModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete station: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Station", id)
	}
	return nil
}

// Count returns the number of stored stations.
func (r *GormStationRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&StationModel{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count stations: %w", err)
	}
	return total, nil
}

// Seed inserts stations in order inside one transaction. Existing ids are
// left untouched.
func (r *GormStationRepository) Seed(ctx context.Context, stations []station.Station) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		base := time.Now().UTC()
		for i, s := range stations {
			model := toStationModel(s)
			// Distinct timestamps keep the catalog order on Fetch.
			model.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
			model.UpdatedAt = model.CreatedAt
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(model).Error; err != nil {
				return fmt.Errorf("failed to seed station %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

// --- Conversion Helpers ---

func toStationModel(s station.Station) *StationModel {
	return &StationModel{
		ID:        s.ID,
		Name:      s.Name,
		Type:      string(s.Type),
		Latitude:  s.Location.Latitude,
		Longitude: s.Location.Longitude,
		Address:   s.Address,
		Contact:   s.Contact,
	}
}

func toRawStation(m *StationModel) station.RawStation {
	lat, lng := m.Latitude, m.Longitude
	return station.RawStation{
		ID:      m.ID,
		Name:    m.Name,
		Type:    m.Type,
		Lat:     &lat,
		Lng:     &lng,
		Address: m.Address,
		Contact: m.Contact,
	}
}
