package entitlement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alintentu/farmer-app/internal/model"
)

// UsageStore tracks resource consumption per tenant and service.
// TryConsume performs the limit check and the increment as a single
// conditional UPDATE, so concurrent requests cannot overshoot. Release
// hands units back when the operation that consumed them falls through.
type UsageStore interface {
	TryConsume(ctx context.Context, tenantID uuid.UUID, service, resource string, delta, limit int64) (bool, error)
	Release(ctx context.Context, tenantID uuid.UUID, service, resource string, delta int64) error
	Usage(ctx context.Context, tenantID uuid.UUID, service string) (map[string]int64, error)
}

// GormUsageStore is the database-backed UsageStore.
type GormUsageStore struct {
	db *gorm.DB
}

func NewGormUsageStore(db *gorm.DB) *GormUsageStore {
	return &GormUsageStore{db: db}
}

// TryConsume atomically increments the counter if the result stays
// within the limit. Returns false without modifying anything when the
// increment would exceed the ceiling.
func (s *GormUsageStore) TryConsume(ctx context.Context, tenantID uuid.UUID, service, resource string, delta, limit int64) (bool, error) {
	// Make sure the counter row exists; the increment below relies on it.
	counter := model.UsageCounter{TenantID: tenantID, Service: service, Resource: resource}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&counter).Error; err != nil {
		return false, err
	}

	res := s.db.WithContext(ctx).Exec(
		`UPDATE usage_counters
		 SET used = used + ?, updated_at = NOW()
		 WHERE tenant_id = ? AND service = ? AND resource = ?
		   AND (?::bigint = -1 OR used + ? <= ?)`,
		delta, tenantID, service, resource, limit, delta, limit,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release decrements the counter, flooring at zero.
func (s *GormUsageStore) Release(ctx context.Context, tenantID uuid.UUID, service, resource string, delta int64) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE usage_counters
		 SET used = GREATEST(used - ?, 0), updated_at = NOW()
		 WHERE tenant_id = ? AND service = ? AND resource = ?`,
		delta, tenantID, service, resource,
	).Error
}

// Usage returns the current counters for a tenant within one service.
func (s *GormUsageStore) Usage(ctx context.Context, tenantID uuid.UUID, service string) (map[string]int64, error) {
	var counters []model.UsageCounter
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND service = ?", tenantID, service).
		Find(&counters).Error; err != nil {
		return nil, err
	}

	usage := make(map[string]int64, len(counters))
	for _, c := range counters {
		usage[c.Resource] = c.Used
	}
	return usage, nil
}
