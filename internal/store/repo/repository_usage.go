package repo

import (
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/missuo/flux-panel/internal/store/model"
)

// RecordUsage appends an hourly sample for the cumulative usage total. The
// sample's flow is the growth since the previous sample; a total that went
// down, as after a monthly reset, counts from zero.
func (r *Repository) RecordUsage(total int64, at time.Time) (model.UsageSample, error) {
	if r == nil || r.db == nil {
		return model.UsageSample{}, ErrNotInitialized
	}
	increment := total
	last, err := r.LastUsageTotal()
	if err != nil {
		return model.UsageSample{}, err
	}
	if last.Valid {
		increment = total - last.Int64
		if increment < 0 {
			increment = total
		}
	}
	hour := at.Truncate(time.Hour)
	s := model.UsageSample{
		Flow:        increment,
		TotalFlow:   total,
		Time:        hour.Format("15:04"),
		CreatedTime: hour.UnixMilli(),
	}
	if err := r.db.Create(&s).Error; err != nil {
		return model.UsageSample{}, err
	}
	return s, nil
}

func (r *Repository) LastUsageTotal() (sql.NullInt64, error) {
	if r == nil || r.db == nil {
		return sql.NullInt64{}, ErrNotInitialized
	}
	var s model.UsageSample
	err := r.db.Order("id DESC").First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return sql.NullInt64{}, nil
		}
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: s.TotalFlow, Valid: true}, nil
}

// ListUsageSince returns samples created at or after sinceMs, oldest first.
func (r *Repository) ListUsageSince(sinceMs int64) ([]model.UsageSample, error) {
	if r == nil || r.db == nil {
		return nil, ErrNotInitialized
	}
	var rows []model.UsageSample
	err := r.db.Where("created_time >= ?", sinceMs).Order("created_time ASC, id ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = make([]model.UsageSample, 0)
	}
	return rows, nil
}

func (r *Repository) PurgeUsageBefore(cutoffMs int64) (int64, error) {
	if r == nil || r.db == nil {
		return 0, ErrNotInitialized
	}
	res := r.db.Where("created_time < ?", cutoffMs).Delete(&model.UsageSample{})
	return res.RowsAffected, res.Error
}
