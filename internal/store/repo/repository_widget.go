package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/missuo/flux-panel/internal/store/model"
)

func (r *Repository) SaveServerURL(url string) error {
	return r.putValue(model.KeyServerURL, url, time.Now())
}

func (r *Repository) SaveAuthToken(token string) error {
	return r.putValue(model.KeyAuthToken, token, time.Now())
}

// ServerURL returns the saved server URL, or "" when none is saved.
func (r *Repository) ServerURL() (string, error) {
	return r.getValue(model.KeyServerURL)
}

func (r *Repository) AuthToken() (string, error) {
	return r.getValue(model.KeyAuthToken)
}

// SaveSnapshot stores s under a fresh revision and returns the stored copy.
// A zero LastUpdate is set to now.
func (r *Repository) SaveSnapshot(s model.WidgetSnapshot, now time.Time) (model.WidgetSnapshot, error) {
	if r == nil || r.db == nil {
		return model.WidgetSnapshot{}, ErrNotInitialized
	}
	if s.LastUpdate.IsZero() {
		s.LastUpdate = now
	}
	s.Revision = uuid.NewString()
	raw, err := json.Marshal(s)
	if err != nil {
		return model.WidgetSnapshot{}, err
	}
	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := upsertValue(tx, model.KeySnapshot, string(raw), now); err != nil {
			return err
		}
		if s.ServerURL != "" {
			return upsertValue(tx, model.KeyServerURL, s.ServerURL, now)
		}
		return nil
	})
	if err != nil {
		return model.WidgetSnapshot{}, err
	}
	return s, nil
}

// LoadSnapshot returns the saved snapshot, or nil when none is saved.
func (r *Repository) LoadSnapshot() (*model.WidgetSnapshot, error) {
	raw, err := r.getValue(model.KeySnapshot)
	if err != nil || raw == "" {
		return nil, err
	}
	var s model.WidgetSnapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Clear removes every shared value, as on logout.
func (r *Repository) Clear() error {
	if r == nil || r.db == nil {
		return ErrNotInitialized
	}
	return r.db.Where("1 = 1").Delete(&model.SharedValue{}).Error
}

func (r *Repository) putValue(name, value string, now time.Time) error {
	if r == nil || r.db == nil {
		return ErrNotInitialized
	}
	return upsertValue(r.db, name, value, now)
}

func (r *Repository) getValue(name string) (string, error) {
	if r == nil || r.db == nil {
		return "", ErrNotInitialized
	}
	var v model.SharedValue
	err := r.db.Where("name = ?", name).First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return v.Value, nil
}

func upsertValue(db *gorm.DB, name, value string, now time.Time) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "time"}),
	}).Create(&model.SharedValue{Name: name, Value: value, Time: now.UnixMilli()}).Error
}
