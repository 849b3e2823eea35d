// Package model defines the GORM tables of the local store. The same
// structs serve SQLite and PostgreSQL.
package model

// SharedValue is one named entry shared between the CLI and the widget
// renderer: the server URL, the session token and the encoded snapshot.
type SharedValue struct {
	ID    int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name  string `gorm:"type:varchar(200);not null;uniqueIndex" json:"name"`
	Value string `gorm:"type:text;not null" json:"value"`
	Time  int64  `gorm:"not null" json:"time"`
}

func (SharedValue) TableName() string { return "shared_value" }

// UsageSample is one hourly point of the account's cumulative usage, kept
// locally so usage can be charted without the panel.
type UsageSample struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Flow        int64  `gorm:"not null" json:"flow"`
	TotalFlow   int64  `gorm:"column:total_flow;not null" json:"totalFlow"`
	Time        string `gorm:"type:varchar(100);not null" json:"time"`
	CreatedTime int64  `gorm:"column:created_time;not null;index" json:"-"`
}

func (UsageSample) TableName() string { return "usage_sample" }

type SchemaVersion struct {
	Version int `gorm:"not null;default:0"`
}

func (SchemaVersion) TableName() string { return "schema_version" }

// Tables lists every table migrated by the repository, in creation order.
func Tables() []any {
	return []any{&SharedValue{}, &UsageSample{}, &SchemaVersion{}}
}
