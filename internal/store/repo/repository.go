package repo

import (
	"errors"
	"fmt"
	"strings"

	gsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/missuo/flux-panel/internal/store/model"
)

const currentSchemaVersion = 1

// ErrNotInitialized is returned by every method of a nil or closed
// Repository.
var ErrNotInitialized = errors.New("repository not initialized")

type Repository struct {
	db *gorm.DB
}

// Open opens, creating if needed, the SQLite store at path. ":memory:" is
// accepted for tests.
func Open(path string) (*Repository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	dsn := path
	if path != ":memory:" && !strings.Contains(path, "?") {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := gorm.Open(gsqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One writer; also keeps an in-memory database on a single connection.
	sqlDB.SetMaxOpenConns(1)
	return newRepository(db)
}

func OpenPostgres(dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	return newRepository(db)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
}

func newRepository(db *gorm.DB) (*Repository, error) {
	if err := migrateSchema(db); err != nil {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	r.db = nil
	return sqlDB.Close()
}

func migrateSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(model.Tables()...); err != nil {
		return err
	}

	var versions []model.SchemaVersion
	if err := db.Find(&versions).Error; err != nil {
		return err
	}

	// Tables created by another client may lack id defaults; repair on
	// every start, not only on upgrades.
	if err := ensurePostgresIDDefaultsFn(db); err != nil {
		return fmt.Errorf("repair id defaults: %w", err)
	}

	if len(versions) == 0 {
		return db.Create(&model.SchemaVersion{Version: currentSchemaVersion}).Error
	}
	if versions[0].Version < currentSchemaVersion {
		return db.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Model(&model.SchemaVersion{}).
			Update("version", currentSchemaVersion).Error
	}
	return nil
}

var ensurePostgresIDDefaultsFn = ensurePostgresIDDefaults

// ensurePostgresIDDefaults gives every id column a sequence default and
// moves the sequence past the highest existing id. No-op on other dialects.
func ensurePostgresIDDefaults(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, table := range []string{"shared_value", "usage_sample"} {
		seq := table + "_id_seq"
		stmts := []string{
			fmt.Sprintf(`CREATE SEQUENCE IF NOT EXISTS %s OWNED BY %s.id`, seq, table),
			fmt.Sprintf(`ALTER TABLE %s ALTER COLUMN id SET DEFAULT nextval('%s')`, table, seq),
			fmt.Sprintf(`SELECT setval('%s', COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)`, seq, table),
		}
		for _, stmt := range stmts {
			if err := db.Exec(stmt).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
