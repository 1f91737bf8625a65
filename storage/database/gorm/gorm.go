// Package gormrepos implements the calendar and notification repositories on top of gorm.
package gormrepos

import (
	"database/sql"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open wraps an already opened postgres connection pool.
func Open(db *sql.DB) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening gorm")
	}
	return gdb, nil
}

// Models lists the gorm models of the package, for AutoMigrate in tests.
func Models() []interface{} {
	return []interface{}{
		&categoryModel{}, &eventModel{}, &reminderModel{}, &settingsModel{},
		&notificationModel{}, &announcementModel{},
	}
}

func nullable(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
