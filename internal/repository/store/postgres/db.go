package postgres

import (
	"time"

	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectAttempts = 10

// Connect opens the database, retrying while the server comes up.
func Connect(dsn string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < connectAttempts; i++ {
		db, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		if err == nil {
			sqlDB, dbErr := db.DB()
			if dbErr == nil {
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetMaxOpenConns(20)
				sqlDB.SetConnMaxLifetime(time.Hour)
				return db, nil
			}
			err = dbErr
		}
		time.Sleep(time.Duration(500+i*200) * time.Millisecond)
	}

	return nil, err
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&userRow{}, &movieRow{}, &accessCodeRow{})
}
