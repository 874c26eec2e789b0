package db

import (
	"livepoll/internal/logger"
	"livepoll/internal/models"

	"emperror.dev/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 连接 PostgreSQL 并迁移表结构
func Open(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.WrapIf(err, "failed to connect to database")
	}
	logger.For("db").Info("Database connection established")

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Migrate 创建或更新流水线用到的所有表
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.Session{},
		&models.Question{},
		&models.Option{},
		&models.Vote{},
		&models.VoteCount{},
	)
	if err != nil {
		return errors.WrapIf(err, "failed to migrate database")
	}
	logger.For("db").Info("Database migration completed")
	return nil
}
