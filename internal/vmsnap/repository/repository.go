// Package repository 提供轮次历史的持久化层实现
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // 纯 Go SQLite 驱动，不需要 CGO

	"github.com/jimyag/vmsnap/internal/vmsnap/repository/model"
)

// Repository 数据库仓库
type Repository struct {
	db *gorm.DB
}

// New 创建新的 Repository 实例
func New(dbPath string) (*Repository, error) {
	// 确保数据库目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// 连接数据库（使用纯 Go SQLite 驱动，不需要 CGO）
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// 使用 GORM 的 Dialector 包装已创建的 sql.DB 连接
	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dbPath,
		Conn:       sqlDB,
	}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	// 自动迁移
	if err := db.AutoMigrate(&model.Round{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Repository{db: db}, nil
}

// DB 返回 GORM 数据库实例
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// WithContext 返回带上下文的数据库实例
func (r *Repository) WithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// Close 关闭数据库连接
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}
