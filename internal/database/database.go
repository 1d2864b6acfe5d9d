package database

import (
	"fmt"
	"time"

	"github.com/bkk513/misspelling-platform/internal/config"
	"github.com/bkk513/misspelling-platform/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池默认配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// Connect 连接数据库
// driver 为 sqlite 时使用 DBName 作为文件路径(测试和本地开发),
// 否则连接 PostgreSQL
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if cfg.Driver == "sqlite" {
		dialector = sqlite.Open(cfg.DBName)
	} else {
		dialector = postgres.Open(BuildDSN(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	poolConfig := GetPoolConfig()
	if cfg.MaxIdleConns > 0 {
		poolConfig.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.ConnMaxIdleTime = cfg.ConnMaxIdleTime
	}

	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectWithRetry 带重试的数据库连接
// 初始间隔 interval,指数退避
func ConnectWithRetry(cfg config.DatabaseConfig, retries int, interval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error
	wait := interval
	for i := 0; i <= retries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}
		if i < retries {
			time.Sleep(wait)
			wait *= 2
		}
	}
	return nil, fmt.Errorf("failed to connect database after %d retries: %w", retries, err)
}

// Migrate 执行数据库迁移
// 唯一约束通过模型标签的 uniqueIndex 建立,覆盖
// (canonical, language)、(term_id, variant)、(series_id, t) 与任务主键
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.TaskModel{},
		&model.TermModel{},
		&model.VariantModel{},
		&model.LexiconVersionModel{},
		&model.DataSourceModel{},
		&model.SeriesModel{},
		&model.SeriesPointModel{},
		&model.TaskEventModel{},
		&model.AuditLogModel{},
		&model.ArtifactModel{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}
