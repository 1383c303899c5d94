package mysql

import (
	"context"
	"fmt"
	"net"
	"time"

	"ordercore/config"
	"ordercore/infrastructure/persistence/mysql/po"
	"ordercore/pkg/logger"

	"github.com/glebarez/sqlite"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 10
	DefaultConnMaxLifetime = 10 * time.Minute
	DefaultConnMaxIdleTime = 5 * time.Minute
)

type Config struct {
	Host            string        `mapstructure:"host" json:"host"`
	Port            string        `mapstructure:"port" json:"port"`
	Username        string        `mapstructure:"username" json:"username"`
	Password        string        `mapstructure:"password" json:"password"`
	Database        string        `mapstructure:"database" json:"database"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" json:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level" json:"log_level"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold" json:"slow_threshold"`
}

// FromAppConfig maps the database section of the application config.
func FromAppConfig(db config.DatabaseConfig) *Config {
	return &Config{
		Host:            db.Host,
		Port:            db.Port,
		Username:        db.Username,
		Password:        db.Password,
		Database:        db.Database,
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
		LogLevel:        db.LogLevel,
		SlowThreshold:   db.SlowThreshold,
	}
}

// DSN uses UTC so stored timestamps compare consistently with the
// expiry cutoff computed in Go.
func (c *Config) DSN() string {
	dc := mysqlDriver.NewConfig()
	dc.User = c.Username
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(c.Host, c.Port)
	dc.DBName = c.Database
	dc.ParseTime = true
	dc.Loc = time.UTC
	dc.Collation = "utf8mb4_unicode_ci"
	dc.ReadTimeout = 10 * time.Second
	dc.WriteTimeout = 10 * time.Second
	return dc.FormatDSN()
}

func (c *Config) applyDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = DefaultConnMaxIdleTime
	}
}

// gormConfig enables TranslateError so unique violations surface as
// gorm.ErrDuplicatedKey on every dialect.
func (c *Config) gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLogger(c.LogLevel, c.SlowThreshold),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

func (c *Config) Connect() (*gorm.DB, error) {
	c.applyDefaults()

	db, err := gorm.Open(mysql.Open(c.DSN()), c.gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(c.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(c.ConnMaxIdleTime)

	logger.Info("Database connected",
		zap.String("host", c.Host),
		zap.String("database", c.Database),
		zap.Int("max_open_conns", c.MaxOpenConns),
		zap.Int("max_idle_conns", c.MaxIdleConns),
		zap.Duration("conn_max_lifetime", c.ConnMaxLifetime),
	)
	return db, nil
}

// ConnectSQLite opens a SQLite database at path for local development
// (database.type=sqlite) and repository tests. Transactions begin IMMEDIATE so
// concurrent writers queue on the database lock. MaxOpenConns defaults to one.
func (c *Config) ConnectSQLite(path string) (*gorm.DB, error) {
	dsn := path + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), c.gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	conns := c.MaxOpenConns
	if conns <= 0 {
		conns = 1
	}
	sqlDB.SetMaxOpenConns(conns)

	logger.Info("SQLite database opened", zap.String("path", path), zap.Int("max_open_conns", conns))
	return db, nil
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Models lists every table owned or read by this service.
func Models() []interface{} {
	return []interface{}{
		&po.ProductPO{},
		&po.ProductVariantPO{},
		&po.UserPO{},
		&po.OrderPO{},
		&po.OrderItemPO{},
		&po.OrderStatusHistoryPO{},
		&po.OrderRefundPO{},
		&po.OrderCounterPO{},
		&po.IdempotencyKeyPO{},
		&po.OutboxEventPO{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
