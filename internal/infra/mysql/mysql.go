package mysql

import (
	"time"

	"kasuwa/internal/config"
	"kasuwa/internal/domain"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func NewMySQL(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.Env == "development" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN()), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "mysql pool")
	}
	sqlDB.SetMaxOpenConns(cfg.MySQLMaxOpen)
	sqlDB.SetMaxIdleConns(cfg.MySQLMaxIdle)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	return db, nil
}

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&domain.Category{},
		&domain.Product{},
		&domain.ProductVariant{},
		&domain.ProductImage{},
		&domain.CartItem{},
		&domain.Order{},
		&domain.OrderItem{},
		&domain.OrderTracking{},
		&domain.Payment{},
		&domain.Review{},
		&domain.ReviewVote{},
	}
}

// legacyIndexes were replaced by composite indexes and are dropped on migrate.
var legacyIndexes = []struct {
	model any
	name  string
}{
	{&domain.Order{}, "idx_orders_idempotency_key"},
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	m := db.Migrator()
	for _, idx := range legacyIndexes {
		if m.HasIndex(idx.model, idx.name) {
			if err := m.DropIndex(idx.model, idx.name); err != nil {
				return errors.Wrapf(err, "drop index %s", idx.name)
			}
		}
	}
	return nil
}
