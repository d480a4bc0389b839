// Package sqlstore implements store.Store over gorm, for SQLite and MySQL.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/princinho/sahoassist/models"
	"github.com/princinho/sahoassist/store"
)

// Dialects accepted by Open.
const (
	DialectSQLite = "sqlite"
	DialectMySQL  = "mysql"
)

// Optimistic updates are retried this many times before reporting a conflict.
const maxApplyAttempts = 5

var errStale = errors.New("stale version")

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to dsn with the given dialect and migrates the schema.
// For MySQL the DSN must carry parseTime=true&loc=UTC.
func Open(dialect, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch dialect {
	case DialectSQLite:
		dialector = sqlite.Open(dsn)
	case DialectMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown sql dialect %q", dialect)
	}

	s := &Store{now: func() time.Time { return time.Now().UTC() }}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return s.now() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// one connection keeps :memory: databases shared and serialises writers
		sqlDB.SetMaxOpenConns(1)
	}
	s.db = db
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// WithClock makes the store stamp updates with now instead of the wall clock.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Migrate creates or updates every table.
func (s *Store) Migrate() error {
	err := s.db.AutoMigrate(
		&sequenceRow{},
		&models.Conversation{},
		&models.ProductRequest{},
		&models.RequestActivity{},
		&models.Vendor{},
		&models.VendorCategory{},
		&models.VendorNotification{},
		&models.SupportTicket{},
		&models.User{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Conversations() store.ConversationStore { return conversations{s} }
func (s *Store) Requests() store.RequestStore           { return requests{s} }
func (s *Store) Vendors() store.VendorStore             { return vendors{s} }
func (s *Store) Notifications() store.NotificationStore { return notifications{s} }
func (s *Store) Tickets() store.TicketStore             { return tickets{s} }
func (s *Store) Users() store.UserStore                 { return users{s} }
func (s *Store) Sequences() store.SequenceStore         { return sequences{s} }

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps gorm errors onto the store sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint failed"),
		strings.Contains(err.Error(), "Duplicate entry"):
		return store.ErrDuplicate
	}
	return err
}

func paginate(p store.Page) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if p.PerPage <= 0 {
			return db
		}
		return db.Offset(p.Offset()).Limit(p.PerPage)
	}
}

func likePattern(q string) string {
	return "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
}

// ---- sequences ----

type sequenceRow struct {
	Name    string `gorm:"primaryKey;size:191"`
	Counter int64
}

func (sequenceRow) TableName() string { return "sequences" }

type sequences struct{ s *Store }

// Next bumps the counter row, creating it on first use. Two writers racing to
// create the same row collide on the primary key and the loser retries.
func (q sequences) Next(ctx context.Context, key string) (int64, error) {
	var err error
	for range maxApplyAttempts {
		var row sequenceRow
		err = translate(q.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&sequenceRow{}).Where("name = ?", key).UpdateColumn("counter", gorm.Expr("counter + 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				if err := tx.Create(&sequenceRow{Name: key, Counter: 1}).Error; err != nil {
					return err
				}
			}
			return tx.Where("name = ?", key).Take(&row).Error
		}))
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			break
		}
		return row.Counter, nil
	}
	return 0, fmt.Errorf("next %s: %w", key, err)
}

// ---- conversations ----

type conversations struct{ s *Store }

func (q conversations) Log(ctx context.Context, c *models.Conversation) error {
	c.ID = 0
	return translate(q.s.db.WithContext(ctx).Create(c).Error)
}

func (q conversations) scope(ctx context.Context, f store.ConversationFilter) *gorm.DB {
	db := q.s.db.WithContext(ctx).Model(&models.Conversation{})
	if f.UserID > 0 {
		db = db.Where("user_id = ?", f.UserID)
	}
	if f.SessionID != "" {
		db = db.Where("session_id = ?", f.SessionID)
	}
	if f.Context != "" {
		db = db.Where("context = ?", f.Context)
	}
	if !f.CreatedAfter.IsZero() {
		db = db.Where("created_at >= ?", f.CreatedAfter)
	}
	if !f.CreatedBefore.IsZero() {
		db = db.Where("created_at < ?", f.CreatedBefore)
	}
	return db
}

func (q conversations) List(ctx context.Context, f store.ConversationFilter, p store.Page) ([]models.Conversation, int64, error) {
	var total int64
	if err := q.scope(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := make([]models.Conversation, 0)
	err := q.scope(ctx, f).Order("created_at DESC, id DESC").Scopes(paginate(p)).Find(&out).Error
	return out, total, err
}

func (q conversations) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := q.s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.Conversation{})
	return res.RowsAffected, res.Error
}

// ---- users ----

type users struct{ s *Store }

func (q users) Create(ctx context.Context, u *models.User) error {
	return translate(q.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("LOWER(email) = ?", strings.ToLower(u.Email)).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return store.ErrDuplicate
		}
		u.ID = 0
		return tx.Create(u).Error
	}))
}

func (q users) Get(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := q.s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (q users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := q.s.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).Take(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (q users) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	out := make([]models.User, 0)
	err := q.s.db.WithContext(ctx).Where("role = ? AND is_active = ?", role, true).Order("id").Find(&out).Error
	return out, err
}
