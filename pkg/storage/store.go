// pkg/storage/store.go
//
// Storage engine on PostgreSQL through GORM. Every method takes a context
// and is safe to call from background schedulers once Open returns.

package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = cerr.New("record not found")

// DefaultSettings are seeded for every branch.
var DefaultSettings = map[string]string{
	"backup_interval_hours": "24",
	"feature.notifications": "true",
	"feature.cloud_sync":    "true",
	"feature.messaging":     "true",
	"feature.automation":    "true",
	"business_name":         "",
}

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, cerr.WithHint(cerr.New("storage.dsn is not set"),
			"Set storage.dsn in config/agms.yaml or AGMS_STORAGE_DSN")
	}
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, cerr.Wrap(err, "open database")
	}
	s := &Store{db: db, log: log}
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Ping checks connectivity with a short timeout.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return cerr.Wrap(err, "database handle")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return cerr.Wrap(err, "ping database")
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate brings the schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return cerr.Wrap(err, "migrate schema")
	}
	s.log.Info("Schema migrated", zap.Int("tables", len(Models())))
	return nil
}

// SeedDefaults inserts DefaultSettings for branch, keeping existing values.
func (s *Store) SeedDefaults(ctx context.Context, branch string) (int, error) {
	rows := make([]Setting, 0, len(DefaultSettings))
	for k, v := range DefaultSettings {
		rows = append(rows, Setting{Branch: branch, Key: k, Value: v})
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if res.Error != nil {
		return 0, cerr.Wrap(res.Error, "seed default settings")
	}
	s.log.Info("Default data seeded", zap.String("branch", branch), zap.Int64("inserted", res.RowsAffected))
	return int(res.RowsAffected), nil
}

// Settings returns every setting for branch.
func (s *Store) Settings(ctx context.Context, branch string) (map[string]string, error) {
	var rows []Setting
	if err := s.db.WithContext(ctx).Where("branch = ?", branch).Find(&rows).Error; err != nil {
		return nil, cerr.Wrap(err, "load settings")
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// SetSetting upserts one setting.
func (s *Store) SetSetting(ctx context.Context, branch, key, value string) error {
	row := Setting{Branch: branch, Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "branch"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row).Error
	return cerr.Wrapf(err, "set %s", key)
}

// IntSetting reads key as an integer, returning def when absent or invalid.
func (s *Store) IntSetting(ctx context.Context, branch, key string, def int) int {
	all, err := s.Settings(ctx, branch)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(all[key])
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("email = ? AND active", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, cerr.Wrap(err, "load user")
	}
	return &u, nil
}

// EnsureUser creates u unless a user with the same email exists. It
// reports whether a row was inserted.
func (s *Store) EnsureUser(ctx context.Context, u *User) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(u)
	if res.Error != nil {
		return false, cerr.Wrapf(res.Error, "create user %s", u.Email)
	}
	return res.RowsAffected > 0, nil
}

// BirthdaysOn returns contacts of branch whose birthday falls on day.
func (s *Store) BirthdaysOn(ctx context.Context, branch string, day time.Time) ([]Contact, error) {
	var rows []Contact
	err := s.db.WithContext(ctx).
		Where("branch = ? AND birthday IS NOT NULL", branch).
		Where("EXTRACT(MONTH FROM birthday) = ? AND EXTRACT(DAY FROM birthday) = ?", int(day.Month()), day.Day()).
		Order("name").
		Find(&rows).Error
	return rows, cerr.Wrap(err, "load birthdays")
}

// DueReminders returns open reminders of branch due at or before now.
func (s *Store) DueReminders(ctx context.Context, branch string, now time.Time) ([]Reminder, error) {
	var rows []Reminder
	err := s.db.WithContext(ctx).
		Where("branch = ? AND NOT done AND due_at <= ?", branch, now).
		Order("due_at").
		Find(&rows).Error
	return rows, cerr.Wrap(err, "load reminders")
}

// MarkReminderDone closes a reminder so it fires once.
func (s *Store) MarkReminderDone(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&Reminder{}).Where("id = ?", id).Update("done", true).Error
	return cerr.Wrap(err, "close reminder")
}

// Rules returns the automation rules of branch.
func (s *Store) Rules(ctx context.Context, branch string) ([]Rule, error) {
	var rows []Rule
	err := s.db.WithContext(ctx).Where("branch = ?", branch).Order("id").Find(&rows).Error
	return rows, cerr.Wrap(err, "load rules")
}

// EnsureRules inserts rules whose (branch, name) does not exist yet.
func (s *Store) EnsureRules(ctx context.Context, rules []Rule) (int, error) {
	if len(rules) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rules)
	return int(res.RowsAffected), cerr.Wrap(res.Error, "install rules")
}

// Template returns the named template of branch.
func (s *Store) Template(ctx context.Context, branch, name string) (*Template, error) {
	var t Template
	err := s.db.WithContext(ctx).Where("branch = ? AND name = ?", branch, name).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, cerr.Wrap(err, "load template")
	}
	return &t, nil
}

// EnsureTemplates inserts templates whose (branch, name) does not exist yet.
func (s *Store) EnsureTemplates(ctx context.Context, templates []Template) (int, error) {
	if len(templates) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&templates)
	return int(res.RowsAffected), cerr.Wrap(res.Error, "install templates")
}

// Snapshot returns the branch data pushed by cloud sync.
func (s *Store) Snapshot(ctx context.Context, branch string) (*Snapshot, error) {
	snap := &Snapshot{Branch: branch, TakenAt: time.Now().UTC()}
	db := s.db.WithContext(ctx)
	if err := db.Where("branch = ?", branch).Find(&snap.Settings).Error; err != nil {
		return nil, cerr.Wrap(err, "snapshot settings")
	}
	if err := db.Where("branch = ?", branch).Find(&snap.Contacts).Error; err != nil {
		return nil, cerr.Wrap(err, "snapshot contacts")
	}
	if err := db.Where("branch = ?", branch).Find(&snap.Reminders).Error; err != nil {
		return nil, cerr.Wrap(err, "snapshot reminders")
	}
	return snap, nil
}

// Snapshot is a point-in-time copy of one branch.
type Snapshot struct {
	Branch    string     `json:"branch"`
	TakenAt   time.Time  `json:"taken_at"`
	Settings  []Setting  `json:"settings"`
	Contacts  []Contact  `json:"contacts"`
	Reminders []Reminder `json:"reminders"`
}
