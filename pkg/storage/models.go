// pkg/storage/models.go

package storage

import "time"

// Setting is a per-branch key/value pair.
type Setting struct {
	ID     uint   `gorm:"primaryKey"`
	Branch string `gorm:"uniqueIndex:idx_setting_branch_key;not null"`
	Key    string `gorm:"uniqueIndex:idx_setting_branch_key;not null"`
	Value  string
}

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string
	Role         string `gorm:"not null"`
	Branch       string `gorm:"index;not null"`
	PasswordHash string `gorm:"not null"`
	Active       bool   `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Contact struct {
	ID        uint   `gorm:"primaryKey"`
	Branch    string `gorm:"index;not null"`
	Name      string `gorm:"not null"`
	Phone     string // sealed with the keystore
	Birthday  *time.Time
	CreatedAt time.Time
}

type Reminder struct {
	ID        uint   `gorm:"primaryKey"`
	Branch    string `gorm:"index;not null"`
	Title     string `gorm:"not null"`
	DueAt     time.Time
	Done      bool
	CreatedAt time.Time
}

// Rule is an automation rule run on a cron schedule.
type Rule struct {
	ID       uint   `gorm:"primaryKey"`
	Branch   string `gorm:"uniqueIndex:idx_rule_branch_name;not null"`
	Name     string `gorm:"uniqueIndex:idx_rule_branch_name;not null"`
	Schedule string `gorm:"not null"`
	Action   string `gorm:"not null"`
	Enabled  bool   `gorm:"default:true"`
}

// Template is a message template used by automation rules.
type Template struct {
	ID      uint   `gorm:"primaryKey"`
	Branch  string `gorm:"uniqueIndex:idx_template_branch_name;not null"`
	Name    string `gorm:"uniqueIndex:idx_template_branch_name;not null"`
	Channel string
	Body    string `gorm:"not null"`
}

// Models lists every table in migration order.
func Models() []any {
	return []any{&Setting{}, &User{}, &Contact{}, &Reminder{}, &Rule{}, &Template{}}
}
