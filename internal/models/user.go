package models

import "time"

type Role string

const (
	Admin     Role = "admin"
	Chairman  Role = "chairman"
	Secretary Role = "secretary"
	Operator  Role = "operator"
)

type User struct {
	ID           int64      `db:"id"`
	Username     string     `db:"username"`
	PasswordHash string     `db:"password_hash"`
	FullName     string     `db:"full_name"`
	Role         Role       `db:"role"`
	IsActive     bool       `db:"is_active"`
	LastLogin    *time.Time `db:"last_login"`
	CreatedAt    time.Time  `db:"created_at"`
}
