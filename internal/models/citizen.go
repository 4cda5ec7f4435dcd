package models

import "time"

type Citizen struct {
	ID               int64      `db:"id"`
	FullName         string     `db:"full_name"`
	BirthDate        *time.Time `db:"birth_date"`
	Address          *string    `db:"address"`
	Phone            *string    `db:"phone"`
	PassportData     *string    `db:"passport_data"`
	RegistrationDate *time.Time `db:"registration_date"`
	IsActive         bool       `db:"is_active"`
	TotalPoints      int        `db:"total_points"`
	Notes            *string    `db:"notes"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}
