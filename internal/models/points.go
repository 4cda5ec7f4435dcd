package models

import "time"

// PenaltyActivity — встроенный тип активности для снятия баллов.
// В таблице activity_types отсутствует, но считается известным.
const PenaltyActivity = "penalty"

type PointEntry struct {
	ID           int64     `db:"id"`
	CitizenID    int64     `db:"citizen_id"`
	ActivityType string    `db:"activity_type"`
	Points       int       `db:"points"`
	Description  *string   `db:"description"`
	MeetingID    *int64    `db:"meeting_id"`
	DateEarned   time.Time `db:"date_earned"`
	CreatedBy    *int64    `db:"created_by"`
	CreatedAt    time.Time `db:"created_at"`
}

type ActivityType struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	DisplayName string `db:"display_name"`
	PointsValue int    `db:"points_value"`
	Description string `db:"description"`
	IsActive    bool   `db:"is_active"`
}

// LeaderboardEntry — строка рейтинга граждан.
type LeaderboardEntry struct {
	CitizenID       int64
	FullName        string
	Phone           *string
	Address         *string
	Points          int
	ActivitiesCount int
}

type Achievement struct {
	Name        string
	Description string
}
