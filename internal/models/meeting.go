package models

import "time"

type MeetingStatus string

const (
	MeetingPlanned   MeetingStatus = "PLANNED"
	MeetingCompleted MeetingStatus = "COMPLETED"
	MeetingCancelled MeetingStatus = "CANCELLED"
)

type Meeting struct {
	ID              int64         `db:"id"`
	Title           string        `db:"title"`
	MeetingDate     time.Time     `db:"meeting_date"`
	MeetingTime     *string       `db:"meeting_time"`
	Location        *string       `db:"location"`
	Agenda          *string       `db:"agenda"`
	Status          MeetingStatus `db:"status"`
	AttendanceCount int           `db:"attendance_count"`
	TotalInvited    int           `db:"total_invited"`
	CreatedBy       *int64        `db:"created_by"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

type Attendance struct {
	ID           int64      `db:"id"`
	CitizenID    int64      `db:"citizen_id"`
	MeetingID    int64      `db:"meeting_id"`
	IsPresent    bool       `db:"is_present"`
	PointsEarned int        `db:"points_earned"`
	ArrivalTime  *time.Time `db:"arrival_time"`
	Notes        *string    `db:"notes"`
}

type DecisionStatus string

const (
	DecisionActive    DecisionStatus = "ACTIVE"
	DecisionCompleted DecisionStatus = "COMPLETED"
	DecisionCancelled DecisionStatus = "CANCELLED"
)

type Decision struct {
	ID                int64          `db:"id"`
	MeetingID         int64          `db:"meeting_id"`
	DecisionText      string         `db:"decision_text"`
	DecisionNumber    *string        `db:"decision_number"`
	VotesFor          int            `db:"votes_for"`
	VotesAgainst      int            `db:"votes_against"`
	VotesAbstain      int            `db:"votes_abstain"`
	Status            DecisionStatus `db:"status"`
	Deadline          *time.Time     `db:"deadline"`
	ResponsiblePerson *string        `db:"responsible_person"`
}
