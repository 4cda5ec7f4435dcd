package models

import "time"

type CampaignType string

const (
	CampaignRegular   CampaignType = "REGULAR"
	CampaignEmergency CampaignType = "EMERGENCY"
	CampaignReminder  CampaignType = "REMINDER"
)

type SMSStatus string

const (
	SMSPending   SMSStatus = "PENDING"
	SMSSent      SMSStatus = "SENT"
	SMSDelivered SMSStatus = "DELIVERED"
	SMSFailed    SMSStatus = "FAILED"
)

type SMSCampaign struct {
	ID             int64        `db:"id"`
	Title          string       `db:"title"`
	MessageText    string       `db:"message_text"`
	CampaignType   CampaignType `db:"campaign_type"`
	SentCount      int          `db:"sent_count"`
	DeliveredCount int          `db:"delivered_count"`
	FailedCount    int          `db:"failed_count"`
	ScheduledAt    *time.Time   `db:"scheduled_at"`
	SentAt         *time.Time   `db:"sent_at"`
	CreatedBy      *int64       `db:"created_by"`
	CreatedAt      time.Time    `db:"created_at"`
}

type SMSLog struct {
	ID           int64      `db:"id"`
	CampaignID   *int64     `db:"campaign_id"`
	CitizenID    *int64     `db:"citizen_id"`
	Phone        string     `db:"phone"`
	MessageText  string     `db:"message_text"`
	Status       SMSStatus  `db:"status"`
	ErrorMessage *string    `db:"error_message"`
	SentAt       *time.Time `db:"sent_at"`
	DeliveredAt  *time.Time `db:"delivered_at"`
}

type EmergencyNotice struct {
	ID            int64     `db:"id"`
	Title         string    `db:"title"`
	MessageText   string    `db:"message_text"`
	EmergencyType string    `db:"emergency_type"`
	Priority      int       `db:"priority"`
	AffectedArea  *string   `db:"affected_area"`
	SentCount     int       `db:"sent_count"`
	CreatedBy     *int64    `db:"created_by"`
	CreatedAt     time.Time `db:"created_at"`
}
