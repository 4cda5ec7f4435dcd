// Package reports — сводные показатели для панели управления.
package reports

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Service struct {
	db  *sql.DB
	log *zap.Logger
}

func NewService(db *sql.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log.Named("reports")}
}

// Overview — ключевые цифры на сегодня.
type Overview struct {
	ActiveCitizens    int64
	PlannedMeetings   int64
	CompletedMeetings int64
	SMSThisMonth      int64
	PointsThisMonth   int64
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	monthStart := time.Now().Format("2006-01") + "-01"
	query := `
SELECT
    (SELECT COUNT(*) FROM citizens WHERE is_active = 1),
    (SELECT COUNT(*) FROM meetings WHERE status = 'PLANNED'),
    (SELECT COUNT(*) FROM meetings WHERE status = 'COMPLETED'),
    (SELECT COUNT(*) FROM sms_logs WHERE sent_at >= ?),
    (SELECT COALESCE(SUM(points), 0) FROM citizen_points WHERE date_earned >= ?)`

	var o Overview
	err := s.db.QueryRowContext(ctx, query, monthStart, monthStart).Scan(
		&o.ActiveCitizens, &o.PlannedMeetings, &o.CompletedMeetings,
		&o.SMSThisMonth, &o.PointsThisMonth)
	if err != nil {
		return nil, fmt.Errorf("сводка: %w", err)
	}
	return &o, nil
}

type DailyPoints struct {
	Date   string
	Points int
	Count  int
}

// DailyPoints — начисления по дням за последние days дней.
func (s *Service) DailyPoints(ctx context.Context, days int) ([]DailyPoints, error) {
	since := time.Now().AddDate(0, 0, -days).Format("2006-01-02")
	query := `
SELECT date_earned, SUM(points), COUNT(*)
FROM citizen_points
WHERE date_earned >= ?
GROUP BY date_earned
ORDER BY date_earned`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("баллы по дням: %w", err)
	}
	defer rows.Close()

	var out []DailyPoints
	for rows.Next() {
		var d DailyPoints
		if err := rows.Scan(&d.Date, &d.Points, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
