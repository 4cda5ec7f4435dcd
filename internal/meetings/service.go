// Package meetings — собрания махалли, посещаемость и решения.
package meetings

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/otabek-dev/mahalla-admin/internal/models"
	"github.com/otabek-dev/mahalla-admin/internal/store"
	"github.com/otabek-dev/mahalla-admin/internal/validate"
)

var meetingColumns = []string{
	"id", "title", "meeting_date", "meeting_time", "location", "agenda",
	"status", "attendance_count", "total_invited", "created_at", "updated_at", "created_by",
}

var decisionColumns = []string{
	"id", "meeting_id", "decision_text", "decision_number",
	"votes_for", "votes_against", "votes_abstain", "status",
	"deadline", "responsible_person", "execution_notes", "created_at", "updated_at",
}

type Service struct {
	store     *store.Store
	decisions *store.Store
	db        *sql.DB
	log       *zap.Logger
}

func NewService(database *sql.DB, log *zap.Logger) *Service {
	return &Service{
		store: store.New(database, log, store.Config{
			Table:        "meetings",
			Columns:      meetingColumns,
			Required:     []string{"title", "meeting_date"},
			SearchFields: []string{"title", "location", "agenda"},
		}),
		decisions: store.New(database, log, store.Config{
			Table:    "decisions",
			Columns:  decisionColumns,
			Required: []string{"meeting_id", "decision_text"},
		}),
		db:  database,
		log: log.Named("meetings"),
	}
}

func (s *Service) Store() *store.Store { return s.store }

func fields(m models.Meeting) map[string]any {
	out := map[string]any{
		"title":        m.Title,
		"meeting_date": m.MeetingDate.Format(store.DateLayout),
	}
	if m.MeetingTime != nil {
		out["meeting_time"] = *m.MeetingTime
	}
	if m.Location != nil {
		out["location"] = *m.Location
	}
	if m.Agenda != nil {
		out["agenda"] = *m.Agenda
	}
	if m.CreatedBy != nil {
		out["created_by"] = *m.CreatedBy
	}
	return out
}

func (s *Service) Create(ctx context.Context, m models.Meeting) (int64, validate.Errors, error) {
	if errs := validate.Meeting(m); !errs.OK() {
		return 0, errs, nil
	}
	f := fields(m)
	if m.Status != "" {
		f["status"] = string(m.Status)
	}
	id, err := s.store.Create(ctx, f)
	if err != nil {
		return 0, nil, err
	}
	s.log.Info("собрание создано", zap.Int64("id", id), zap.String("title", m.Title))
	return id, nil, nil
}

func (s *Service) Update(ctx context.Context, id int64, m models.Meeting) (validate.Errors, error) {
	if errs := validate.Meeting(m); !errs.OK() {
		return errs, nil
	}
	return nil, s.store.Update(ctx, id, fields(m))
}

func (s *Service) GetByID(ctx context.Context, id int64) (*models.Meeting, error) {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m := fromRow(row)
	return &m, nil
}

// ChangeStatus переводит собрание в новый статус. COMPLETED и CANCELLED
// конечные: из них перехода нет.
func (s *Service) ChangeStatus(ctx context.Context, id int64, status models.MeetingStatus) error {
	switch status {
	case models.MeetingPlanned, models.MeetingCompleted, models.MeetingCancelled:
	default:
		return fmt.Errorf("недопустимый статус собрания: %q", status)
	}
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != models.MeetingPlanned && current.Status != status {
		return fmt.Errorf("собрание в статусе %s изменить нельзя", current.Status)
	}
	return s.store.Update(ctx, id, map[string]any{"status": string(status)})
}

// Complete фиксирует итоговую посещаемость из живого агрегата и
// переводит собрание в COMPLETED.
func (s *Service) Complete(ctx context.Context, id int64) error {
	if err := s.RecountAttendance(ctx, id); err != nil {
		return err
	}
	return s.ChangeStatus(ctx, id, models.MeetingCompleted)
}

func (s *Service) Cancel(ctx context.Context, id int64, reason string) error {
	if err := s.ChangeStatus(ctx, id, models.MeetingCancelled); err != nil {
		return err
	}
	if reason != "" {
		s.log.Info("собрание отменено", zap.Int64("id", id), zap.String("reason", reason))
	}
	return nil
}

// Upcoming — запланированные собрания на ближайшие daysAhead дней
// (ноль — без верхней границы).
func (s *Service) Upcoming(ctx context.Context, daysAhead int) ([]models.Meeting, error) {
	today := time.Now().Format(store.DateLayout)
	f := store.F().Gte("meeting_date", today).Eq("status", string(models.MeetingPlanned))
	if daysAhead > 0 {
		until := time.Now().AddDate(0, 0, daysAhead).Format(store.DateLayout)
		f = f.Lte("meeting_date", until)
	}
	rows, err := s.store.GetAll(ctx, f, "meeting_date, meeting_time")
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

// Past — прошедшие собрания за daysBack дней (ноль — вся история).
func (s *Service) Past(ctx context.Context, daysBack int) ([]models.Meeting, error) {
	today := time.Now().Format(store.DateLayout)
	f := store.F().Lt("meeting_date", today)
	if daysBack > 0 {
		since := time.Now().AddDate(0, 0, -daysBack).Format(store.DateLayout)
		f = f.Gte("meeting_date", since)
	}
	rows, err := s.store.GetAll(ctx, f, "meeting_date DESC")
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *Service) ByStatus(ctx context.Context, status models.MeetingStatus) ([]models.Meeting, error) {
	rows, err := s.store.GetAll(ctx, store.F().Eq("status", string(status)), "meeting_date DESC")
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *Service) ByDateRange(ctx context.Context, from, to time.Time) ([]models.Meeting, error) {
	rows, err := s.store.GetAll(ctx,
		store.F().
			Gte("meeting_date", from.Format(store.DateLayout)).
			Lte("meeting_date", to.Format(store.DateLayout)),
		"meeting_date")
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *Service) Search(ctx context.Context, term string) ([]models.Meeting, error) {
	rows, err := s.store.Search(ctx, term, nil)
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

// ToggleAttendance отмечает или переотмечает гражданина на собрании.
// Повторная отметка обновляет существующую строку, дублей не бывает.
func (s *Service) ToggleAttendance(ctx context.Context, meetingID, citizenID int64, present bool) error {
	query := `
INSERT INTO attendance (citizen_id, meeting_id, is_present, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(citizen_id, meeting_id) DO UPDATE SET
    is_present = excluded.is_present,
    updated_at = excluded.updated_at`

	now := time.Now().UTC().Format(store.TimeLayout)
	presentVal := 0
	if present {
		presentVal = 1
	}
	if _, err := s.db.ExecContext(ctx, query, citizenID, meetingID, presentVal, now, now); err != nil {
		return fmt.Errorf("отметка посещаемости: %w", err)
	}
	return s.RecountAttendance(ctx, meetingID)
}

// RecountAttendance пересчитывает счётчики собрания из таблицы attendance.
func (s *Service) RecountAttendance(ctx context.Context, meetingID int64) error {
	query := `
UPDATE meetings SET
    total_invited = (SELECT COUNT(*) FROM attendance WHERE meeting_id = ?),
    attendance_count = (SELECT COALESCE(SUM(CASE WHEN is_present = 1 THEN 1 ELSE 0 END), 0)
                        FROM attendance WHERE meeting_id = ?),
    updated_at = ?
WHERE id = ?`

	now := time.Now().UTC().Format(store.TimeLayout)
	res, err := s.db.ExecContext(ctx, query, meetingID, meetingID, now, meetingID)
	if err != nil {
		return fmt.Errorf("пересчёт посещаемости: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AttendanceRate — доля присутствовавших, ноль при пустом списке.
func (s *Service) AttendanceRate(ctx context.Context, meetingID int64) (float64, error) {
	m, err := s.GetByID(ctx, meetingID)
	if err != nil {
		return 0, err
	}
	if m.TotalInvited == 0 {
		return 0, nil
	}
	return float64(m.AttendanceCount) / float64(m.TotalInvited) * 100, nil
}

// AttendanceRecord — строка посещаемости вместе с именем гражданина.
type AttendanceRecord struct {
	CitizenID int64
	FullName  string
	Phone     *string
	IsPresent bool
	Points    int
}

func (s *Service) WithAttendance(ctx context.Context, meetingID int64) ([]AttendanceRecord, error) {
	query := `
SELECT a.citizen_id, c.full_name, c.phone, a.is_present, a.points_earned
FROM attendance a
JOIN citizens c ON c.id = a.citizen_id
WHERE a.meeting_id = ?
ORDER BY c.full_name`

	rows, err := s.db.QueryContext(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("список посещаемости: %w", err)
	}
	defer rows.Close()

	var out []AttendanceRecord
	for rows.Next() {
		var r AttendanceRecord
		var present int
		if err := rows.Scan(&r.CitizenID, &r.FullName, &r.Phone, &present, &r.Points); err != nil {
			return nil, err
		}
		r.IsPresent = present == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

type MonthlyStat struct {
	Month             string
	MeetingsCount     int
	AvgAttendance     float64
	CompletedMeetings int
}

// MonthlyStatistics — собрания по месяцам за последние months месяцев.
func (s *Service) MonthlyStatistics(ctx context.Context, months int) ([]MonthlyStat, error) {
	since := time.Now().AddDate(0, -months, 0).Format(store.DateLayout)
	query := `
SELECT strftime('%Y-%m', meeting_date) AS month,
       COUNT(*) AS meetings_count,
       COALESCE(AVG(CASE WHEN total_invited > 0
                         THEN CAST(attendance_count AS REAL) / total_invited * 100 END), 0),
       SUM(CASE WHEN status = 'COMPLETED' THEN 1 ELSE 0 END)
FROM meetings
WHERE meeting_date >= ?
GROUP BY month
ORDER BY month DESC`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("статистика собраний: %w", err)
	}
	defer rows.Close()

	var out []MonthlyStat
	for rows.Next() {
		var st MonthlyStat
		if err := rows.Scan(&st.Month, &st.MeetingsCount, &st.AvgAttendance, &st.CompletedMeetings); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Service) AddDecision(ctx context.Context, d models.Decision) (int64, error) {
	if d.DecisionText == "" {
		return 0, fmt.Errorf("текст решения обязателен")
	}
	f := map[string]any{
		"meeting_id":    d.MeetingID,
		"decision_text": d.DecisionText,
		"votes_for":     d.VotesFor,
		"votes_against": d.VotesAgainst,
		"votes_abstain": d.VotesAbstain,
	}
	if d.DecisionNumber != nil {
		f["decision_number"] = *d.DecisionNumber
	}
	if d.Deadline != nil {
		f["deadline"] = d.Deadline.Format(store.DateLayout)
	}
	if d.ResponsiblePerson != nil {
		f["responsible_person"] = *d.ResponsiblePerson
	}
	return s.decisions.Create(ctx, f)
}

func (s *Service) DecisionsForMeeting(ctx context.Context, meetingID int64) ([]models.Decision, error) {
	rows, err := s.decisions.GetAll(ctx, store.F().Eq("meeting_id", meetingID), "id")
	if err != nil {
		return nil, err
	}
	out := make([]models.Decision, 0, len(rows))
	for _, row := range rows {
		d := models.Decision{
			ID:           row.Int64("id"),
			MeetingID:    row.Int64("meeting_id"),
			DecisionText: row.String("decision_text"),
			VotesFor:     row.Int("votes_for"),
			VotesAgainst: row.Int("votes_against"),
			VotesAbstain: row.Int("votes_abstain"),
			Status:       models.DecisionStatus(row.String("status")),
		}
		if !row.IsNull("decision_number") {
			v := row.String("decision_number")
			d.DecisionNumber = &v
		}
		if !row.IsNull("deadline") {
			t := row.Time("deadline")
			d.Deadline = &t
		}
		if !row.IsNull("responsible_person") {
			v := row.String("responsible_person")
			d.ResponsiblePerson = &v
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) UpdateDecisionStatus(ctx context.Context, decisionID int64, status models.DecisionStatus, notes string) error {
	switch status {
	case models.DecisionActive, models.DecisionCompleted, models.DecisionCancelled:
	default:
		return fmt.Errorf("недопустимый статус решения: %q", status)
	}
	f := map[string]any{"status": string(status)}
	if notes != "" {
		f["execution_notes"] = notes
	}
	return s.decisions.Update(ctx, decisionID, f)
}

func fromRow(row store.Row) models.Meeting {
	m := models.Meeting{
		ID:              row.Int64("id"),
		Title:           row.String("title"),
		MeetingDate:     row.Time("meeting_date"),
		Status:          models.MeetingStatus(row.String("status")),
		AttendanceCount: row.Int("attendance_count"),
		TotalInvited:    row.Int("total_invited"),
		CreatedAt:       row.Time("created_at"),
		UpdatedAt:       row.Time("updated_at"),
	}
	if !row.IsNull("meeting_time") {
		v := row.String("meeting_time")
		m.MeetingTime = &v
	}
	if !row.IsNull("location") {
		v := row.String("location")
		m.Location = &v
	}
	if !row.IsNull("agenda") {
		v := row.String("agenda")
		m.Agenda = &v
	}
	if !row.IsNull("created_by") {
		v := row.Int64("created_by")
		m.CreatedBy = &v
	}
	return m
}

func fromRows(rows []store.Row) []models.Meeting {
	out := make([]models.Meeting, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out
}
