// Package rewards — журнал баллов граждан: начисление, снятие,
// рейтинг и статистика. Источником истины служит citizen_points,
// citizens.total_points — производный кеш.
package rewards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/otabek-dev/mahalla-admin/internal/config"
	"github.com/otabek-dev/mahalla-admin/internal/metrics"
	"github.com/otabek-dev/mahalla-admin/internal/models"
	"github.com/otabek-dev/mahalla-admin/internal/store"
	"github.com/otabek-dev/mahalla-admin/internal/validate"
)

var pointColumns = []string{
	"id", "citizen_id", "activity_type", "points", "description",
	"meeting_id", "date_earned", "created_at", "created_by",
}

var typeColumns = []string{
	"id", "name", "display_name", "points_value", "description", "is_active", "created_at",
}

type Service struct {
	store *store.Store
	types *store.Store
	db    *sql.DB
	log   *zap.Logger
	cfg   config.PointsConfig
}

func NewService(database *sql.DB, log *zap.Logger, cfg config.PointsConfig) *Service {
	return &Service{
		store: store.New(database, log, store.Config{
			Table:    "citizen_points",
			Columns:  pointColumns,
			Required: []string{"citizen_id", "activity_type", "points"},
		}),
		types: store.New(database, log, store.Config{
			Table:        "activity_types",
			Columns:      typeColumns,
			Required:     []string{"name", "display_name", "points_value"},
			SearchFields: []string{"name", "display_name"},
		}),
		db:  database,
		log: log.Named("rewards"),
		cfg: cfg,
	}
}

// AwardInput — заявка на начисление. PointsOverride задаёт баллы вручную,
// иначе берётся номинал типа активности.
type AwardInput struct {
	CitizenID      int64
	ActivityType   string
	PointsOverride *int
	Description    string
	MeetingID      *int64
	DateEarned     *time.Time
	CreatedBy      *int64
}

func (s *Service) activityValue(ctx context.Context, name string) (int, bool, error) {
	if name == models.PenaltyActivity {
		return 0, true, nil
	}
	rows, err := s.types.GetAll(ctx, store.F().Eq("name", name).Eq("is_active", 1), "id")
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Int("points_value"), true, nil
}

// regularityBonus проверяет, заслужил ли гражданин бонус за регулярность:
// не меньше cfg.MinDays разных дней с этим типом активности за
// скользящее окно cfg.WindowDays.
func (s *Service) regularityBonus(ctx context.Context, citizenID int64, activityType string) (bool, error) {
	since := time.Now().AddDate(0, 0, -s.cfg.WindowDays).Format(store.DateLayout)
	query := `
SELECT COUNT(DISTINCT date_earned)
FROM citizen_points
WHERE citizen_id = ? AND activity_type = ? AND points > 0 AND date_earned >= ?`

	var days int
	if err := s.db.QueryRowContext(ctx, query, citizenID, activityType, since).Scan(&days); err != nil {
		return false, fmt.Errorf("проверка регулярности: %w", err)
	}
	return days >= s.cfg.MinDays, nil
}

// Award начисляет баллы одной транзакцией: запись в журнал и пересчёт
// суммы гражданина либо проходят вместе, либо откатываются вместе.
func (s *Service) Award(ctx context.Context, in AwardInput) (int64, validate.Errors, error) {
	errs := validate.Errors{}

	var active int
	err := s.db.QueryRowContext(ctx,
		"SELECT is_active FROM citizens WHERE id = ?", in.CitizenID).Scan(&active)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		errs.Add("citizen_id", "Гражданин не найден")
	case err != nil:
		return 0, nil, fmt.Errorf("проверка гражданина: %w", err)
	case active == 0:
		errs.Add("citizen_id", "Гражданин деактивирован")
	}

	base, known, err := s.activityValue(ctx, in.ActivityType)
	if err != nil {
		return 0, nil, err
	}
	if !known {
		errs.Add("activity_type", fmt.Sprintf("Неизвестный тип активности: %s", in.ActivityType))
	}

	points := base
	if in.PointsOverride != nil {
		points = *in.PointsOverride
	}

	// Бонус за регулярность считается до вставки текущей записи.
	if errs.OK() && points > 0 && in.ActivityType != models.PenaltyActivity {
		bonus, err := s.regularityBonus(ctx, in.CitizenID, in.ActivityType)
		if err != nil {
			return 0, nil, err
		}
		if bonus {
			points = int(float64(points) * s.cfg.Multiplier)
		}
	}

	// Границы проверяются по итоговому значению, уже с учётом бонуса.
	if !validate.PointsInRange(points) {
		errs.Add("points", "Количество баллов за раз не может превышать 1000 по модулю")
	}
	if !errs.OK() {
		return 0, errs, nil
	}

	earned := time.Now()
	if in.DateEarned != nil {
		earned = *in.DateEarned
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("начисление баллов: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(store.TimeLayout)
	res, err := tx.ExecContext(ctx, `
INSERT INTO citizen_points (citizen_id, activity_type, points, description, meeting_id, date_earned, created_at, created_by)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.CitizenID, in.ActivityType, points, nullable(in.Description),
		in.MeetingID, earned.Format(store.DateLayout), now, in.CreatedBy)
	if err != nil {
		return 0, nil, fmt.Errorf("начисление баллов: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, nil, err
	}

	if err := recomputeTotalTx(ctx, tx, in.CitizenID); err != nil {
		return 0, nil, err
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("начисление баллов: %w", err)
	}

	metrics.PointsAwarded.Inc()
	s.log.Info("баллы начислены",
		zap.Int64("citizen_id", in.CitizenID),
		zap.String("activity_type", in.ActivityType),
		zap.Int("points", points),
	)
	return id, nil, nil
}

// Deduct снимает баллы как запись типа penalty c отрицательным значением.
func (s *Service) Deduct(ctx context.Context, citizenID int64, points int, reason string, createdBy *int64) (int64, validate.Errors, error) {
	if points <= 0 {
		errs := validate.Errors{}
		errs.Add("points", "Количество снимаемых баллов должно быть положительным")
		return 0, errs, nil
	}
	neg := -points
	return s.Award(ctx, AwardInput{
		CitizenID:      citizenID,
		ActivityType:   models.PenaltyActivity,
		PointsOverride: &neg,
		Description:    reason,
		CreatedBy:      createdBy,
	})
}

// AwardMeetingAttendance начисляет баллы за посещение всем присутствовавшим
// на собрании. Сбой по одному гражданину не останавливает остальных.
func (s *Service) AwardMeetingAttendance(ctx context.Context, meetingID int64, createdBy *int64) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT a.citizen_id FROM attendance a
JOIN citizens c ON c.id = a.citizen_id
WHERE a.meeting_id = ? AND a.is_present = 1 AND c.is_active = 1`, meetingID)
	if err != nil {
		return 0, fmt.Errorf("участники собрания: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	awarded := 0
	for _, citizenID := range ids {
		_, errs, err := s.Award(ctx, AwardInput{
			CitizenID:    citizenID,
			ActivityType: "meeting_attendance",
			Description:  "Посещение собрания",
			MeetingID:    &meetingID,
			CreatedBy:    createdBy,
		})
		if err != nil || !errs.OK() {
			s.log.Warn("начисление за собрание пропущено",
				zap.Int64("citizen_id", citizenID), zap.Error(err))
			continue
		}
		// Зеркалим начисление в строку посещаемости.
		_, err = s.db.ExecContext(ctx, `
UPDATE attendance SET points_earned = (
    SELECT COALESCE(SUM(points), 0) FROM citizen_points
    WHERE citizen_id = ? AND meeting_id = ?
) WHERE citizen_id = ? AND meeting_id = ?`,
			citizenID, meetingID, citizenID, meetingID)
		if err != nil {
			s.log.Warn("не удалось обновить points_earned", zap.Error(err))
		}
		awarded++
	}
	return awarded, nil
}

func recomputeTotalTx(ctx context.Context, tx *sql.Tx, citizenID int64) error {
	_, err := tx.ExecContext(ctx, `
UPDATE citizens SET total_points = (
    SELECT COALESCE(SUM(points), 0) FROM citizen_points WHERE citizen_id = ?
), updated_at = ? WHERE id = ?`,
		citizenID, time.Now().UTC().Format(store.TimeLayout), citizenID)
	if err != nil {
		return fmt.Errorf("пересчёт суммы баллов: %w", err)
	}
	return nil
}

// RecomputeTotal сводит кеш total_points к сумме журнала. Идемпотентна.
func (s *Service) RecomputeTotal(ctx context.Context, citizenID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := recomputeTotalTx(ctx, tx, citizenID); err != nil {
		return err
	}
	return tx.Commit()
}

// Leaderboard — рейтинг активных граждан. periodDays = 0 означает за всё
// время по total_points; иначе сумма за окно. Нулевые и отрицательные
// итоги в рейтинг не попадают, при равенстве баллов выше тот, у кого
// больше активностей.
func (s *Service) Leaderboard(ctx context.Context, limit, periodDays int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	var query string
	var args []any
	if periodDays > 0 {
		since := time.Now().AddDate(0, 0, -periodDays).Format(store.DateLayout)
		query = `
SELECT c.id, c.full_name, c.phone, c.address,
       SUM(p.points) AS points, COUNT(p.id) AS activities_count
FROM citizens c
JOIN citizen_points p ON p.citizen_id = c.id AND p.date_earned >= ?
WHERE c.is_active = 1
GROUP BY c.id
HAVING SUM(p.points) > 0
ORDER BY points DESC, activities_count DESC
LIMIT ?`
		args = []any{since, limit}
	} else {
		query = `
SELECT c.id, c.full_name, c.phone, c.address, c.total_points,
       (SELECT COUNT(*) FROM citizen_points WHERE citizen_id = c.id) AS activities_count
FROM citizens c
WHERE c.is_active = 1 AND c.total_points > 0
ORDER BY c.total_points DESC, activities_count DESC
LIMIT ?`
		args = []any{limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("рейтинг: %w", err)
	}
	defer rows.Close()

	var out []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.CitizenID, &e.FullName, &e.Phone, &e.Address, &e.Points, &e.ActivitiesCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CitizenRank — позиция в рейтинге за всё время: единица плюс число
// активных граждан со строго большей суммой.
func (s *Service) CitizenRank(ctx context.Context, citizenID int64) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT total_points FROM citizens WHERE id = ? AND is_active = 1", citizenID).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("позиция в рейтинге: %w", err)
	}

	var ahead int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM citizens WHERE is_active = 1 AND total_points > ?", total).Scan(&ahead)
	if err != nil {
		return 0, fmt.Errorf("позиция в рейтинге: %w", err)
	}
	return ahead + 1, nil
}

// HistoryEntry — строка журнала вместе с названием собрания и автором.
type HistoryEntry struct {
	models.PointEntry
	MeetingTitle *string
	AwardedBy    *string
}

// History — журнал начислений гражданина, свежие сверху.
func (s *Service) History(ctx context.Context, citizenID int64, limit int) ([]HistoryEntry, error) {
	query := `
SELECT p.id, p.citizen_id, p.activity_type, p.points, p.description,
       p.meeting_id, p.date_earned, p.created_by,
       m.title, u.full_name
FROM citizen_points p
LEFT JOIN meetings m ON m.id = p.meeting_id
LEFT JOIN users u ON u.id = p.created_by
WHERE p.citizen_id = ?
ORDER BY p.date_earned DESC, p.id DESC`
	args := []any{citizenID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("история начислений: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var earned string
		err := rows.Scan(&e.ID, &e.CitizenID, &e.ActivityType, &e.Points, &e.Description,
			&e.MeetingID, &earned, &e.CreatedBy, &e.MeetingTitle, &e.AwardedBy)
		if err != nil {
			return nil, err
		}
		if t, perr := time.Parse(store.DateLayout, earned); perr == nil {
			e.DateEarned = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type ActivityStat struct {
	ActivityType string
	Count        int
	TotalPoints  int
}

func (s *Service) ActivityStatistics(ctx context.Context, days int) ([]ActivityStat, error) {
	since := time.Now().AddDate(0, 0, -days).Format(store.DateLayout)
	query := `
SELECT activity_type, COUNT(*), SUM(points)
FROM citizen_points
WHERE date_earned >= ?
GROUP BY activity_type
ORDER BY SUM(points) DESC`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("статистика активностей: %w", err)
	}
	defer rows.Close()

	var out []ActivityStat
	for rows.Next() {
		var st ActivityStat
		if err := rows.Scan(&st.ActivityType, &st.Count, &st.TotalPoints); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type MonthlySummary struct {
	TotalAwarded   int
	TotalDeducted  int
	ActiveCitizens int
	EntriesCount   int
}

func (s *Service) MonthlySummary(ctx context.Context, year int, month time.Month) (*MonthlySummary, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	query := `
SELECT COALESCE(SUM(CASE WHEN points > 0 THEN points ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN points < 0 THEN -points ELSE 0 END), 0),
       COUNT(DISTINCT citizen_id),
       COUNT(*)
FROM citizen_points
WHERE date_earned >= ? AND date_earned < ?`

	var sum MonthlySummary
	err := s.db.QueryRowContext(ctx, query,
		from.Format(store.DateLayout), to.Format(store.DateLayout)).
		Scan(&sum.TotalAwarded, &sum.TotalDeducted, &sum.ActiveCitizens, &sum.EntriesCount)
	if err != nil {
		return nil, fmt.Errorf("сводка за месяц: %w", err)
	}
	return &sum, nil
}

// distributionBuckets — фиксированный порядок групп распределения.
var distributionBuckets = []string{"0", "1-50", "51-100", "101-200", "201-500", "500+"}

type DistributionBucket struct {
	Range string
	Count int
}

// PointsDistribution — распределение активных граждан по диапазонам баллов.
// Все группы присутствуют в ответе, в том числе пустые.
func (s *Service) PointsDistribution(ctx context.Context) ([]DistributionBucket, error) {
	query := `
SELECT CASE
    WHEN total_points <= 0 THEN '0'
    WHEN total_points <= 50 THEN '1-50'
    WHEN total_points <= 100 THEN '51-100'
    WHEN total_points <= 200 THEN '101-200'
    WHEN total_points <= 500 THEN '201-500'
    ELSE '500+'
END AS bucket, COUNT(*)
FROM citizens
WHERE is_active = 1
GROUP BY bucket`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("распределение баллов: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var bucket string
		var n int
		if err := rows.Scan(&bucket, &n); err != nil {
			return nil, err
		}
		counts[bucket] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]DistributionBucket, 0, len(distributionBuckets))
	for _, b := range distributionBuckets {
		out = append(out, DistributionBucket{Range: b, Count: counts[b]})
	}
	return out, nil
}

// CitizenAchievements — значки гражданина по сумме баллов и числу активностей.
func (s *Service) CitizenAchievements(ctx context.Context, citizenID int64) ([]models.Achievement, error) {
	var total, activities int
	err := s.db.QueryRowContext(ctx, `
SELECT c.total_points,
       (SELECT COUNT(*) FROM citizen_points WHERE citizen_id = c.id AND points > 0)
FROM citizens c WHERE c.id = ?`, citizenID).Scan(&total, &activities)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("достижения: %w", err)
	}

	var out []models.Achievement
	if total >= 100 {
		out = append(out, models.Achievement{Name: "Активист", Description: "Набрано 100 и более баллов"})
	}
	if total >= 500 {
		out = append(out, models.Achievement{Name: "Лидер махалли", Description: "Набрано 500 и более баллов"})
	}
	if activities >= 20 {
		out = append(out, models.Achievement{Name: "Постоянный участник", Description: "20 и более активностей"})
	}
	return out, nil
}

func (s *Service) ActivityTypes(ctx context.Context) ([]models.ActivityType, error) {
	rows, err := s.types.GetAll(ctx, store.F().Eq("is_active", 1), "points_value DESC")
	if err != nil {
		return nil, err
	}
	out := make([]models.ActivityType, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ActivityType{
			ID:          row.Int64("id"),
			Name:        row.String("name"),
			DisplayName: row.String("display_name"),
			PointsValue: row.Int("points_value"),
			Description: row.String("description"),
			IsActive:    row.Bool("is_active"),
		})
	}
	return out, nil
}

func (s *Service) CreateActivityType(ctx context.Context, t models.ActivityType) (int64, validate.Errors, error) {
	errs := validate.Errors{}
	if t.Name == "" {
		errs.Add("name", "Системное имя обязательно")
	}
	if t.DisplayName == "" {
		errs.Add("display_name", "Отображаемое имя обязательно")
	}
	if !validate.PointsInRange(t.PointsValue) {
		errs.Add("points_value", "Номинал баллов не может превышать 1000 по модулю")
	}
	if t.Name != "" {
		taken, err := s.types.Exists(ctx, store.F().Eq("name", t.Name))
		if err != nil {
			return 0, nil, err
		}
		if taken || t.Name == models.PenaltyActivity {
			errs.Add("name", "Тип активности с таким именем уже существует")
		}
	}
	if !errs.OK() {
		return 0, errs, nil
	}
	id, err := s.types.Create(ctx, map[string]any{
		"name":         t.Name,
		"display_name": t.DisplayName,
		"points_value": t.PointsValue,
		"description":  t.Description,
		"is_active":    1,
	})
	if err != nil {
		return 0, nil, err
	}
	return id, nil, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
