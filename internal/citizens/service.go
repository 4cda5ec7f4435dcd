// Package citizens — реестр граждан махалли.
package citizens

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

var columns = []string{
	"id", "full_name", "birth_date", "address", "phone", "passport_data",
	"registration_date", "is_active", "total_points", "notes", "created_at", "updated_at",
}

type Service struct {
	store *store.Store
	db    *sql.DB
	log   *zap.Logger
}

func NewService(database *sql.DB, log *zap.Logger) *Service {
	st := store.New(database, log, store.Config{
		Table:        "citizens",
		Columns:      columns,
		Required:     []string{"full_name"},
		SearchFields: []string{"full_name", "address", "phone", "passport_data"},
	})
	return &Service{store: st, db: database, log: log.Named("citizens")}
}

// Store отдаёт обобщённый репозиторий таблицы (для пагинации и поиска
// на стороне представления).
func (s *Service) Store() *store.Store { return s.store }

// normalize приводит телефон и паспорт к каноническому виду.
// Нераспознанный телефон оставляется как есть и отбрасывается валидацией.
func normalize(c *models.Citizen) {
	if c.Phone != nil && *c.Phone != "" {
		if norm, ok := validate.NormalizePhone(*c.Phone); ok {
			c.Phone = &norm
		}
	}
	if c.PassportData != nil && *c.PassportData != "" {
		norm := validate.NormalizePassport(*c.PassportData)
		c.PassportData = &norm
	}
}

func (s *Service) checkPassportUnique(ctx context.Context, c models.Citizen, excludeID int64, errs validate.Errors) error {
	if c.PassportData == nil || !validate.ValidPassport(*c.PassportData) {
		return nil
	}
	f := store.F().Eq("passport_data", *c.PassportData).Eq("is_active", 1)
	if excludeID > 0 {
		f = f.Ne("id", excludeID)
	}
	exists, err := s.store.Exists(ctx, f)
	if err != nil {
		return err
	}
	if exists {
		errs.Add("passport_data", "Гражданин с такими паспортными данными уже зарегистрирован")
	}
	return nil
}

func fields(c models.Citizen) map[string]any {
	out := map[string]any{
		"full_name": c.FullName,
	}
	if c.BirthDate != nil {
		out["birth_date"] = c.BirthDate.Format(store.DateLayout)
	}
	if c.Address != nil {
		out["address"] = *c.Address
	}
	if c.Phone != nil {
		out["phone"] = *c.Phone
	}
	if c.PassportData != nil {
		out["passport_data"] = *c.PassportData
	}
	if c.Notes != nil {
		out["notes"] = *c.Notes
	}
	return out
}

// Create регистрирует гражданина. Нарушения правил возвращаются как
// validate.Errors, сбой хранилища — как error.
func (s *Service) Create(ctx context.Context, c models.Citizen) (int64, validate.Errors, error) {
	normalize(&c)

	errs := validate.Citizen(c)
	if err := s.checkPassportUnique(ctx, c, 0, errs); err != nil {
		return 0, nil, err
	}
	if !errs.OK() {
		return 0, errs, nil
	}

	id, err := s.store.Create(ctx, fields(c))
	if err != nil {
		return 0, nil, err
	}
	s.log.Info("гражданин зарегистрирован", zap.Int64("id", id), zap.String("full_name", c.FullName))
	return id, nil, nil
}

func (s *Service) Update(ctx context.Context, id int64, c models.Citizen) (validate.Errors, error) {
	normalize(&c)

	errs := validate.Citizen(c)
	if err := s.checkPassportUnique(ctx, c, id, errs); err != nil {
		return nil, err
	}
	if !errs.OK() {
		return errs, nil
	}

	return nil, s.store.Update(ctx, id, fields(c))
}

func (s *Service) GetByID(ctx context.Context, id int64) (*models.Citizen, error) {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c := fromRow(row)
	return &c, nil
}

// List — активные граждане постранично.
func (s *Service) List(ctx context.Context, page, pageSize int) ([]models.Citizen, store.Pagination, error) {
	p, err := s.store.GetPaginated(ctx, page, pageSize, store.F().Eq("is_active", 1), "full_name")
	if err != nil {
		return nil, store.Pagination{}, err
	}
	return fromRows(p.Data), p.Pagination, nil
}

func (s *Service) Search(ctx context.Context, term string) ([]models.Citizen, error) {
	rows, err := s.store.Search(ctx, term, nil)
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *Service) GetActive(ctx context.Context) ([]models.Citizen, error) {
	rows, err := s.store.GetAll(ctx, store.F().Eq("is_active", 1), "full_name")
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

// WithPhones — активные граждане, которым можно отправить SMS.
func (s *Service) WithPhones(ctx context.Context) ([]models.Citizen, error) {
	rows, err := s.store.GetAll(ctx,
		store.F().Eq("is_active", 1).NotNull("phone").Ne("phone", ""), "full_name")
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *Service) ByPhone(ctx context.Context, phone string) (*models.Citizen, error) {
	norm, ok := validate.NormalizePhone(phone)
	if !ok {
		return nil, store.ErrNotFound
	}
	rows, err := s.store.GetAll(ctx, store.F().Eq("phone", norm), "id")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	c := fromRow(rows[0])
	return &c, nil
}

func (s *Service) ByPassport(ctx context.Context, passport string) (*models.Citizen, error) {
	rows, err := s.store.GetAll(ctx,
		store.F().Eq("passport_data", validate.NormalizePassport(passport)), "id")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	c := fromRow(rows[0])
	return &c, nil
}

// Deactivate — мягкое удаление: история баллов и посещаемости сохраняется.
func (s *Service) Deactivate(ctx context.Context, id int64, reason string) error {
	if err := s.store.SoftDelete(ctx, id); err != nil {
		return err
	}
	if reason != "" {
		row, err := s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		notes := row.String("notes")
		stamp := time.Now().Format("2006-01-02 15:04")
		notes = fmt.Sprintf("%s\nДеактивирован: %s (%s)", notes, reason, stamp)
		if err := s.store.Update(ctx, id, map[string]any{"notes": notes}); err != nil {
			return err
		}
	}
	s.log.Info("гражданин деактивирован", zap.Int64("id", id), zap.String("reason", reason))
	return nil
}

func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.store.Update(ctx, id, map[string]any{"is_active": 1})
}

// AgeStatistics — распределение активных граждан по возрастным группам.
func (s *Service) AgeStatistics(ctx context.Context) (map[string]int, error) {
	query := `
SELECT
    CASE
        WHEN (julianday('now') - julianday(birth_date))/365.25 < 18 THEN 'До 18'
        WHEN (julianday('now') - julianday(birth_date))/365.25 BETWEEN 18 AND 30 THEN '18-30'
        WHEN (julianday('now') - julianday(birth_date))/365.25 BETWEEN 31 AND 50 THEN '31-50'
        WHEN (julianday('now') - julianday(birth_date))/365.25 BETWEEN 51 AND 70 THEN '51-70'
        ELSE '70+'
    END AS age_group,
    COUNT(*) AS cnt
FROM citizens
WHERE is_active = 1 AND birth_date IS NOT NULL
GROUP BY age_group`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("статистика по возрасту: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var group string
		var cnt int
		if err := rows.Scan(&group, &cnt); err != nil {
			return nil, err
		}
		out[group] = cnt
	}
	return out, rows.Err()
}

func (s *Service) ByAgeRange(ctx context.Context, minAge, maxAge int) ([]models.Citizen, error) {
	query := `
SELECT * FROM citizens
WHERE is_active = 1
  AND birth_date IS NOT NULL
  AND (julianday('now') - julianday(birth_date))/365.25 BETWEEN ? AND ?
ORDER BY birth_date DESC`

	return s.queryCitizens(ctx, query, minAge, maxAge)
}

// BirthdayList — активные граждане с днём рождения в указанном месяце.
func (s *Service) BirthdayList(ctx context.Context, month time.Month) ([]models.Citizen, error) {
	query := `
SELECT * FROM citizens
WHERE is_active = 1
  AND birth_date IS NOT NULL
  AND strftime('%m', birth_date) = ?
ORDER BY strftime('%d', birth_date)`

	return s.queryCitizens(ctx, query, fmt.Sprintf("%02d", int(month)))
}

type Statistics struct {
	TotalCount  int64
	ActiveCount int64
	WithPhones  int64
	RecentCount int64
	AgeGroups   map[string]int
}

func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	total, err := s.store.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	active, err := s.store.Count(ctx, store.F().Eq("is_active", 1))
	if err != nil {
		return nil, err
	}
	withPhones, err := s.store.Count(ctx,
		store.F().Eq("is_active", 1).NotNull("phone").Ne("phone", ""))
	if err != nil {
		return nil, err
	}
	monthAgo := time.Now().AddDate(0, 0, -30).UTC().Format(store.TimeLayout)
	recent, err := s.store.Count(ctx, store.F().Gte("created_at", monthAgo))
	if err != nil {
		return nil, err
	}
	ageGroups, err := s.AgeStatistics(ctx)
	if err != nil {
		return nil, err
	}
	return &Statistics{
		TotalCount:  total,
		ActiveCount: active,
		WithPhones:  withPhones,
		RecentCount: recent,
		AgeGroups:   ageGroups,
	}, nil
}

func (s *Service) queryCitizens(ctx context.Context, query string, args ...any) ([]models.Citizen, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Citizen
	for rows.Next() {
		var c models.Citizen
		var birthDate, regDate, createdAt, updatedAt sql.NullString
		err := rows.Scan(&c.ID, &c.FullName, &birthDate, &c.Address, &c.Phone, &c.PassportData,
			&regDate, &c.IsActive, &c.TotalPoints, &c.Notes, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}
		c.BirthDate = parseDate(birthDate)
		c.RegistrationDate = parseDate(regDate)
		out = append(out, c)
	}
	return out, rows.Err()
}

func parseDate(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	for _, layout := range []string{store.DateLayout, store.TimeLayout} {
		if t, err := time.Parse(layout, v.String); err == nil {
			return &t
		}
	}
	return nil
}

func fromRow(row store.Row) models.Citizen {
	c := models.Citizen{
		ID:          row.Int64("id"),
		FullName:    row.String("full_name"),
		IsActive:    row.Bool("is_active"),
		TotalPoints: row.Int("total_points"),
		CreatedAt:   row.Time("created_at"),
		UpdatedAt:   row.Time("updated_at"),
	}
	if !row.IsNull("birth_date") {
		t := row.Time("birth_date")
		c.BirthDate = &t
	}
	if !row.IsNull("registration_date") {
		t := row.Time("registration_date")
		c.RegistrationDate = &t
	}
	if !row.IsNull("address") {
		v := row.String("address")
		c.Address = &v
	}
	if !row.IsNull("phone") {
		v := row.String("phone")
		c.Phone = &v
	}
	if !row.IsNull("passport_data") {
		v := row.String("passport_data")
		c.PassportData = &v
	}
	if !row.IsNull("notes") {
		v := row.String("notes")
		c.Notes = &v
	}
	return c
}

func fromRows(rows []store.Row) []models.Citizen {
	out := make([]models.Citizen, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out
}
