// Package store — обобщённый репозиторий поверх одной таблицы:
// CRUD, пагинация, поиск, массовая вставка. Каждая сущность получает
// свой экземпляр через Config с именем таблицы и контрактом полей.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/otabek-dev/mahalla-admin/internal/ctxutil"
	"github.com/otabek-dev/mahalla-admin/internal/metrics"
)

const (
	TimeLayout = "2006-01-02 15:04:05"
	DateLayout = "2006-01-02"
)

type Config struct {
	Table        string
	Columns      []string
	Required     []string
	SearchFields []string
}

type Store struct {
	db   *sql.DB
	log  *zap.Logger
	cfg  Config
	cols map[string]struct{}
}

func New(db *sql.DB, log *zap.Logger, cfg Config) *Store {
	cols := make(map[string]struct{}, len(cfg.Columns))
	for _, c := range cfg.Columns {
		cols[c] = struct{}{}
	}
	return &Store{db: db, log: log.With(zap.String("table", cfg.Table)), cfg: cfg, cols: cols}
}

func (s *Store) Table() string { return s.cfg.Table }
func (s *Store) DB() *sql.DB   { return s.db }

// Row — строка таблицы, адресуемая по имени колонки.
type Row map[string]any

func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func (r Row) Int(col string) int { return int(r.Int64(col)) }

func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

func (r Row) Bool(col string) bool { return r.Int64(col) != 0 }

func (r Row) IsNull(col string) bool { return r[col] == nil }

func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range []string{TimeLayout, DateLayout, time.RFC3339} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// Pagination — метаданные страницы, нумерация с единицы.
type Pagination struct {
	Page       int
	PageSize   int
	TotalCount int64
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

type Page struct {
	Data       []Row
	Pagination Pagination
}

func (s *Store) fail(op, query string, args []any, err error) error {
	metrics.StoreErrors.WithLabelValues(s.cfg.Table, op).Inc()
	s.log.Error("ошибка запроса к хранилищу",
		zap.String("op", op),
		zap.String("query", query),
		zap.Any("params", args),
		zap.Error(err),
	)
	if isConstraint(err) {
		err = fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return &StorageError{Op: op, Table: s.cfg.Table, Err: err}
}

func (s *Store) checkColumns(fields map[string]any) error {
	for col := range fields {
		if _, ok := s.cols[col]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, s.cfg.Table, col)
		}
	}
	return nil
}

// orderClause проверяет "col [ASC|DESC][, col ...]" по белому списку колонок.
func (s *Store) orderClause(orderBy string) (string, error) {
	if orderBy == "" {
		return "id", nil
	}
	parts := strings.Split(orderBy, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		tokens := strings.Fields(strings.TrimSpace(p))
		if len(tokens) == 0 || len(tokens) > 2 {
			return "", fmt.Errorf("%w: %q", ErrInvalidOrder, orderBy)
		}
		if _, ok := s.cols[tokens[0]]; !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidOrder, orderBy)
		}
		clause := tokens[0]
		if len(tokens) == 2 {
			switch strings.ToUpper(tokens[1]) {
			case "ASC", "DESC":
				clause += " " + strings.ToUpper(tokens[1])
			default:
				return "", fmt.Errorf("%w: %q", ErrInvalidOrder, orderBy)
			}
		}
		out = append(out, clause)
	}
	return strings.Join(out, ", "), nil
}

func sortedKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) stamp(fields map[string]any, create bool) map[string]any {
	return s.stampAt(fields, create, time.Now().UTC().Format(TimeLayout))
}

func (s *Store) stampAt(fields map[string]any, create bool, now string) map[string]any {
	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	if _, ok := s.cols["updated_at"]; ok {
		out["updated_at"] = now
	}
	if create {
		if _, ok := s.cols["created_at"]; ok {
			out["created_at"] = now
		}
	}
	return out
}

// Create вставляет запись, проставив created_at/updated_at, и возвращает id.
func (s *Store) Create(ctx context.Context, fields map[string]any) (int64, error) {
	if len(fields) == 0 {
		return 0, ErrEmptyFields
	}
	if err := s.checkColumns(fields); err != nil {
		return 0, err
	}
	fields = s.stamp(fields, true)

	keys := sortedKeys(fields)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, fields[k])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.cfg.Table, strings.Join(keys, ", "), marks)

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	metrics.StoreQueries.WithLabelValues(s.cfg.Table, "create").Inc()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, s.fail("create", query, args, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, s.fail("create", query, args, err)
	}
	return id, nil
}

// GetByID возвращает запись или ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = ?", s.cfg.Table)

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	metrics.StoreQueries.WithLabelValues(s.cfg.Table, "get").Inc()
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, s.fail("get", query, []any{id}, err)
	}
	result, err := scanRows(rows)
	if err != nil {
		return nil, s.fail("get", query, []any{id}, err)
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result[0], nil
}

// GetAll возвращает все записи, подходящие под фильтр.
func (s *Store) GetAll(ctx context.Context, f *Filter, orderBy string) ([]Row, error) {
	where, args, err := f.compile(s.cols)
	if err != nil {
		return nil, err
	}
	order, err := s.orderClause(orderBy)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s", s.cfg.Table)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + order

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	metrics.StoreQueries.WithLabelValues(s.cfg.Table, "list").Inc()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail("list", query, args, err)
	}
	result, err := scanRows(rows)
	if err != nil {
		return nil, s.fail("list", query, args, err)
	}
	return result, nil
}

// Update применяет частичное обновление. Проверки версий нет —
// побеждает последняя запись.
func (s *Store) Update(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return ErrEmptyFields
	}
	if err := s.checkColumns(fields); err != nil {
		return err
	}
	fields = s.stamp(fields, false)

	keys := sortedKeys(fields)
	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		sets = append(sets, k+" = ?")
		args = append(args, fields[k])
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", s.cfg.Table, strings.Join(sets, ", "))

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	metrics.StoreQueries.WithLabelValues(s.cfg.Table, "update").Inc()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return s.fail("update", query, args, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete помечает запись неактивной; строка остаётся для истории.
func (s *Store) SoftDelete(ctx context.Context, id int64) error {
	return s.Update(ctx, id, map[string]any{"is_active": 0})
}

func (s *Store) Count(ctx context.Context, f *Filter) (int64, error) {
	where, args, err := f.compile(s.cols)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.cfg.Table)
	if where != "" {
		query += " WHERE " + where
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	metrics.StoreQueries.WithLabelValues(s.cfg.Table, "count").Inc()
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, s.fail("count", query, args, err)
	}
	return n, nil
}

func (s *Store) Exists(ctx context.Context, f *Filter) (bool, error) {
	n, err := s.Count(ctx, f)
	return n > 0, err
}

// GetPaginated возвращает страницу записей. Страница за пределами
// диапазона — пустые данные, не ошибка.
func (s *Store) GetPaginated(ctx context.Context, page, pageSize int, f *Filter, orderBy string) (*Page, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("%w: page=%d page_size=%d", ErrInvalidPage, page, pageSize)
	}

	total, err := s.Count(ctx, f)
	if err != nil {
		return nil, err
	}

	where, args, err := f.compile(s.cols)
	if err != nil {
		return nil, err
	}
	order, err := s.orderClause(orderBy)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s", s.cfg.Table)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + order + " LIMIT ? OFFSET ?"
	args = append(args, pageSize, (page-1)*pageSize)

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	metrics.StoreQueries.WithLabelValues(s.cfg.Table, "paginate").Inc()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail("paginate", query, args, err)
	}
	data, err := scanRows(rows)
	if err != nil {
		return nil, s.fail("paginate", query, args, err)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &Page{
		Data: data,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalCount: total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
	}, nil
}

// Search — поиск подстроки без учёта регистра по перечисленным полям.
// При пустом списке используются SearchFields из конфигурации.
func (s *Store) Search(ctx context.Context, term string, fields []string) ([]Row, error) {
	if len(fields) == 0 {
		fields = s.cfg.SearchFields
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return s.GetAll(ctx, F().AnyLike(fields, term), "id")
}

// BulkInsert вставляет записи одной транзакцией: либо все, либо ни одной.
// Набор колонок берётся из первой записи.
func (s *Store) BulkInsert(ctx context.Context, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	// Один момент времени на всю пачку, чтобы created_at не расходился.
	now := time.Now().UTC().Format(TimeLayout)
	first := s.stampAt(rows[0], true, now)
	if err := s.checkColumns(first); err != nil {
		return err
	}
	keys := sortedKeys(first)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.cfg.Table, strings.Join(keys, ", "), marks)

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("bulk_insert", query, nil, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return s.fail("bulk_insert", query, nil, err)
	}
	defer stmt.Close()

	metrics.StoreQueries.WithLabelValues(s.cfg.Table, "bulk_insert").Inc()
	for _, row := range rows {
		stamped := s.stampAt(row, true, now)
		args := make([]any, 0, len(keys))
		for _, k := range keys {
			args = append(args, stamped[k])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return s.fail("bulk_insert", query, args, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.fail("bulk_insert", query, nil, err)
	}
	return nil
}

// Validate — проверка обязательных полей. Форматные и ссылочные правила
// добавляют сервисы сущностей поверх (пакет validate).
func (s *Store) Validate(fields map[string]any) map[string][]string {
	errs := map[string][]string{}
	for _, field := range s.cfg.Required {
		v, ok := fields[field]
		if !ok || v == nil || v == "" {
			errs[field] = append(errs[field], fmt.Sprintf("Поле «%s» обязательно для заполнения", field))
		}
	}
	return errs
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
