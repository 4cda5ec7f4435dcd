// Package export — выгрузка отчётов в Excel.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

type SheetSpec struct {
	Title  string
	Header []string
	Rows   [][]string
}

type Workbook struct {
	File *excelize.File
}

func NewWorkbook(sheets []SheetSpec) (*Workbook, error) {
	f := excelize.NewFile()

	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	// автофильтр только в первой строке
	for i, s := range sheets {
		name := s.Title
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, fmt.Errorf("new sheet: %w", err)
			}
		}
		// заголовки
		for col, h := range s.Header {
			cell := fmt.Sprintf("%s1", colName(col+1))
			if err := f.SetCellStr(name, cell, h); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
		end := colName(len(s.Header)) + "1"
		_ = f.SetCellStyle(name, "A1", end, bold)
		_ = f.AutoFilter(name, "A1:"+end, nil)

		// строки
		for r, row := range s.Rows {
			for c, val := range row {
				cell := fmt.Sprintf("%s%d", colName(c+1), r+2)
				if err := f.SetCellStr(name, cell, val); err != nil {
					return nil, fmt.Errorf("set cell %s: %w", cell, err)
				}
			}
		}
		// эвристическая ширина: по длине заголовка и первых строк
		for c := 1; c <= len(s.Header); c++ {
			maxim := len(s.Header[c-1])
			for r := 0; r < minim(50, len(s.Rows)); r++ {
				if l := len(s.Rows[r][c-1]); l > maxim {
					maxim = l
				}
			}
			w := float64(maxim) * 0.9
			if w < 12 {
				w = 12
			}
			if w > 40 {
				w = 40
			}
			_ = f.SetColWidth(name, colName(c), colName(c), w)
		}
	}
	return &Workbook{File: f}, nil
}

func (w *Workbook) SaveTemp(prefix string) (string, error) {
	name := fmt.Sprintf("%s_%s.xlsx", prefix, time.Now().Format("2006-01-02"))
	path := "/tmp/" + name
	return path, w.File.SaveAs(path)
}

// PointsReport собирает отчёт по баллам: граждане с суммами, статистика
// типов активностей и сводка за период periodDays (0 — за всё время).
func PointsReport(ctx context.Context, db *sql.DB, periodDays int) (*Workbook, error) {
	var since string
	if periodDays > 0 {
		since = time.Now().AddDate(0, 0, -periodDays).Format("2006-01-02")
	} else {
		since = "0001-01-01"
	}

	citizens, err := citizenRows(ctx, db, since)
	if err != nil {
		return nil, err
	}
	activities, err := activityRows(ctx, db, since)
	if err != nil {
		return nil, err
	}
	summary, err := summaryRows(ctx, db, since)
	if err != nil {
		return nil, err
	}

	return NewWorkbook([]SheetSpec{
		{
			Title:  "Граждане",
			Header: []string{"ФИО", "Телефон", "Адрес", "Баллы за период", "Всего баллов", "Активностей"},
			Rows:   citizens,
		},
		{
			Title:  "Статистика активностей",
			Header: []string{"Тип активности", "Начислений", "Сумма баллов"},
			Rows:   activities,
		},
		{
			Title:  "Сводка",
			Header: []string{"Показатель", "Значение"},
			Rows:   summary,
		},
	})
}

func citizenRows(ctx context.Context, db *sql.DB, since string) ([][]string, error) {
	query := `
SELECT c.full_name, COALESCE(c.phone, ''), COALESCE(c.address, ''),
       COALESCE((SELECT SUM(points) FROM citizen_points
                 WHERE citizen_id = c.id AND date_earned >= ?), 0) AS period_points,
       c.total_points,
       (SELECT COUNT(*) FROM citizen_points WHERE citizen_id = c.id) AS activities
FROM citizens c
WHERE c.is_active = 1
ORDER BY period_points DESC, c.full_name`

	rows, err := db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("выгрузка граждан: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var name, phone, address string
		var period, total, activities int
		if err := rows.Scan(&name, &phone, &address, &period, &total, &activities); err != nil {
			return nil, err
		}
		out = append(out, []string{
			name, phone, address,
			strconv.Itoa(period), strconv.Itoa(total), strconv.Itoa(activities),
		})
	}
	return out, rows.Err()
}

func activityRows(ctx context.Context, db *sql.DB, since string) ([][]string, error) {
	query := `
SELECT p.activity_type, COALESCE(t.display_name, p.activity_type),
       COUNT(*), SUM(p.points)
FROM citizen_points p
LEFT JOIN activity_types t ON t.name = p.activity_type
WHERE p.date_earned >= ?
GROUP BY p.activity_type
ORDER BY SUM(p.points) DESC`

	rows, err := db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("выгрузка активностей: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var name, display string
		var count, points int
		if err := rows.Scan(&name, &display, &count, &points); err != nil {
			return nil, err
		}
		out = append(out, []string{display, strconv.Itoa(count), strconv.Itoa(points)})
	}
	return out, rows.Err()
}

func summaryRows(ctx context.Context, db *sql.DB, since string) ([][]string, error) {
	query := `
SELECT
    (SELECT COUNT(*) FROM citizens WHERE is_active = 1),
    (SELECT COUNT(DISTINCT citizen_id) FROM citizen_points WHERE date_earned >= ?),
    (SELECT COALESCE(SUM(points), 0) FROM citizen_points WHERE date_earned >= ? AND points > 0),
    (SELECT COALESCE(SUM(-points), 0) FROM citizen_points WHERE date_earned >= ? AND points < 0)`

	var active, participants, awarded, deducted int
	err := db.QueryRowContext(ctx, query, since, since, since).
		Scan(&active, &participants, &awarded, &deducted)
	if err != nil {
		return nil, fmt.Errorf("выгрузка сводки: %w", err)
	}

	return [][]string{
		{"Активных граждан", strconv.Itoa(active)},
		{"Участников с начислениями", strconv.Itoa(participants)},
		{"Начислено баллов", strconv.Itoa(awarded)},
		{"Снято баллов", strconv.Itoa(deducted)},
	}, nil
}

// helpers
func colName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}

func minim(a, b int) int {
	if a < b {
		return a
	}
	return b
}
