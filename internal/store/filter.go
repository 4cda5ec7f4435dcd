package store

import (
	"fmt"
	"strings"
)

// Filter — типобезопасная замена сырых SQL-фрагментов: условия собираются
// из белого списка операций, значения всегда уходят связанными параметрами,
// имена колонок проверяются по схеме таблицы при компиляции.
// Условия соединяются через AND.
type Filter struct {
	conds []cond
}

type cond struct {
	sql  string
	cols []string
	args []any
}

func F() *Filter { return &Filter{} }

func (f *Filter) add(sql string, cols []string, args ...any) *Filter {
	f.conds = append(f.conds, cond{sql: sql, cols: cols, args: args})
	return f
}

func (f *Filter) Eq(col string, v any) *Filter {
	return f.add(col+" = ?", []string{col}, v)
}

func (f *Filter) Ne(col string, v any) *Filter {
	return f.add(col+" <> ?", []string{col}, v)
}

func (f *Filter) Gt(col string, v any) *Filter {
	return f.add(col+" > ?", []string{col}, v)
}

func (f *Filter) Gte(col string, v any) *Filter {
	return f.add(col+" >= ?", []string{col}, v)
}

func (f *Filter) Lt(col string, v any) *Filter {
	return f.add(col+" < ?", []string{col}, v)
}

func (f *Filter) Lte(col string, v any) *Filter {
	return f.add(col+" <= ?", []string{col}, v)
}

func (f *Filter) IsNull(col string) *Filter {
	return f.add(col+" IS NULL", []string{col})
}

func (f *Filter) NotNull(col string) *Filter {
	return f.add(col+" IS NOT NULL", []string{col})
}

func (f *Filter) In(col string, vals ...any) *Filter {
	if len(vals) == 0 {
		// пустой IN не совпадает ни с чем
		return f.add("1 = 0", []string{col})
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")
	return f.add(col+" IN ("+marks+")", []string{col}, vals...)
}

// AnyLike — поиск подстроки без учёта регистра по нескольким колонкам (OR).
func (f *Filter) AnyLike(cols []string, term string) *Filter {
	if len(cols) == 0 {
		return f
	}
	parts := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	pattern := "%" + strings.ToUpper(term) + "%"
	for _, col := range cols {
		parts = append(parts, "UPPER("+col+") LIKE ?")
		args = append(args, pattern)
	}
	return f.add("("+strings.Join(parts, " OR ")+")", cols, args...)
}

func (f *Filter) empty() bool { return f == nil || len(f.conds) == 0 }

// compile проверяет колонки по белому списку и возвращает WHERE-часть
// (без слова WHERE) и связанные параметры.
func (f *Filter) compile(allowed map[string]struct{}) (string, []any, error) {
	if f.empty() {
		return "", nil, nil
	}
	parts := make([]string, 0, len(f.conds))
	var args []any
	for _, c := range f.conds {
		for _, col := range c.cols {
			if _, ok := allowed[col]; !ok {
				return "", nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
			}
		}
		parts = append(parts, c.sql)
		args = append(args, c.args...)
	}
	return strings.Join(parts, " AND "), args, nil
}
