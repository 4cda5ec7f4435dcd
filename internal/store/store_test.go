package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/otabek-dev/mahalla-admin/internal/testutil/testdb"
)

func citizensStore(t *testing.T) *Store {
	t.Helper()
	database := testdb.Open(t)
	return New(database, testdb.Logger(), Config{
		Table: "citizens",
		Columns: []string{
			"id", "full_name", "birth_date", "address", "phone", "passport_data",
			"registration_date", "is_active", "total_points", "notes", "created_at", "updated_at",
		},
		Required:     []string{"full_name"},
		SearchFields: []string{"full_name", "phone"},
	})
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	st := citizensStore(t)

	id, err := st.Create(ctx, map[string]any{
		"full_name": "Каримов Алишер",
		"phone":     "+998901234567",
		"is_active": 1,
	})
	if err != nil {
		t.Fatalf("создание: %v", err)
	}
	if id == 0 {
		t.Fatal("ожидали ненулевой id")
	}

	t.Run("get_by_id", func(t *testing.T) {
		row, err := st.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("чтение: %v", err)
		}
		if row.String("full_name") != "Каримов Алишер" {
			t.Fatalf("неожиданное имя: %q", row.String("full_name"))
		}
		if row.String("created_at") == "" || row.String("updated_at") == "" {
			t.Fatal("created_at/updated_at должны быть проставлены")
		}
	})

	t.Run("get_missing", func(t *testing.T) {
		if _, err := st.GetByID(ctx, 99999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("ожидали ErrNotFound, получили %v", err)
		}
	})

	t.Run("update", func(t *testing.T) {
		if err := st.Update(ctx, id, map[string]any{"address": "ул. Навои, 12"}); err != nil {
			t.Fatalf("обновление: %v", err)
		}
		row, _ := st.GetByID(ctx, id)
		if row.String("address") != "ул. Навои, 12" {
			t.Fatalf("адрес не обновился: %q", row.String("address"))
		}
	})

	t.Run("update_missing", func(t *testing.T) {
		err := st.Update(ctx, 99999, map[string]any{"address": "нет"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("ожидали ErrNotFound, получили %v", err)
		}
	})

	t.Run("unknown_column", func(t *testing.T) {
		_, err := st.Create(ctx, map[string]any{"full_name": "X", "nope": 1})
		if !errors.Is(err, ErrUnknownColumn) {
			t.Fatalf("ожидали ErrUnknownColumn, получили %v", err)
		}
	})

	t.Run("empty_fields", func(t *testing.T) {
		if _, err := st.Create(ctx, nil); !errors.Is(err, ErrEmptyFields) {
			t.Fatalf("ожидали ErrEmptyFields, получили %v", err)
		}
	})

	t.Run("soft_delete", func(t *testing.T) {
		if err := st.SoftDelete(ctx, id); err != nil {
			t.Fatalf("мягкое удаление: %v", err)
		}
		row, err := st.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("строка должна остаться после мягкого удаления: %v", err)
		}
		if row.Bool("is_active") {
			t.Fatal("после мягкого удаления is_active должен быть 0")
		}
	})
}

func TestStorePagination(t *testing.T) {
	ctx := context.Background()
	st := citizensStore(t)

	for i := 1; i <= 25; i++ {
		_, err := st.Create(ctx, map[string]any{
			"full_name": fmt.Sprintf("Гражданин %02d", i),
			"is_active": 1,
		})
		if err != nil {
			t.Fatalf("создание %d: %v", i, err)
		}
	}

	t.Run("first_page", func(t *testing.T) {
		p, err := st.GetPaginated(ctx, 1, 10, nil, "id")
		if err != nil {
			t.Fatalf("первая страница: %v", err)
		}
		if len(p.Data) != 10 || p.Pagination.TotalCount != 25 || p.Pagination.TotalPages != 3 {
			t.Fatalf("неожиданная пагинация: %+v", p.Pagination)
		}
		if p.Pagination.HasPrev || !p.Pagination.HasNext {
			t.Fatalf("флаги навигации неверны: %+v", p.Pagination)
		}
	})

	t.Run("last_page", func(t *testing.T) {
		p, err := st.GetPaginated(ctx, 3, 10, nil, "id")
		if err != nil {
			t.Fatalf("последняя страница: %v", err)
		}
		if len(p.Data) != 5 || p.Pagination.HasNext || !p.Pagination.HasPrev {
			t.Fatalf("последняя страница неверна: %d строк, %+v", len(p.Data), p.Pagination)
		}
	})

	t.Run("out_of_range_page_empty", func(t *testing.T) {
		p, err := st.GetPaginated(ctx, 10, 10, nil, "id")
		if err != nil {
			t.Fatalf("страница за пределами: %v", err)
		}
		if len(p.Data) != 0 {
			t.Fatalf("ожидали пустые данные, получили %d строк", len(p.Data))
		}
	})

	t.Run("invalid_page", func(t *testing.T) {
		if _, err := st.GetPaginated(ctx, 0, 10, nil, "id"); !errors.Is(err, ErrInvalidPage) {
			t.Fatalf("ожидали ErrInvalidPage, получили %v", err)
		}
		if _, err := st.GetPaginated(ctx, 1, 0, nil, "id"); !errors.Is(err, ErrInvalidPage) {
			t.Fatalf("ожидали ErrInvalidPage, получили %v", err)
		}
	})

	t.Run("order_whitelist", func(t *testing.T) {
		if _, err := st.GetAll(ctx, nil, "full_name; DROP TABLE citizens"); !errors.Is(err, ErrInvalidOrder) {
			t.Fatalf("ожидали ErrInvalidOrder, получили %v", err)
		}
		if _, err := st.GetAll(ctx, nil, "full_name DESC, id"); err != nil {
			t.Fatalf("валидная сортировка не прошла: %v", err)
		}
	})
}

func TestStoreFilterAndSearch(t *testing.T) {
	ctx := context.Background()
	st := citizensStore(t)

	fixtures := []map[string]any{
		{"full_name": "Rustamov Bobur", "phone": "+998901112233", "is_active": 1},
		{"full_name": "Saidova Nilufar", "phone": "+998977654321", "is_active": 1},
		{"full_name": "Karimov Aziz", "is_active": 0},
	}
	for _, f := range fixtures {
		if _, err := st.Create(ctx, f); err != nil {
			t.Fatalf("фикстура: %v", err)
		}
	}

	t.Run("filter_eq", func(t *testing.T) {
		n, err := st.Count(ctx, F().Eq("is_active", 1))
		if err != nil {
			t.Fatalf("подсчёт: %v", err)
		}
		if n != 2 {
			t.Fatalf("ожидали 2 активных, получили %d", n)
		}
	})

	t.Run("filter_not_null", func(t *testing.T) {
		n, err := st.Count(ctx, F().NotNull("phone"))
		if err != nil {
			t.Fatalf("подсчёт: %v", err)
		}
		if n != 2 {
			t.Fatalf("ожидали 2 с телефоном, получили %d", n)
		}
	})

	t.Run("filter_in", func(t *testing.T) {
		n, err := st.Count(ctx, F().In("full_name", "Rustamov Bobur", "Karimov Aziz"))
		if err != nil {
			t.Fatalf("подсчёт: %v", err)
		}
		if n != 2 {
			t.Fatalf("ожидали 2, получили %d", n)
		}
	})

	t.Run("filter_empty_in", func(t *testing.T) {
		n, err := st.Count(ctx, F().In("full_name"))
		if err != nil {
			t.Fatalf("подсчёт: %v", err)
		}
		if n != 0 {
			t.Fatalf("пустой IN должен быть пустым, получили %d", n)
		}
	})

	t.Run("filter_unknown_column", func(t *testing.T) {
		if _, err := st.Count(ctx, F().Eq("password", "x")); !errors.Is(err, ErrUnknownColumn) {
			t.Fatalf("ожидали ErrUnknownColumn, получили %v", err)
		}
	})

	t.Run("search_case_insensitive", func(t *testing.T) {
		rows, err := st.Search(ctx, "rustamov", nil)
		if err != nil {
			t.Fatalf("поиск: %v", err)
		}
		if len(rows) != 1 || rows[0].String("full_name") != "Rustamov Bobur" {
			t.Fatalf("поиск нашёл не то: %d строк", len(rows))
		}
	})

	t.Run("search_by_phone_fragment", func(t *testing.T) {
		rows, err := st.Search(ctx, "7654", nil)
		if err != nil {
			t.Fatalf("поиск: %v", err)
		}
		if len(rows) != 1 || rows[0].String("full_name") != "Saidova Nilufar" {
			t.Fatalf("поиск по телефону нашёл не то: %d строк", len(rows))
		}
	})
}

func TestStoreBulkInsert(t *testing.T) {
	ctx := context.Background()
	st := citizensStore(t)

	t.Run("all_inserted", func(t *testing.T) {
		rows := []map[string]any{
			{"full_name": "Первый", "is_active": 1},
			{"full_name": "Второй", "is_active": 1},
			{"full_name": "Третий", "is_active": 1},
		}
		if err := st.BulkInsert(ctx, rows); err != nil {
			t.Fatalf("массовая вставка: %v", err)
		}
		n, _ := st.Count(ctx, nil)
		if n != 3 {
			t.Fatalf("ожидали 3 строки, получили %d", n)
		}
	})

	t.Run("uniform_timestamps", func(t *testing.T) {
		inserted, err := st.GetAll(ctx, nil, "id")
		if err != nil {
			t.Fatalf("чтение: %v", err)
		}
		for _, r := range inserted[1:] {
			if r.String("created_at") != inserted[0].String("created_at") {
				t.Fatalf("created_at пачки различаются: %q и %q",
					inserted[0].String("created_at"), r.String("created_at"))
			}
		}
	})

	t.Run("atomic_rollback", func(t *testing.T) {
		before, _ := st.Count(ctx, nil)
		rows := []map[string]any{
			{"full_name": "Хороший", "is_active": 1},
			{"full_name": nil, "is_active": 1}, // нарушает NOT NULL
		}
		if err := st.BulkInsert(ctx, rows); err == nil {
			t.Fatal("ожидали ошибку вставки")
		}
		after, _ := st.Count(ctx, nil)
		if after != before {
			t.Fatalf("транзакция не откатилась: было %d, стало %d", before, after)
		}
	})
}

func TestStoreValidateRequired(t *testing.T) {
	st := citizensStore(t)

	errs := st.Validate(map[string]any{"phone": "+998901234567"})
	if len(errs["full_name"]) == 0 {
		t.Fatal("ожидали ошибку по full_name")
	}
	errs = st.Validate(map[string]any{"full_name": "Каримов"})
	if len(errs) != 0 {
		t.Fatalf("не ожидали ошибок: %v", errs)
	}
}
