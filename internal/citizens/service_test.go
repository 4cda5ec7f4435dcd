package citizens

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/otabek-dev/mahalla-admin/internal/models"
	"github.com/otabek-dev/mahalla-admin/internal/store"
	"github.com/otabek-dev/mahalla-admin/internal/testutil/testdb"
)

func newService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	database := testdb.Open(t)
	return NewService(database, testdb.Logger()), database
}

func strp(s string) *string { return &s }

func TestCreateNormalizes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	id, errs, err := svc.Create(ctx, models.Citizen{
		FullName:     "Каримов Алишер Бахтиёрович",
		Phone:        strp("90 123-45-67"),
		PassportData: strp(" ab 1234567"),
	})
	if err != nil || !errs.OK() {
		t.Fatalf("создание: err=%v errs=%v", err, errs)
	}

	c, err := svc.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("чтение: %v", err)
	}
	if c.Phone == nil || *c.Phone != "+998901234567" {
		t.Fatalf("телефон не нормализован: %v", c.Phone)
	}
	if c.PassportData == nil || *c.PassportData != "AB1234567" {
		t.Fatalf("паспорт не нормализован: %v", c.PassportData)
	}
	if !c.IsActive {
		t.Fatal("новый гражданин должен быть активен")
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	t.Run("bad_phone", func(t *testing.T) {
		_, errs, err := svc.Create(ctx, models.Citizen{
			FullName: "Каримов Алишер",
			Phone:    strp("12345"),
		})
		if err != nil {
			t.Fatalf("неожиданный сбой: %v", err)
		}
		if len(errs["phone"]) == 0 {
			t.Fatal("ожидали ошибку по телефону")
		}
	})

	t.Run("short_name", func(t *testing.T) {
		_, errs, err := svc.Create(ctx, models.Citizen{FullName: "К"})
		if err != nil {
			t.Fatalf("неожиданный сбой: %v", err)
		}
		if len(errs["full_name"]) == 0 {
			t.Fatal("ожидали ошибку по имени")
		}
	})
}

func TestPassportUniqueness(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	first, errs, err := svc.Create(ctx, models.Citizen{
		FullName:     "Каримов Алишер",
		PassportData: strp("AB1234567"),
	})
	if err != nil || !errs.OK() {
		t.Fatalf("создание: err=%v errs=%v", err, errs)
	}

	t.Run("duplicate_rejected", func(t *testing.T) {
		_, errs, err := svc.Create(ctx, models.Citizen{
			FullName:     "Другой Гражданин",
			PassportData: strp("ab1234567"), // совпадает после нормализации
		})
		if err != nil {
			t.Fatalf("неожиданный сбой: %v", err)
		}
		if len(errs["passport_data"]) == 0 {
			t.Fatal("ожидали ошибку уникальности паспорта")
		}
	})

	t.Run("update_own_passport_allowed", func(t *testing.T) {
		errs, err := svc.Update(ctx, first, models.Citizen{
			FullName:     "Каримов Алишер Бахтиёрович",
			PassportData: strp("AB1234567"),
		})
		if err != nil || !errs.OK() {
			t.Fatalf("обновление себя: err=%v errs=%v", err, errs)
		}
	})

	t.Run("after_deactivation_allowed", func(t *testing.T) {
		if err := svc.Deactivate(ctx, first, ""); err != nil {
			t.Fatalf("деактивация: %v", err)
		}
		_, errs, err := svc.Create(ctx, models.Citizen{
			FullName:     "Новый Жилец",
			PassportData: strp("AB1234567"),
		})
		if err != nil || !errs.OK() {
			t.Fatalf("паспорт выбывшего должен быть доступен: err=%v errs=%v", err, errs)
		}
	})
}

func TestDeactivatePreservesHistory(t *testing.T) {
	ctx := context.Background()
	svc, database := newService(t)

	id, errs, err := svc.Create(ctx, models.Citizen{FullName: "Каримов Алишер"})
	if err != nil || !errs.OK() {
		t.Fatalf("создание: err=%v errs=%v", err, errs)
	}
	if _, err := database.Exec(
		"INSERT INTO citizen_points (citizen_id, activity_type, points) VALUES (?, 'subbotnik', 15)", id); err != nil {
		t.Fatalf("фикстура баллов: %v", err)
	}

	if err := svc.Deactivate(ctx, id, "Переезд в другой район"); err != nil {
		t.Fatalf("деактивация: %v", err)
	}

	c, err := svc.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("строка должна сохраниться: %v", err)
	}
	if c.IsActive {
		t.Fatal("гражданин должен стать неактивным")
	}
	if c.Notes == nil || !strings.Contains(*c.Notes, "Деактивирован: Переезд в другой район") {
		t.Fatalf("причина не дописана в заметки: %v", c.Notes)
	}

	var n int
	if err := database.QueryRow(
		"SELECT COUNT(*) FROM citizen_points WHERE citizen_id = ?", id).Scan(&n); err != nil {
		t.Fatalf("проверка истории: %v", err)
	}
	if n != 1 {
		t.Fatalf("история баллов должна сохраниться, получили %d записей", n)
	}

	t.Run("activate_back", func(t *testing.T) {
		if err := svc.Activate(ctx, id); err != nil {
			t.Fatalf("активация: %v", err)
		}
		c, _ := svc.GetByID(ctx, id)
		if !c.IsActive {
			t.Fatal("гражданин должен снова стать активным")
		}
	})
}

func TestListAndLookups(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	fixtures := []models.Citizen{
		{FullName: "Abdullaev Timur", Phone: strp("901111111")},
		{FullName: "Boboev Sardor", Phone: strp("902222222"), PassportData: strp("CD7654321")},
		{FullName: "Ganiev Olim"},
	}
	for _, f := range fixtures {
		if _, errs, err := svc.Create(ctx, f); err != nil || !errs.OK() {
			t.Fatalf("фикстура %s: err=%v errs=%v", f.FullName, err, errs)
		}
	}

	t.Run("list_paginated", func(t *testing.T) {
		list, p, err := svc.List(ctx, 1, 2)
		if err != nil {
			t.Fatalf("список: %v", err)
		}
		if len(list) != 2 || p.TotalCount != 3 || !p.HasNext {
			t.Fatalf("пагинация неверна: %d строк, %+v", len(list), p)
		}
		if list[0].FullName != "Abdullaev Timur" {
			t.Fatalf("сортировка по имени нарушена: %s", list[0].FullName)
		}
	})

	t.Run("with_phones", func(t *testing.T) {
		list, err := svc.WithPhones(ctx)
		if err != nil {
			t.Fatalf("с телефонами: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("ожидали 2 граждан с телефонами, получили %d", len(list))
		}
	})

	t.Run("by_phone", func(t *testing.T) {
		c, err := svc.ByPhone(ctx, "90 222-22-22")
		if err != nil {
			t.Fatalf("поиск по телефону: %v", err)
		}
		if c.FullName != "Boboev Sardor" {
			t.Fatalf("нашли не того: %s", c.FullName)
		}
		if _, err := svc.ByPhone(ctx, "909999999"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("ожидали ErrNotFound, получили %v", err)
		}
	})

	t.Run("by_passport", func(t *testing.T) {
		c, err := svc.ByPassport(ctx, "cd 7654321")
		if err != nil {
			t.Fatalf("поиск по паспорту: %v", err)
		}
		if c.FullName != "Boboev Sardor" {
			t.Fatalf("нашли не того: %s", c.FullName)
		}
	})

	t.Run("search", func(t *testing.T) {
		list, err := svc.Search(ctx, "timur")
		if err != nil {
			t.Fatalf("поиск: %v", err)
		}
		if len(list) != 1 || list[0].FullName != "Abdullaev Timur" {
			t.Fatalf("поиск нашёл не то: %d строк", len(list))
		}
	})
}

func TestAgeQueries(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	birth := func(years int) *time.Time {
		d := time.Now().AddDate(-years, 0, -30)
		return &d
	}
	fixtures := []models.Citizen{
		{FullName: "Подросток Один", BirthDate: birth(15)},
		{FullName: "Взрослый Один", BirthDate: birth(25)},
		{FullName: "Взрослый Два", BirthDate: birth(45)},
		{FullName: "Старший Один", BirthDate: birth(75)},
		{FullName: "Без Даты"},
	}
	for _, f := range fixtures {
		if _, errs, err := svc.Create(ctx, f); err != nil || !errs.OK() {
			t.Fatalf("фикстура %s: err=%v errs=%v", f.FullName, err, errs)
		}
	}

	t.Run("age_statistics", func(t *testing.T) {
		stats, err := svc.AgeStatistics(ctx)
		if err != nil {
			t.Fatalf("статистика: %v", err)
		}
		if stats["До 18"] != 1 || stats["18-30"] != 1 || stats["31-50"] != 1 || stats["70+"] != 1 {
			t.Fatalf("распределение по возрасту неверно: %v", stats)
		}
	})

	t.Run("by_age_range", func(t *testing.T) {
		list, err := svc.ByAgeRange(ctx, 20, 50)
		if err != nil {
			t.Fatalf("диапазон возраста: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("ожидали 2 граждан 20-50 лет, получили %d", len(list))
		}
	})

	t.Run("birthday_list", func(t *testing.T) {
		month := time.Now().AddDate(0, 0, -30).Month()
		list, err := svc.BirthdayList(ctx, month)
		if err != nil {
			t.Fatalf("дни рождения: %v", err)
		}
		if len(list) != 4 {
			t.Fatalf("ожидали 4 именинников в месяце %d, получили %d", month, len(list))
		}
	})

	t.Run("statistics", func(t *testing.T) {
		st, err := svc.Statistics(ctx)
		if err != nil {
			t.Fatalf("сводка: %v", err)
		}
		if st.TotalCount != 5 || st.ActiveCount != 5 || st.WithPhones != 0 {
			t.Fatalf("сводка неверна: %+v", st)
		}
	})
}
