package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/otabek-dev/mahalla-admin/internal/models"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"901234567", "+998901234567", true},
		{"+998901234567", "+998901234567", true},
		{"998901234567", "+998901234567", true},
		{"8901234567", "+998901234567", true},
		{"90 123-45-67", "+998901234567", true},
		{"(90) 123 45 67", "+998901234567", true},
		{"12345", "", false},
		{"+7901234567", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := NormalizePhone(c.in)
		if ok != c.ok {
			t.Errorf("NormalizePhone(%q): ok=%v, ожидали %v", c.in, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("NormalizePhone(%q) = %q, ожидали %q", c.in, got, c.want)
		}
	}
}

func TestNormalizePassport(t *testing.T) {
	if got := NormalizePassport(" ab 1234567 "); got != "AB1234567" {
		t.Fatalf("нормализация паспорта: %q", got)
	}
	if !ValidPassport("AB1234567") {
		t.Fatal("AB1234567 должен быть валидным")
	}
	for _, bad := range []string{"AB12345", "A1234567", "ABC123456", "ab1234567"} {
		if ValidPassport(bad) {
			t.Errorf("%q не должен быть валидным", bad)
		}
	}
}

func TestCitizen(t *testing.T) {
	phone := "+998901234567"
	passport := "AB1234567"

	t.Run("valid", func(t *testing.T) {
		birth := time.Date(1985, 3, 14, 0, 0, 0, 0, time.UTC)
		errs := Citizen(models.Citizen{
			FullName:     "Каримов Алишер Бахтиёрович",
			Phone:        &phone,
			PassportData: &passport,
			BirthDate:    &birth,
		})
		if !errs.OK() {
			t.Fatalf("не ожидали ошибок: %v", errs)
		}
	})

	t.Run("short_name", func(t *testing.T) {
		errs := Citizen(models.Citizen{FullName: "К"})
		if len(errs["full_name"]) == 0 {
			t.Fatal("ожидали ошибку по имени")
		}
	})

	t.Run("long_name", func(t *testing.T) {
		errs := Citizen(models.Citizen{FullName: strings.Repeat("а", 256)})
		if len(errs["full_name"]) == 0 {
			t.Fatal("ожидали ошибку по длине имени")
		}
	})

	t.Run("bad_phone", func(t *testing.T) {
		bad := "12345"
		errs := Citizen(models.Citizen{FullName: "Каримов Алишер", Phone: &bad})
		if len(errs["phone"]) == 0 {
			t.Fatal("ожидали ошибку по телефону")
		}
	})

	t.Run("future_birth_date", func(t *testing.T) {
		future := time.Now().AddDate(1, 0, 0)
		errs := Citizen(models.Citizen{FullName: "Каримов Алишер", BirthDate: &future})
		if len(errs["birth_date"]) == 0 {
			t.Fatal("ожидали ошибку по дате рождения")
		}
	})

	t.Run("too_old", func(t *testing.T) {
		ancient := time.Now().AddDate(-130, 0, 0)
		errs := Citizen(models.Citizen{FullName: "Каримов Алишер", BirthDate: &ancient})
		if len(errs["birth_date"]) == 0 {
			t.Fatal("ожидали ошибку по возрасту")
		}
	})
}

func TestMeeting(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		tm := "18:30"
		errs := Meeting(models.Meeting{
			Title:       "Собрание жителей",
			MeetingDate: time.Now().AddDate(0, 0, 7),
			MeetingTime: &tm,
		})
		if !errs.OK() {
			t.Fatalf("не ожидали ошибок: %v", errs)
		}
	})

	t.Run("missing_date", func(t *testing.T) {
		errs := Meeting(models.Meeting{Title: "Собрание жителей"})
		if len(errs["meeting_date"]) == 0 {
			t.Fatal("ожидали ошибку по дате")
		}
	})

	t.Run("too_far_past", func(t *testing.T) {
		errs := Meeting(models.Meeting{
			Title:       "Собрание жителей",
			MeetingDate: time.Now().AddDate(-2, 0, 0),
		})
		if len(errs["meeting_date"]) == 0 {
			t.Fatal("ожидали ошибку по давней дате")
		}
	})

	t.Run("bad_time", func(t *testing.T) {
		for _, bad := range []string{"25:00", "18:60", "1830", "6:5"} {
			tm := bad
			errs := Meeting(models.Meeting{
				Title:       "Собрание жителей",
				MeetingDate: time.Now(),
				MeetingTime: &tm,
			})
			if len(errs["meeting_time"]) == 0 {
				t.Errorf("время %q должно быть отвергнуто", bad)
			}
		}
	})

	t.Run("bad_status", func(t *testing.T) {
		errs := Meeting(models.Meeting{
			Title:       "Собрание жителей",
			MeetingDate: time.Now(),
			Status:      "UNKNOWN",
		})
		if len(errs["status"]) == 0 {
			t.Fatal("ожидали ошибку по статусу")
		}
	})
}

func TestCampaign(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		errs := Campaign(models.SMSCampaign{
			Title:       "Субботник",
			MessageText: "Приглашаем на субботник в субботу в 9:00",
		})
		if !errs.OK() {
			t.Fatalf("не ожидали ошибок: %v", errs)
		}
	})

	t.Run("short_message", func(t *testing.T) {
		errs := Campaign(models.SMSCampaign{Title: "Субботник", MessageText: "короткое"})
		if len(errs["message_text"]) == 0 {
			t.Fatal("ожидали ошибку по длине сообщения")
		}
	})

	t.Run("long_message", func(t *testing.T) {
		errs := Campaign(models.SMSCampaign{
			Title:       "Субботник",
			MessageText: strings.Repeat("а", SMSMaxLength+1),
		})
		if len(errs["message_text"]) == 0 {
			t.Fatal("ожидали ошибку по длине сообщения")
		}
	})
}

func TestEmergencyNotice(t *testing.T) {
	valid := models.EmergencyNotice{
		Title:         "Отключение воды",
		MessageText:   "Завтра с 9 до 15 отключение холодной воды",
		EmergencyType: "utility",
		Priority:      2,
	}
	if errs := EmergencyNotice(valid); !errs.OK() {
		t.Fatalf("не ожидали ошибок: %v", errs)
	}

	bad := valid
	bad.Priority = 5
	if errs := EmergencyNotice(bad); len(errs["priority"]) == 0 {
		t.Fatal("ожидали ошибку по приоритету")
	}

	bad = valid
	bad.EmergencyType = ""
	if errs := EmergencyNotice(bad); len(errs["emergency_type"]) == 0 {
		t.Fatal("ожидали ошибку по типу ЧС")
	}
}

func TestPointsInRange(t *testing.T) {
	for _, ok := range []int{1000, -1000, 0, 15} {
		if !PointsInRange(ok) {
			t.Errorf("%d должен быть допустим", ok)
		}
	}
	for _, bad := range []int{1001, -1001} {
		if PointsInRange(bad) {
			t.Errorf("%d должен быть отвергнут", bad)
		}
	}
}
