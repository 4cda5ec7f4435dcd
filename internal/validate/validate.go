// Package validate содержит правила проверки данных сущностей.
// Ошибки валидации возвращаются как данные (поле → список сообщений),
// а не как error: вызывающий обязан проверить Errs.OK() перед записью.
package validate

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/otabek-dev/mahalla-admin/internal/models"
)

type Errors map[string][]string

func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e Errors) Merge(other Errors) {
	for field, msgs := range other {
		e[field] = append(e[field], msgs...)
	}
}

// OK — true, если нарушений нет.
func (e Errors) OK() bool { return len(e) == 0 }

func (e Errors) String() string {
	if e.OK() {
		return ""
	}
	return fmt.Sprintf("%v", map[string][]string(e))
}

const (
	SMSMinLength = 10
	SMSMaxLength = 160

	maxCitizenAgeYears = 120
	maxMeetingPastDays = 365
)

var timeOfDayRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func textLen(s string, min, max int, field, label string, errs Errors) {
	n := utf8.RuneCountInString(s)
	if n < min || n > max {
		errs.Add(field, fmt.Sprintf("Поле «%s» должно содержать от %d до %d символов", label, min, max))
	}
}

// Citizen проверяет данные гражданина. Телефон и паспорт ожидаются
// уже нормализованными (NormalizePhone / NormalizePassport).
func Citizen(c models.Citizen) Errors {
	errs := Errors{}

	textLen(c.FullName, 2, 255, "full_name", "ФИО", errs)

	if c.Phone != nil && *c.Phone != "" {
		if !ValidPhone(*c.Phone) {
			errs.Add("phone", "Неверный формат номера телефона")
		}
	}

	if c.PassportData != nil && *c.PassportData != "" {
		if !ValidPassport(*c.PassportData) {
			errs.Add("passport_data", "Неверный формат паспортных данных")
		}
	}

	if c.BirthDate != nil {
		now := time.Now()
		if c.BirthDate.After(now) {
			errs.Add("birth_date", "Дата рождения не может быть в будущем")
		} else if c.BirthDate.Before(now.AddDate(-maxCitizenAgeYears, 0, 0)) {
			errs.Add("birth_date", fmt.Sprintf("Возраст не может превышать %d лет", maxCitizenAgeYears))
		}
	}

	return errs
}

func Meeting(m models.Meeting) Errors {
	errs := Errors{}

	textLen(m.Title, 3, 255, "title", "Название", errs)

	if m.MeetingDate.IsZero() {
		errs.Add("meeting_date", "Дата заседания обязательна")
	} else if m.MeetingDate.Before(time.Now().AddDate(0, 0, -maxMeetingPastDays)) {
		errs.Add("meeting_date", "Дата заседания слишком далеко в прошлом")
	}

	if m.MeetingTime != nil && *m.MeetingTime != "" {
		if !timeOfDayRe.MatchString(*m.MeetingTime) {
			errs.Add("meeting_time", "Неверный формат времени, ожидается ЧЧ:ММ")
		}
	}

	switch m.Status {
	case "", models.MeetingPlanned, models.MeetingCompleted, models.MeetingCancelled:
	default:
		errs.Add("status", fmt.Sprintf("Недопустимый статус заседания: %s", m.Status))
	}

	return errs
}

func Campaign(c models.SMSCampaign) Errors {
	errs := Errors{}

	textLen(c.Title, 3, 255, "title", "Заголовок", errs)
	textLen(c.MessageText, SMSMinLength, SMSMaxLength, "message_text", "Текст сообщения", errs)

	switch c.CampaignType {
	case "", models.CampaignRegular, models.CampaignEmergency, models.CampaignReminder:
	default:
		errs.Add("campaign_type", fmt.Sprintf("Недопустимый тип кампании: %s", c.CampaignType))
	}

	return errs
}

func EmergencyNotice(n models.EmergencyNotice) Errors {
	errs := Errors{}

	textLen(n.Title, 3, 255, "title", "Заголовок", errs)
	textLen(n.MessageText, SMSMinLength, SMSMaxLength, "message_text", "Текст сообщения", errs)

	if n.EmergencyType == "" {
		errs.Add("emergency_type", "Тип чрезвычайной ситуации обязателен")
	}
	if n.Priority < 1 || n.Priority > 3 {
		errs.Add("priority", "Приоритет должен быть от 1 до 3")
	}

	return errs
}

func User(u models.User, password string) Errors {
	errs := Errors{}

	textLen(u.Username, 3, 50, "username", "Имя пользователя", errs)
	textLen(u.FullName, 2, 255, "full_name", "Полное имя", errs)

	if utf8.RuneCountInString(password) < 6 {
		errs.Add("password", "Пароль должен содержать не менее 6 символов")
	}

	switch u.Role {
	case "", models.Admin, models.Chairman, models.Secretary, models.Operator:
	default:
		errs.Add("role", fmt.Sprintf("Недопустимая роль: %s", u.Role))
	}

	return errs
}

// PointsInRange — допустимый диапазон разового начисления.
func PointsInRange(points int) bool {
	return points >= -1000 && points <= 1000
}
