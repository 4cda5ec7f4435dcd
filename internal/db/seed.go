package db

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Seed вставляет начальные данные: администратора по умолчанию и
// стандартные типы активности. Повторный вызов — no-op.
func Seed(ctx context.Context, database *sql.DB, adminLogin, adminPassword string) error {
	var usersCount int
	if err := database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&usersCount); err != nil {
		return fmt.Errorf("проверка таблицы users: %w", err)
	}

	if usersCount == 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("хеширование пароля администратора: %w", err)
		}
		_, err = database.ExecContext(ctx, `
INSERT INTO users (username, password_hash, full_name, role)
VALUES (?, ?, ?, ?)`,
			adminLogin, string(hash), "Администратор системы", "admin")
		if err != nil {
			return fmt.Errorf("создание администратора: %w", err)
		}
	}

	activityTypes := []struct {
		Name        string
		DisplayName string
		Points      int
		Description string
	}{
		{"meeting_attendance", "Посещение заседания", 10, "Участие в общих собраниях махалли"},
		{"subbotnik", "Участие в субботнике", 15, "Участие в общественных работах и уборке"},
		{"community_work", "Общественная работа", 10, "Выполнение общественных поручений"},
		{"volunteer_work", "Волонтерская деятельность", 12, "Добровольная помощь соседям и махалле"},
		{"initiative", "Инициатива", 20, "Предложение полезных инициатив для махалли"},
	}

	var activitiesCount int
	if err := database.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_types`).Scan(&activitiesCount); err != nil {
		return fmt.Errorf("проверка таблицы activity_types: %w", err)
	}

	if activitiesCount == 0 {
		for _, at := range activityTypes {
			_, err := database.ExecContext(ctx, `
INSERT INTO activity_types (name, display_name, points_value, description)
VALUES (?, ?, ?, ?)`,
				at.Name, at.DisplayName, at.Points, at.Description)
			if err != nil {
				return fmt.Errorf("вставка типа активности %s: %w", at.Name, err)
			}
		}
	}

	return nil
}
