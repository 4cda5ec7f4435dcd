// Package auth — учётные записи сотрудников и проверка прав по ролям.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/otabek-dev/mahalla-admin/internal/models"
	"github.com/otabek-dev/mahalla-admin/internal/store"
	"github.com/otabek-dev/mahalla-admin/internal/validate"
)

var ErrInvalidCredentials = errors.New("неверный логин или пароль")

var userColumns = []string{
	"id", "username", "password_hash", "full_name", "role",
	"is_active", "last_login", "created_at", "updated_at",
}

// rolePermissions — что разрешено каждой роли. Админу разрешено всё.
var rolePermissions = map[models.Role][]string{
	models.Admin:     {"*"},
	models.Chairman:  {"citizens", "meetings", "sms", "points", "reports", "export"},
	models.Secretary: {"citizens", "meetings", "points", "reports"},
	models.Operator:  {"citizens", "sms"},
}

type Service struct {
	store *store.Store
	db    *sql.DB
	log   *zap.Logger
}

func NewService(database *sql.DB, log *zap.Logger) *Service {
	return &Service{
		store: store.New(database, log, store.Config{
			Table:    "users",
			Columns:  userColumns,
			Required: []string{"username", "password_hash"},
		}),
		db:  database,
		log: log.Named("auth"),
	}
}

// Authenticate проверяет пароль активного пользователя и отмечает вход.
// Неверные учётные данные и несуществующий логин неразличимы снаружи.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	rows, err := s.store.GetAll(ctx, store.F().Eq("username", username).Eq("is_active", 1), "id")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrInvalidCredentials
	}
	u := fromRow(rows[0])

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.Warn("неудачная попытка входа", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC().Format(store.TimeLayout)
	if err := s.store.Update(ctx, u.ID, map[string]any{"last_login": now}); err != nil {
		return nil, err
	}
	s.log.Info("пользователь вошёл", zap.String("username", username), zap.String("role", string(u.Role)))
	return &u, nil
}

func (s *Service) CreateUser(ctx context.Context, u models.User, password string) (int64, validate.Errors, error) {
	errs := validate.User(u, password)

	exists, err := s.store.Exists(ctx, store.F().Eq("username", u.Username))
	if err != nil {
		return 0, nil, err
	}
	if exists {
		errs.Add("username", "Имя пользователя уже занято")
	}
	if !errs.OK() {
		return 0, errs, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, nil, fmt.Errorf("хеширование пароля: %w", err)
	}

	role := u.Role
	if role == "" {
		role = models.Operator
	}
	id, err := s.store.Create(ctx, map[string]any{
		"username":      u.Username,
		"password_hash": string(hash),
		"full_name":     u.FullName,
		"role":          string(role),
		"is_active":     1,
	})
	if err != nil {
		return 0, nil, err
	}
	s.log.Info("пользователь создан", zap.Int64("id", id), zap.String("username", u.Username))
	return id, nil, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	row, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.String("password_hash")), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	if len([]rune(newPassword)) < 6 {
		return fmt.Errorf("смена пароля: пароль должен содержать не менее 6 символов")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("хеширование пароля: %w", err)
	}
	return s.store.Update(ctx, userID, map[string]any{"password_hash": string(hash)})
}

func (s *Service) Deactivate(ctx context.Context, userID int64) error {
	return s.store.SoftDelete(ctx, userID)
}

func (s *Service) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u := fromRow(row)
	return &u, nil
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.store.GetAll(ctx, store.F().Eq("is_active", 1), "username")
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// Permissions — список разделов, доступных роли.
func Permissions(role models.Role) []string {
	return rolePermissions[role]
}

func HasPermission(role models.Role, section string) bool {
	for _, p := range rolePermissions[role] {
		if p == "*" || p == section {
			return true
		}
	}
	return false
}

func fromRow(row store.Row) models.User {
	u := models.User{
		ID:           row.Int64("id"),
		Username:     row.String("username"),
		PasswordHash: row.String("password_hash"),
		FullName:     row.String("full_name"),
		Role:         models.Role(row.String("role")),
		IsActive:     row.Bool("is_active"),
		CreatedAt:    row.Time("created_at"),
	}
	if !row.IsNull("last_login") {
		t := row.Time("last_login")
		u.LastLogin = &t
	}
	return u
}
