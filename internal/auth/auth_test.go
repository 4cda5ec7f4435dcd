package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/otabek-dev/mahalla-admin/internal/models"
	"github.com/otabek-dev/mahalla-admin/internal/testutil/testdb"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(testdb.Open(t), testdb.Logger())
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	t.Run("seeded_admin", func(t *testing.T) {
		u, err := svc.Authenticate(ctx, testdb.AdminLogin, testdb.AdminPassword)
		if err != nil {
			t.Fatalf("вход администратора: %v", err)
		}
		if u.Role != models.Admin {
			t.Fatalf("роль: %s, ожидали admin", u.Role)
		}
		if u.LastLogin == nil {
			t.Fatal("last_login должен проставиться")
		}
	})

	t.Run("wrong_password", func(t *testing.T) {
		if _, err := svc.Authenticate(ctx, testdb.AdminLogin, "не тот пароль"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("ожидали ErrInvalidCredentials, получили %v", err)
		}
	})

	t.Run("unknown_user", func(t *testing.T) {
		if _, err := svc.Authenticate(ctx, "ghost", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("ожидали ErrInvalidCredentials, получили %v", err)
		}
	})
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	id, errs, err := svc.CreateUser(ctx, models.User{
		Username: "secretary1",
		FullName: "Саидова Нилуфар",
		Role:     models.Secretary,
	}, "strong-password")
	if err != nil || !errs.OK() {
		t.Fatalf("создание: err=%v errs=%v", err, errs)
	}
	if id == 0 {
		t.Fatal("ожидали ненулевой id")
	}

	t.Run("login_works", func(t *testing.T) {
		u, err := svc.Authenticate(ctx, "secretary1", "strong-password")
		if err != nil {
			t.Fatalf("вход: %v", err)
		}
		if u.Role != models.Secretary {
			t.Fatalf("роль: %s", u.Role)
		}
	})

	t.Run("duplicate_username", func(t *testing.T) {
		_, errs, err := svc.CreateUser(ctx, models.User{
			Username: "secretary1",
			FullName: "Другой Человек",
		}, "another-pass")
		if err != nil {
			t.Fatalf("неожиданный сбой: %v", err)
		}
		if len(errs["username"]) == 0 {
			t.Fatal("ожидали ошибку занятого имени")
		}
	})

	t.Run("short_password", func(t *testing.T) {
		_, errs, err := svc.CreateUser(ctx, models.User{
			Username: "operator1",
			FullName: "Оператор",
		}, "123")
		if err != nil {
			t.Fatalf("неожиданный сбой: %v", err)
		}
		if len(errs["password"]) == 0 {
			t.Fatal("ожидали ошибку короткого пароля")
		}
	})

	t.Run("change_password", func(t *testing.T) {
		if err := svc.ChangePassword(ctx, id, "strong-password", "new-password"); err != nil {
			t.Fatalf("смена пароля: %v", err)
		}
		if _, err := svc.Authenticate(ctx, "secretary1", "strong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatal("старый пароль должен перестать работать")
		}
		if _, err := svc.Authenticate(ctx, "secretary1", "new-password"); err != nil {
			t.Fatalf("вход с новым паролем: %v", err)
		}
	})

	t.Run("deactivated_cannot_login", func(t *testing.T) {
		if err := svc.Deactivate(ctx, id); err != nil {
			t.Fatalf("деактивация: %v", err)
		}
		if _, err := svc.Authenticate(ctx, "secretary1", "new-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatal("деактивированный пользователь не должен входить")
		}
	})
}

func TestPermissions(t *testing.T) {
	cases := []struct {
		role    models.Role
		section string
		want    bool
	}{
		{models.Admin, "users", true},
		{models.Admin, "anything", true},
		{models.Chairman, "sms", true},
		{models.Chairman, "users", false},
		{models.Secretary, "points", true},
		{models.Secretary, "sms", false},
		{models.Operator, "sms", true},
		{models.Operator, "reports", false},
	}
	for _, c := range cases {
		if got := HasPermission(c.role, c.section); got != c.want {
			t.Errorf("HasPermission(%s, %s) = %v, ожидали %v", c.role, c.section, got, c.want)
		}
	}
}
