package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry подключает Sentry, если SENTRY_DSN задан; без DSN сервис
// работает как обычно. Возвращаемый flush вызывается при остановке.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr отправляет ошибку фоновых задач (рассылки, бэкапы) в Sentry.
// nil игнорируется, вызов безопасен и без инициализации.
func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}
