package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound — отсутствие записи. Это не сбой хранилища:
	// вызывающий ветвится по errors.Is.
	ErrNotFound = errors.New("запись не найдена")

	// ErrConflict — нарушение ограничения целостности (уникальность,
	// внешний ключ). Заворачивается в StorageError.
	ErrConflict = errors.New("нарушение ограничения целостности")

	ErrUnknownColumn = errors.New("неизвестная колонка")
	ErrInvalidOrder  = errors.New("недопустимая сортировка")
	ErrInvalidPage   = errors.New("некорректные параметры страницы")
	ErrEmptyFields   = errors.New("пустой набор полей")
)

// StorageError — любой сбой на границе хранилища, с операцией и таблицей
// для диагностики. Сам запрос и параметры пишутся в лог, не в ошибку.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func isConstraint(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "constraint")
}
