package db

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Backup копирует файл базы целиком в каталог резервных копий
// и возвращает путь созданной копии.
func Backup(dbPath, backupDir string) (string, error) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("каталог резервных копий: %w", err)
	}

	stamp := time.Now().Format("20060102_150405")
	dst := filepath.Join(backupDir, fmt.Sprintf("mahalla_backup_%s.db", stamp))

	if err := copyFile(dbPath, dst); err != nil {
		return "", fmt.Errorf("резервное копирование: %w", err)
	}
	return dst, nil
}

// Restore заменяет файл базы содержимым резервной копии.
// Вызывать только при остановленных записях.
func Restore(dbPath, backupPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("резервная копия недоступна: %w", err)
	}
	if err := copyFile(backupPath, dbPath); err != nil {
		return fmt.Errorf("восстановление из копии: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
