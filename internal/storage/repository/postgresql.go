// Package repository реализует хранилище данных на основе PostgreSQL
// для управления правами на оптимизацию и сессиями с резюме.
// Все условные изменения счётчиков выполняются одним UPDATE на стороне
// базы, чтобы несколько экземпляров сервиса за балансировщиком
// не могли превысить оплаченный лимит.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Ошибки уровня хранилища. Обработчики переводят их в ответы клиенту
// через errors.Is, поэтому они объявлены как sentinel-значения.
var (
	// ErrEntitlementNotFound — для email нет ни одной оплаты.
	ErrEntitlementNotFound = errors.New("entitlement not found")
	// ErrLimitExceeded — оплаченный лимит оптимизаций исчерпан.
	ErrLimitExceeded = errors.New("usage limit exceeded")
	// ErrDuplicateEvent — webhook-событие с таким ID уже обработано.
	ErrDuplicateEvent = errors.New("duplicate webhook event")
	// ErrSessionNotFound — сессия отсутствует или истекла.
	// Истёкшие и несуществующие сессии неразличимы для клиента.
	ErrSessionNotFound = errors.New("session not found")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с правами и сессиями.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// Ready проверяет готовность базы данных для health-проверки.
func (s *Storage) Ready() error {
	return CheckDatabaseReady(s)
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'entitlements'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table entitlements missing or query error: %w", err)
	}
	return nil
}
