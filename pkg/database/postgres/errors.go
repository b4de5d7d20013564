package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("postgres: config is nil")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("postgres: invalid config")

	// ErrNoRows 没有查询到数据
	ErrNoRows = errors.New("postgres: no rows in result set")
)

// SQLSTATE
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// IsNoRows 判断是否为空结果
func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// IsTransient 判断是否为可重试的并发冲突（序列化失败或死锁）
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// IsUniqueViolation 判断是否违反唯一约束，constraint 为空时匹配任意约束
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
