package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Tx 事务内的查询接口
type Tx interface {
	Querier
}

// TxIsolationLevel 事务隔离级别
type TxIsolationLevel string

const (
	TxIsolationLevelDefault        TxIsolationLevel = ""
	TxIsolationLevelReadCommitted  TxIsolationLevel = "read committed"
	TxIsolationLevelRepeatableRead TxIsolationLevel = "repeatable read"
	TxIsolationLevelSerializable   TxIsolationLevel = "serializable"
)

// TxOptions 事务选项
type TxOptions struct {
	IsoLevel TxIsolationLevel
}

// WithTx 在事务中执行函数，fn 返回错误或 panic 时回滚
func (c *Client) WithTx(ctx context.Context, fn func(Tx) error) error {
	return c.WithTxOptions(ctx, TxOptions{}, fn)
}

// WithTxOptions 使用选项在事务中执行函数
func (c *Client) WithTxOptions(ctx context.Context, opts TxOptions, fn func(Tx) error) error {
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.TxIsoLevel(opts.IsoLevel)})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
