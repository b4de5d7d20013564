package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// QueryBuilder 使用 $n 占位符的 squirrel 构建器
var QueryBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// QueryOne 查询单条记录，列按 db tag 映射到 T，无结果返回 ErrNoRows
func QueryOne[T any](ctx context.Context, q Querier, sql string, args ...any) (*T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByNameLax[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return v, nil
}

// QueryAll 查询多条记录
func QueryAll[T any](ctx context.Context, q Querier, sql string, args ...any) ([]*T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	list, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[T])
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return list, nil
}

// Exec 执行写操作并返回影响行数
func Exec(ctx context.Context, q Querier, sql string, args ...any) (int64, error) {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// QueryOneBuilder 使用 squirrel 构建器查询单条记录
func QueryOneBuilder[T any](ctx context.Context, q Querier, b sq.Sqlizer) (*T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql failed: %w", err)
	}
	return QueryOne[T](ctx, q, query, args...)
}

// QueryAllBuilder 使用 squirrel 构建器查询多条记录
func QueryAllBuilder[T any](ctx context.Context, q Querier, b sq.Sqlizer) ([]*T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql failed: %w", err)
	}
	return QueryAll[T](ctx, q, query, args...)
}

// ExecBuilder 使用 squirrel 构建器执行写操作
func ExecBuilder(ctx context.Context, q Querier, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sql failed: %w", err)
	}
	return Exec(ctx, q, query, args...)
}
