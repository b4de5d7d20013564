package repository

import (
	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/dao"
	"github.com/lk2023060901/shardbazaar/pkg/database/postgres"
)

var (
	// ErrNotFound 记录不存在，或条件（状态/过期时间/认领码）不满足
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate 唯一约束冲突
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrActiveSaleExists 卖家在该频道已有进行中的出售
	ErrActiveSaleExists = errors.New("repository: active local sale exists")
	// ErrTransient 存储层并发冲突导致事务中止，调用方可重试
	ErrTransient = errors.New("repository: transient store failure")
)

// mapErr 将 dao/驱动错误映射为仓储错误
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dao.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, dao.ErrActiveSaleExists):
		return ErrActiveSaleExists
	case errors.Is(err, dao.ErrDuplicate):
		return errors.Mark(err, ErrDuplicate)
	case postgres.IsTransient(err):
		return errors.Mark(err, ErrTransient)
	default:
		return err
	}
}
