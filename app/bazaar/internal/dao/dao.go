package dao

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/metrics"
	"github.com/lk2023060901/shardbazaar/pkg/database/postgres"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("dao: record not found")
	// ErrDuplicate 违反唯一约束
	ErrDuplicate = errors.New("dao: duplicate record")
)

// 唯一约束名（见 schema.sql）
const constraintOneActiveSale = "local_sales_one_active"

var qb = postgres.QueryBuilder

// baseDAO 公共的日志与指标
type baseDAO struct {
	logger  logger.Logger
	metrics *metrics.BazaarMetrics
}

func newBaseDAO(l logger.Logger, m *metrics.BazaarMetrics, name string) baseDAO {
	return baseDAO{logger: l.Named(name), metrics: m}
}

// observe 记录耗时与结果，ErrNotFound 不算失败
func (b *baseDAO) observe(operation string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	b.metrics.RecordDBQuery(operation, err, time.Since(start).Seconds())
}

// translate 统一转换驱动错误
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case postgres.IsNoRows(err):
		return ErrNotFound
	case postgres.IsUniqueViolation(err, ""):
		return fmt.Errorf("%s: %w: %w", op, ErrDuplicate, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func columnList(cols []string) string {
	return strings.Join(cols, ", ")
}
