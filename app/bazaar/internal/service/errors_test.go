package service

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	assert.Empty(t, ErrorCode(nil))
	assert.Equal(t, "NOT_AVAILABLE", ErrorCode(ErrNotAvailable))
	assert.Equal(t, "CAPACITY_EXCEEDED", ErrorCode(errors.Wrapf(ErrCapacityExceeded, "%d/%d", 12, 12)))
	assert.Equal(t, "NOT_FOUND", ErrorCode(errors.Wrap(ErrNotFound, "no active sale found")))
	assert.Equal(t, "INTERNAL", ErrorCode(errors.New("boom")))

	assert.True(t, IsExpected(ErrSelfPurchase))
	assert.False(t, IsExpected(errors.New("boom")))
	assert.False(t, IsExpected(nil))
}

func TestStoreErr(t *testing.T) {
	assert.NoError(t, storeErr(nil, "op"))

	transient := errors.Mark(errors.New("serialization failure"), repository.ErrTransient)
	err := storeErr(transient, "purchase")
	assert.True(t, stderrors.Is(err, ErrTransientStore))
	assert.ErrorIs(t, err, ErrTransientStore)
	assert.Equal(t, "TRANSIENT_STORE", ErrorCode(err))
	assert.Contains(t, err.Error(), "purchase")
	// 原始错误保留在详细信息中
	assert.Contains(t, fmt.Sprintf("%+v", err), "serialization failure")

	err = storeErr(errors.New("disk full"), "purchase")
	assert.Equal(t, "INTERNAL", ErrorCode(err))

	// 业务错误穿过事务原样返回
	assert.Equal(t, ErrInsufficientFunds, txErr(ErrInsufficientFunds, "purchase"))
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "SELF_PURCHASE", outcome(ErrSelfPurchase))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())

	cfg := DefaultConfig()
	cfg.Market.Capacity = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Spawn.Offsets = []int{0, 75}
	assert.Error(t, cfg.Validate())

	got, err := NormalizeOffsets([]int{50, 0, 45, 30, 0})
	assert.NoError(t, err)
	assert.Equal(t, []int{0, 30, 45, 50}, got)
}

func TestTransientErr(t *testing.T) {
	raced := transientErr(errors.New("duplicate key"), "listing code taken")
	assert.True(t, stderrors.Is(raced, ErrTransientStore))
	assert.Equal(t, "TRANSIENT_STORE", ErrorCode(raced))
	assert.True(t, IsExpected(raced))

	taken := func(string) (bool, error) { return true, nil }
	_, err := uniqueCode(NewSeededRand(1), taken)
	assert.True(t, stderrors.Is(err, ErrTransientStore))
	assert.Contains(t, err.Error(), "no free listing code")
}
