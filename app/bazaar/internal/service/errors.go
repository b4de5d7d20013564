package service

import (
	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/repository"
)

// 业务错误：均为可预期的失败结果，调用方据此给出提示
var (
	ErrNotFound           = errors.New("not found")
	ErrNotAvailable       = errors.New("not available")
	ErrCapacityExceeded   = errors.New("market is full")
	ErrDuplicateActive    = errors.New("active sale already exists")
	ErrSelfPurchase       = errors.New("cannot purchase own listing")
	ErrInsufficientFunds  = errors.New("insufficient shards")
	ErrUnauthorized       = errors.New("not the owner")
	ErrTransientStore     = errors.New("store transaction aborted, try again")
	ErrNotRegistered      = errors.New("player not registered")
	ErrInvalidPrice       = errors.New("price must be at least 1")
	ErrTierTooLow         = errors.New("tier below market minimum")
	ErrWrongGuess         = errors.New("wrong name")
	ErrChannelNotEligible = errors.New("channel not eligible")
)

// errorCodes 错误到机器可读代码的映射，顺序即匹配优先级
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "NOT_FOUND"},
	{ErrNotAvailable, "NOT_AVAILABLE"},
	{ErrCapacityExceeded, "CAPACITY_EXCEEDED"},
	{ErrDuplicateActive, "DUPLICATE_ACTIVE"},
	{ErrSelfPurchase, "SELF_PURCHASE"},
	{ErrInsufficientFunds, "INSUFFICIENT_FUNDS"},
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrTransientStore, "TRANSIENT_STORE"},
	{ErrNotRegistered, "NOT_REGISTERED"},
	{ErrInvalidPrice, "INVALID_PRICE"},
	{ErrTierTooLow, "TIER_TOO_LOW"},
	{ErrWrongGuess, "WRONG_GUESS"},
	{ErrChannelNotEligible, "CHANNEL_NOT_ELIGIBLE"},
}

// ErrorCode 返回错误的机器代码，nil 返回空字符串，未知错误返回 INTERNAL
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "INTERNAL"
}

// IsExpected 是否为业务错误（非内部故障）
func IsExpected(err error) bool {
	code := ErrorCode(err)
	return code != "" && code != "INTERNAL"
}

// storeErr 包装仓储错误；事务冲突统一转换为 ErrTransientStore，原始错误作为附属错误保留
func storeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrTransient) {
		return transientErr(err, op)
	}
	return errors.Wrap(err, op)
}

// transientErr 以 ErrTransientStore 为主错误链，标准库 errors.Is 同样可识别
func transientErr(cause error, op string) error {
	err := errors.Wrap(ErrTransientStore, op)
	if cause != nil {
		err = errors.WithSecondaryError(err, cause)
	}
	return err
}

// txErr 事务返回的错误：业务错误原样返回，其余按仓储错误包装
func txErr(err error, op string) error {
	if err == nil || IsExpected(err) {
		return err
	}
	return storeErr(err, op)
}

// outcome 指标中的结果标签
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return ErrorCode(err)
}
