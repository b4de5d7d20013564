package service

import "strings"

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	// SpawnCodeLength 认领码长度
	SpawnCodeLength = 5
	// ListingCodeLength 购买码长度
	ListingCodeLength = 4

	maxCodeAttempts = 32
)

// GenerateCode 生成 n 位大写字母数字码
func GenerateCode(r Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[r.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// NormalizeCode 规范化用户输入的码
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
