package util

import (
	"crypto/rand"
)

// ShareCodeAlphabet 32 个不易混淆的字符（去掉 0/O、1/I）
const ShareCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const ShareCodeLength = 6

// GenerateShareCode 生成考试分享码，唯一性由数据库唯一索引兜底
func GenerateShareCode() (string, error) {
	buf := make([]byte, ShareCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = ShareCodeAlphabet[int(b)%len(ShareCodeAlphabet)]
	}
	return string(buf), nil
}
