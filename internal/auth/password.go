package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashCost bcrypt 计算强度，测试中调低
var hashCost = bcrypt.DefaultCost

// HashPassword 生成 bcrypt 哈希，调用方需先校验长度（bcrypt 只接受 72 字节以内）
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword 比较明文与哈希，空哈希视为不匹配
func CheckPassword(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
