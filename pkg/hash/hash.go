// Package hash 提供了验证码散列与比对的功能。
package hash

import "golang.org/x/crypto/bcrypt"

// HashCode 对明文验证码做加盐散列，落库前调用。
func HashCode(code string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckCode 比对明文验证码与存储的散列值。
func CheckCode(code, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(code)) == nil
}
