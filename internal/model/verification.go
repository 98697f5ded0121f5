package model

import "time"

// VerificationCode 是存储在 Redis 中的临时验证码记录。
// 每个身份同一时刻只有一条记录，新申请会覆盖旧记录。
// 明文验证码不落库，只存加盐散列。
type VerificationCode struct {
	CodeHash  string    `json:"code_hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// QuotaStatus 是一次配额检查的结果。
type QuotaStatus struct {
	Allowed   bool `json:"allowed"`
	Unlimited bool `json:"unlimited"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
}
