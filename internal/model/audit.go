package model

import (
	"time"
)

// AuditLog 代表一次完整的操作审计记录
type AuditLog struct {
	ID        string `json:"id"`     // 请求 ID (UUID)
	Caller    string `json:"caller"` // 调用者地址 (base58)
	Method    string `json:"method"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	RequestBody  string `json:"request_body"`
	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	// 业务上下文: op, agent, amount, share 等
	Context map[string]interface{} `json:"context"`

	CreatedAt time.Time `json:"created_at"`
}
