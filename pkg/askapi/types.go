// Package askapi 封装远端问答服务的 HTTP 协议。
package askapi

import (
	"encoding/json"

	"github.com/IMBotPlatform/AskWidget/pkg/history"
)

// Request 是发往问答服务的请求体。
// 完整模式携带 History；精简模式只携带 SessionID。
type Request struct {
	Query     string         `json:"query"`
	History   []history.Turn `json:"history,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
}

// Source 是回复附带的引用。
type Source struct {
	URL     string   `json:"url,omitempty"`
	Excerpt string   `json:"excerpt,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}

// UnmarshalJSON 兼容后端使用 document / source 字段表示地址的旧格式。
func (s *Source) UnmarshalJSON(data []byte) error {
	var raw struct {
		URL      *string  `json:"url"`
		Document *string  `json:"document"`
		Source   *string  `json:"source"`
		Excerpt  *string  `json:"excerpt"`
		Score    *float64 `json:"score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Source{Score: raw.Score}
	for _, candidate := range []*string{raw.URL, raw.Document, raw.Source} {
		if candidate != nil && *candidate != "" {
			s.URL = *candidate
			break
		}
	}
	if raw.Excerpt != nil {
		s.Excerpt = *raw.Excerpt
	}
	return nil
}

// Response 是问答服务成功时的响应体。
type Response struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources,omitempty"`
	Confidence string   `json:"confidence,omitempty"`
}

// ErrorBody 是非 2xx 响应携带的错误体。
type ErrorBody struct {
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthReport 是健康检查端点的响应体。
type HealthReport struct {
	Status   string            `json:"status,omitempty"`
	Services map[string]string `json:"services"`
}

// AllUp 当且仅当至少有一个服务且全部为 "up" 时返回 true。
func (h HealthReport) AllUp() bool {
	if len(h.Services) == 0 {
		return false
	}
	for _, state := range h.Services {
		if state != "up" {
			return false
		}
	}
	return true
}
