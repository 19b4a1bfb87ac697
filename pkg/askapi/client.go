package askapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxBodySnippet 限制错误日志中保留的响应体长度。
const maxBodySnippet = 256

// Client 封装与问答服务的交互。
// 跨域调用，不携带任何凭证或认证头。
type Client struct {
	endpoint       string
	healthEndpoint string
	httpClient     *http.Client
	logger         *zap.Logger
}

// ClientOption 自定义 Client。
type ClientOption func(*Client)

// WithHTTPClient 替换底层 http.Client。
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithHealthEndpoint 设置健康检查地址。
func WithHealthEndpoint(url string) ClientOption {
	return func(cl *Client) {
		cl.healthEndpoint = url
	}
}

// WithTimeout 设置请求超时；0 表示不超时（挂起的请求会一直停留在 Sending）。
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		cl.httpClient.Timeout = d
	}
}

// WithLogger 注入日志记录器。
func WithLogger(l *zap.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient 创建一个新的 Client。
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask 向问答服务发送一次提问。
// Returns:
//   - *Response: 2xx 且响应体包含 answer 时返回
//   - error: *TransportError / *StatusError / *DecodeError 之一
func (c *Client) Ask(ctx context.Context, req Request) (*Response, error) {
	if c.endpoint == "" {
		return nil, &TransportError{Err: errors.New("endpoint is empty")}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug("ask response",
		zap.String("endpoint", c.endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("history_turns", len(req.History)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp.StatusCode, respBody)
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &DecodeError{Status: resp.StatusCode, Err: err}
	}
	if !hasAnswer(respBody) {
		return nil, &DecodeError{Status: resp.StatusCode, Err: ErrNoAnswer}
	}
	return &out, nil
}

// Health 查询健康检查端点。
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	if c.healthEndpoint == "" {
		return HealthReport{}, errors.New("health endpoint is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthEndpoint, nil)
	if err != nil {
		return HealthReport{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthReport{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	var report HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return HealthReport{}, &DecodeError{Status: resp.StatusCode, Err: err}
	}
	return report, nil
}

func newStatusError(status int, body []byte) *StatusError {
	se := &StatusError{Status: status}
	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		se.Message = eb.Error
		se.RequestID = eb.RequestID
	}
	if se.Message == "" {
		se.Body = truncate(strings.TrimSpace(string(body)), maxBodySnippet)
	}
	return se
}

// hasAnswer 检查 JSON 对象中是否存在字符串类型的 answer 字段，null 视为缺失。
func hasAnswer(body []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	raw, ok := probe["answer"]
	if !ok {
		return false
	}
	var s *string
	return json.Unmarshal(raw, &s) == nil && s != nil
}

func truncate(src string, limit int) string {
	if limit <= 0 || len(src) <= limit {
		return src
	}
	return fmt.Sprintf("%s...(truncated)", src[:limit])
}
