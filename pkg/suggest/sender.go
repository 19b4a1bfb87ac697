// Package suggest 通过 EmailJS 发送用户建议，结果经由共享的通知通道展示。
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/IMBotPlatform/AskWidget/pkg/notify"
)

// DefaultEndpoint 是 EmailJS 的发送接口。
const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

const (
	SentText   = "¡Gracias! Tu sugerencia fue enviada."
	FailedText = "No se pudo enviar la sugerencia. Inténtalo de nuevo más tarde."
	EmptyText  = "Escribe tu sugerencia antes de enviarla."
)

// ErrEmptyMessage 表示建议内容为空。
var ErrEmptyMessage = errors.New("suggestion message is empty")

// Credentials 是 EmailJS 的模板参数。
type Credentials struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
}

type payload struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

// Sender 发送建议。
type Sender struct {
	creds      Credentials
	endpoint   string
	httpClient *http.Client
	notices    *notify.Channel
	logger     *zap.Logger
}

// Option 自定义 Sender。
type Option func(*Sender)

// WithEndpoint 覆盖发送地址。
func WithEndpoint(url string) Option {
	return func(s *Sender) {
		if url != "" {
			s.endpoint = url
		}
	}
}

// WithHTTPClient 替换底层 http.Client。
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		s.httpClient = c
	}
}

// WithLogger 注入日志记录器。
func WithLogger(l *zap.Logger) Option {
	return func(s *Sender) {
		s.logger = l
	}
}

// NewSender 创建 Sender；notices 可为 nil。
func NewSender(creds Credentials, notices *notify.Channel, opts ...Option) *Sender {
	s := &Sender{
		creds:      creds,
		endpoint:   DefaultEndpoint,
		httpClient: http.DefaultClient,
		notices:    notices,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send 发送一条建议，并把结果发布到通知通道。
func (s *Sender) Send(ctx context.Context, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		s.post(notify.Warning, EmptyText)
		return ErrEmptyMessage
	}

	if err := s.deliver(ctx, message); err != nil {
		s.logger.Warn("suggestion delivery failed", zap.Error(err))
		s.post(notify.Error, FailedText)
		return err
	}
	s.logger.Info("suggestion sent", zap.Int("length", len(message)))
	s.post(notify.Success, SentText)
	return nil
}

func (s *Sender) deliver(ctx context.Context, message string) error {
	body, err := json.Marshal(payload{
		ServiceID:      s.creds.ServiceID,
		TemplateID:     s.creds.TemplateID,
		UserID:         s.creds.PublicKey,
		TemplateParams: map[string]string{"message": message},
	})
	if err != nil {
		return fmt.Errorf("marshal suggestion: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send suggestion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("emailjs status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	return nil
}

func (s *Sender) post(level notify.Level, text string) {
	if s.notices != nil {
		s.notices.Post(level, text)
	}
}
