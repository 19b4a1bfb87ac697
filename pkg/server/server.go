// Package server 是问答服务的参考 HTTP 实现（gin）：POST /chat 与 GET /health。
package server

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/IMBotPlatform/AskWidget/pkg/askapi"
	"github.com/IMBotPlatform/AskWidget/pkg/exchange"
)

const (
	// HeaderRequestID 是响应中携带请求 ID 的头。
	HeaderRequestID = "X-Request-Id"
	// DefaultProbeTimeout 是单个上游健康探测的超时。
	DefaultProbeTimeout = 5 * time.Second

	ctxRequestID = "request_id"
)

// 错误响应文案。
const (
	ErrTextQueryRequired = `El campo "query" es requerido.`
	ErrTextBadBody       = "El cuerpo de la solicitud no es JSON válido."
	ErrTextForbidden     = "Origen no autorizado."
	ErrTextRateLimited   = "Too many requests"
	ErrTextInternal      = "Ocurrió un error interno al procesar tu solicitud."
)

// Server 持有路由依赖。
type Server struct {
	asker         exchange.Asker
	allowedOrigin string
	limiter       *rate.Limiter
	upstreams     map[string]string
	httpClient    *http.Client
	probeTimeout  time.Duration
	logger        *zap.Logger
	newID         func() string
}

// Option 自定义 Server。
type Option func(*Server)

// WithAllowedOrigin 限制允许跨域调用的来源，空值或 "*" 表示不限制。
func WithAllowedOrigin(origin string) Option {
	return func(s *Server) {
		s.allowedOrigin = strings.TrimRight(origin, "/")
	}
}

// WithRateLimit 设置全局令牌桶；r <= 0 关闭限流。
func WithRateLimit(r float64, burst int) Option {
	return func(s *Server) {
		if r <= 0 {
			s.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithUpstreams 设置健康检查要探测的上游（名称 -> URL）。
func WithUpstreams(upstreams map[string]string) Option {
	return func(s *Server) {
		s.upstreams = upstreams
	}
}

// WithHTTPClient 替换探测上游使用的 http.Client。
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) {
		s.httpClient = c
	}
}

// WithProbeTimeout 覆盖单个上游探测超时。
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.probeTimeout = d
		}
	}
}

// WithLogger 注入日志记录器。
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator 覆盖请求 ID 生成器。
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New 创建 Server。
func New(asker exchange.Asker, opts ...Option) *Server {
	s := &Server{
		asker:        asker,
		httpClient:   http.DefaultClient,
		probeTimeout: DefaultProbeTimeout,
		logger:       zap.NewNop(),
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router 构建 gin 路由。
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestID(), s.accessLog(), s.cors())

	router.POST("/chat", s.rateLimit(), s.handleChat)
	router.GET("/health", s.handleHealth)
	router.OPTIONS("/chat", preflight)
	router.OPTIONS("/health", preflight)
	return router
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := s.newID()
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(ctxRequestID)),
		)
	}
}

// cors 为所有响应附加跨域头，并拒绝不在白名单中的 Origin。
func (s *Server) cors() gin.HandlerFunc {
	allowAll := s.allowedOrigin == "" || s.allowedOrigin == "*"
	return func(c *gin.Context) {
		allow := "*"
		if !allowAll {
			allow = s.allowedOrigin
		}
		c.Header("Access-Control-Allow-Origin", allow)
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Expose-Headers", HeaderRequestID)

		origin := strings.TrimRight(c.GetHeader("Origin"), "/")
		if !allowAll && origin != "" && origin != s.allowedOrigin {
			s.abort(c, http.StatusForbidden, ErrTextForbidden)
			return
		}
		c.Next()
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.abort(c, http.StatusTooManyRequests, ErrTextRateLimited)
			return
		}
		c.Next()
	}
}

func preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// abort 写入统一的错误体 {error, request_id}。
func (s *Server) abort(c *gin.Context, status int, text string) {
	c.AbortWithStatusJSON(status, askapi.ErrorBody{Error: text, RequestID: c.GetString(ctxRequestID)})
}

func (s *Server) handleChat(c *gin.Context) {
	var req askapi.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, http.StatusBadRequest, ErrTextBadBody)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		s.logger.Warn("chat request without query", zap.String("request_id", c.GetString(ctxRequestID)))
		s.abort(c, http.StatusBadRequest, ErrTextQueryRequired)
		return
	}

	resp, err := s.asker.Ask(c.Request.Context(), req)
	if err != nil {
		s.logger.Error("chat failed",
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.Error(err),
		)
		s.abort(c, http.StatusInternalServerError, ErrTextInternal)
		return
	}

	sources := resp.Sources
	if sources == nil {
		sources = []askapi.Source{}
	}
	body := gin.H{"answer": resp.Answer, "sources": sources}
	if resp.Confidence != "" {
		body["confidence"] = resp.Confidence
	}
	c.JSON(http.StatusOK, body)
}

// handleHealth 并发探测所有上游，HTTP 200 视为 up。
func (s *Server) handleHealth(c *gin.Context) {
	services := s.probeAll(c.Request.Context())
	report := askapi.HealthReport{Status: "healthy", Services: services}
	if !report.AllUp() && len(services) > 0 {
		report.Status = "degraded"
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) probeAll(ctx context.Context) map[string]string {
	names := make([]string, 0, len(s.upstreams))
	for name := range s.upstreams {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu       sync.Mutex
		services = make(map[string]string, len(names))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, name := range names {
		url := s.upstreams[name]
		g.Go(func() error {
			state := s.probe(gctx, url)
			mu.Lock()
			services[name] = state
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return services
}

func (s *Server) probe(ctx context.Context, url string) string {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "down"
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Debug("upstream probe failed", zap.String("url", url), zap.Error(err))
		return "down"
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return "up"
	}
	return "down"
}
