package askapi

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultHealthInterval 是健康检查的默认轮询间隔。
const DefaultHealthInterval = 30 * time.Second

// Connection 是由健康检查推导出的连接状态。
type Connection int

const (
	Unknown Connection = iota
	Connected
	Partial
	Disconnected
)

func (c Connection) String() string {
	switch c {
	case Connected:
		return "Estado: Conectado ✓"
	case Partial:
		return "Estado: Servicios parcialmente activos"
	case Disconnected:
		return "Estado: Desconectado ✗"
	default:
		return "Estado: Verificando..."
	}
}

// HealthChecker 抽象健康检查能力，*Client 实现了该接口。
type HealthChecker interface {
	Health(ctx context.Context) (HealthReport, error)
}

// Poller 按固定间隔轮询健康检查端点，仅在状态变化时回调。
type Poller struct {
	checker  HealthChecker
	interval time.Duration
	onChange func(Connection)
	logger   *zap.Logger

	mu   sync.Mutex
	last Connection
}

// NewPoller 创建 Poller；interval<=0 时使用默认值。
func NewPoller(checker HealthChecker, interval time.Duration, onChange func(Connection), logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{checker: checker, interval: interval, onChange: onChange, logger: logger}
}

// Check 执行一次检查并返回推导出的状态。
func (p *Poller) Check(ctx context.Context) Connection {
	report, err := p.checker.Health(ctx)
	state := Connected
	switch {
	case err != nil:
		p.logger.Debug("health check failed", zap.Error(err))
		state = Disconnected
	case !report.AllUp():
		state = Partial
	}

	p.mu.Lock()
	changed := state != p.last
	p.last = state
	p.mu.Unlock()

	if changed && p.onChange != nil {
		p.onChange(state)
	}
	return state
}

// State 返回最近一次检查的状态。
func (p *Poller) State() Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Run 立即检查一次，随后按间隔轮询，直到 ctx 取消。
func (p *Poller) Run(ctx context.Context) {
	p.Check(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
