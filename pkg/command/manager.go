package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/IMBotPlatform/AskWidget/pkg/botcore"
)

const commandLogSnippet = 256

// Manager 实现 PipelineInvoker：解析斜杠命令，为每次请求构建独立的 Cobra 命令树并执行。
type Manager struct {
	factory CommandFactory
	parser  Parser
	actions Actions
	logger  *zap.Logger
}

// ManagerOption 自定义 Manager 行为。
type ManagerOption func(*Manager)

// WithLogger 注入日志记录器。
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithParser 替换默认解析器。
func WithParser(p Parser) ManagerOption {
	return func(m *Manager) {
		m.parser = p
	}
}

// NewManager 绑定命令工厂与挂件动作。
func NewManager(factory CommandFactory, actions Actions, opts ...ManagerOption) *Manager {
	mgr := &Manager{
		factory: factory,
		parser:  NewParser(),
		actions: actions,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// Match 可作为 botcore.Matcher：只接管命令名全部由字母组成的输入。
// "/123 ..."、"/ hola"、"/etc/hosts ..." 这类文本交给问答流程。
func (m *Manager) Match(update botcore.Update) bool {
	parsed := m.parser.Parse(update.Text)
	if !parsed.IsCommand {
		return false
	}
	return strings.IndexFunc(parsed.Tokens[0], isNotLetter) < 0
}

func isNotLetter(r rune) bool {
	return !unicode.IsLetter(r)
}

// Trigger 满足 botcore.PipelineInvoker。
func (m *Manager) Trigger(update botcore.Update, streamID string) <-chan botcore.StreamChunk {
	out := make(chan botcore.StreamChunk, 1)
	go func() {
		defer close(out)

		if m == nil || m.factory == nil {
			out <- botcore.StreamChunk{Content: "Error: comandos no inicializados", IsFinal: true}
			return
		}

		// 1. 解析
		parsed := m.parser.Parse(update.Text)
		if !parsed.IsCommand {
			out <- botcore.StreamChunk{Content: fmt.Sprintf("No reconozco %q como comando. Escribe /ayuda.", strings.TrimSpace(parsed.Raw)), IsFinal: true}
			return
		}

		// 2. 构建命令树
		rootCmd := m.factory()
		writer := NewStreamWriter(out)
		defer writer.Close()
		rootCmd.SetOut(writer)
		rootCmd.SetErr(writer)
		rootCmd.CompletionOptions.DisableDefaultCmd = true
		rootCmd.SilenceErrors = true
		rootCmd.SilenceUsage = true

		args := parsed.Tokens
		if len(args) > 0 && strings.EqualFold(args[0], rootCmd.Name()) {
			args = args[1:]
		}
		if cmd, _, err := rootCmd.Find(args); err != nil || cmd == rootCmd {
			m.logger.Debug("unknown command", zap.Strings("args", args))
			out <- botcore.StreamChunk{
				Content: fmt.Sprintf("Comando desconocido: /%s. Escribe /ayuda.", parsed.Tokens[0]),
				Payload: ErrUnknownCommand,
				IsFinal: true,
			}
			return
		}

		// 3. 执行
		execCtx := &ExecutionContext{
			Update:      update,
			StreamID:    streamID,
			ArgumentRaw: parsed.ArgumentRaw,
			Actions:     m.actions,
		}
		ctx := WithExecutionContext(context.Background(), execCtx)
		rootCmd.SetArgs(args)
		m.logger.Info("executing command",
			zap.Strings("args", args),
			zap.String("session_id", update.SessionID),
			zap.String("surface", update.Surface),
			zap.String("raw", truncateForLog(parsed.Raw, commandLogSnippet)),
		)

		var final botcore.StreamChunk
		if err := rootCmd.ExecuteContext(ctx); err != nil {
			m.logger.Warn("command failed", zap.Strings("args", args), zap.Error(err))
			final = botcore.StreamChunk{Content: fmt.Sprintf("✗ %s\n", userMessage(err)), Payload: err}
		}
		writer.Close()
		final.IsFinal = true
		out <- final
	}()
	return out
}

// userMessage 去掉 Cobra 的英文前缀，只保留对用户有意义的部分。
func userMessage(err error) string {
	if errors.Is(err, ErrNoActions) {
		return "Esta acción no está disponible."
	}
	return err.Error()
}

// truncateForLog 限制日志中输出的文本长度。
func truncateForLog(src string, limit int) string {
	if limit <= 0 || len(src) <= limit {
		return src
	}
	return fmt.Sprintf("%s...(truncated)", src[:limit])
}
