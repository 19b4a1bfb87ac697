// Package ai 基于 langchaingo 实现问答服务：检索知识片段、拼装提示词并调用模型。
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/IMBotPlatform/AskWidget/pkg/askapi"
	"github.com/IMBotPlatform/AskWidget/pkg/history"
)

// DefaultSystemPrompt 是未配置 system_prompt 时使用的提示词。
const DefaultSystemPrompt = `Eres un asistente virtual de Duoc UC. Responde la pregunta del estudiante basándote ÚNICAMENTE en el contexto entregado.

Si la información no está en el contexto, di claramente que no tienes esa información específica.
Sé conciso, claro y amigable. Máximo 3 párrafos.`

// NoInfoAnswer 是检索不到任何片段时的固定回复。
const NoInfoAnswer = "Lo siento, no encontré información relevante para responder tu pregunta."

// highConfidence 是判定置信度为 high 的最低分数。
const highConfidence = 0.7

var (
	// ErrEmptyQuery 表示查询为空。
	ErrEmptyQuery = errors.New("query is empty")
	// ErrEmptyAnswer 表示模型没有返回任何内容。
	ErrEmptyAnswer = errors.New("model returned no content")
)

// Service 负责管理模型实例、会话历史与检索器，并实现 exchange.Asker。
type Service struct {
	config    *Config
	store     SessionStore
	retriever schema.Retriever
	logger    *zap.Logger

	mu         sync.Mutex
	modelCache map[string]llms.Model
}

// Option 自定义 Service。
type Option func(*Service)

// WithRetriever 设置知识检索器。
func WithRetriever(r schema.Retriever) Option {
	return func(s *Service) {
		s.retriever = r
	}
}

// WithLogger 注入日志记录器。
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService 创建问答服务。store 为 nil 时使用内存存储。
func NewService(config *Config, store SessionStore, opts ...Option) *Service {
	if config == nil {
		config = &Config{}
	}
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Service{
		config:     config,
		store:      store,
		logger:     zap.NewNop(),
		modelCache: make(map[string]llms.Model),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterModel 直接注册一个模型实例，优先于配置中的同名模型。
func (s *Service) RegisterModel(name string, model llms.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelCache[name] = model
}

// Store 返回会话存储。
func (s *Service) Store() SessionStore {
	return s.store
}

// getModel 获取模型实例，缓存未命中时按配置初始化。
//
//	Check Cache -> (Hit) -> Return
//	     |
//	   (Miss)
//	     v
//	Load Config -> Init Provider (OpenAI/Google/Anthropic/Ollama) -> Update Cache -> Return
func (s *Service) getModel(ctx context.Context, modelName string) (llms.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if model, ok := s.modelCache[modelName]; ok {
		return model, nil
	}

	cfg, ok := s.config.Model(modelName)
	if !ok {
		return nil, fmt.Errorf("model '%s' not found in configuration", modelName)
	}

	var (
		llm llms.Model
		err error
	)
	apiKey := ResolveEnv(cfg.APIKey)

	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{
			openai.WithToken(apiKey),
			openai.WithModel(cfg.ModelName),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	case "google":
		llm, err = googleai.New(ctx,
			googleai.WithAPIKey(apiKey),
			googleai.WithDefaultModel(cfg.ModelName),
		)
	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithToken(apiKey),
			anthropic.WithModel(cfg.ModelName),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		llm, err = anthropic.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.ModelName)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(ResolveEnv(cfg.BaseURL)))
		}
		llm, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create model provider: %w", err)
	}

	s.modelCache[modelName] = llm
	return llm, nil
}

func (s *Service) maxTurns() int {
	if s.config.MaxTurns > 0 {
		return s.config.MaxTurns
	}
	return DefaultMaxTurns
}

// Ask 回答一次提问，满足 exchange.Asker。
//
// 核心流程:
//
//	Request{query, history | sessionId}
//	      |
//	      v
//	Retriever -> (无片段) -> NoInfoAnswer, confidence=low
//	      |
//	      v
//	system prompt + 上下文 + 历史窗口 + query
//	      |
//	      v
//	LLM GenerateContent -> answer
//	      |
//	      v
//	sessionId 模式下写回 SessionStore
func (s *Service) Ask(ctx context.Context, req askapi.Request) (*askapi.Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	var docs []schema.Document
	if s.retriever != nil {
		var err error
		docs, err = s.retriever.GetRelevantDocuments(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("retrieve documents: %w", err)
		}
		s.logger.Debug("documents retrieved", zap.Int("count", len(docs)))
		if len(docs) == 0 {
			return &askapi.Response{Answer: NoInfoAnswer, Sources: []askapi.Source{}, Confidence: "low"}, nil
		}
	}

	modelName := s.config.DefaultModel
	llm, err := s.getModel(ctx, modelName)
	if err != nil {
		return nil, err
	}

	turns, err := s.conversation(ctx, req)
	if err != nil {
		return nil, err
	}
	messages := s.buildMessages(docs, turns, query)

	var callOpts []llms.CallOption
	if cfg, ok := s.config.Model(modelName); ok {
		if cfg.Temperature > 0 {
			callOpts = append(callOpts, llms.WithTemperature(cfg.Temperature))
		}
		if cfg.MaxTokens > 0 {
			callOpts = append(callOpts, llms.WithMaxTokens(cfg.MaxTokens))
		}
	}

	resp, err := llm.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return nil, ErrEmptyAnswer
	}
	answer := strings.TrimSpace(resp.Choices[0].Content)

	if req.SessionID != "" && len(req.History) == 0 {
		if err := s.store.AddUserMessage(ctx, req.SessionID, query); err != nil {
			s.logger.Warn("session store write failed", zap.Error(err))
		} else if err := s.store.AddAIMessage(ctx, req.SessionID, answer); err != nil {
			s.logger.Warn("session store write failed", zap.Error(err))
		}
	}

	out := &askapi.Response{Answer: answer, Sources: toSources(docs)}
	if len(docs) > 0 {
		out.Confidence = "medium"
		if docs[0].Score > highConfidence {
			out.Confidence = "high"
		}
	}
	return out, nil
}

// conversation 返回发给模型的历史轮次（不含本次 query）。
// 客户端携带历史时以客户端为准；只有 sessionId 时读取服务端存储。
func (s *Service) conversation(ctx context.Context, req askapi.Request) ([]history.Turn, error) {
	turns := req.History
	if len(turns) == 0 && req.SessionID != "" {
		stored, err := s.store.GetHistory(ctx, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get history: %w", err)
		}
		turns = make([]history.Turn, 0, len(stored))
		for _, m := range stored {
			switch m.GetType() {
			case llms.ChatMessageTypeHuman:
				turns = append(turns, history.Turn{Role: history.RoleUser, Content: m.GetContent()})
			case llms.ChatMessageTypeAI:
				turns = append(turns, history.Turn{Role: history.RoleAssistant, Content: m.GetContent()})
			}
		}
	}

	// 客户端历史的最后一条通常就是本次 query
	if n := len(turns); n > 0 && turns[n-1].Role == history.RoleUser &&
		strings.TrimSpace(turns[n-1].Content) == strings.TrimSpace(req.Query) {
		turns = turns[:n-1]
	}
	if limit := s.maxTurns(); len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (s *Service) buildMessages(docs []schema.Document, turns []history.Turn, query string) []llms.MessageContent {
	prompt := s.config.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	if len(docs) > 0 {
		parts := make([]string, 0, len(docs))
		for _, d := range docs {
			parts = append(parts, fmt.Sprintf("[Fuente: %s]\n%s", sourceOf(d), d.PageContent))
		}
		prompt += "\n\nCONTEXTO:\n" + strings.Join(parts, "\n\n")
	}

	messages := make([]llms.MessageContent, 0, len(turns)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, prompt))
	for _, t := range turns {
		role := llms.ChatMessageTypeHuman
		if t.Role == history.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, t.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, query))
	return messages
}

func sourceOf(d schema.Document) string {
	if v, ok := d.Metadata["source"].(string); ok && v != "" {
		return v
	}
	return "unknown"
}

func toSources(docs []schema.Document) []askapi.Source {
	if len(docs) == 0 {
		return nil
	}
	out := make([]askapi.Source, 0, len(docs))
	for _, d := range docs {
		score := float64(d.Score)
		out = append(out, askapi.Source{URL: sourceOf(d), Excerpt: excerpt(d.PageContent), Score: &score})
	}
	return out
}

// excerpt 取片段的第一段非空文本。
func excerpt(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line != "" {
			return line
		}
	}
	return ""
}
