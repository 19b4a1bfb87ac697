package ai

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultTopK 是每次检索返回的最大片段数。
	DefaultTopK  = 3
	chunkSize    = 1000
	chunkOverlap = 200
)

var markdownSeparators = []string{"\n## ", "\n### ", "\n\n", "\n", " ", ""}

// stopwords 是评分时忽略的常见西语虚词。
var stopwords = map[string]struct{}{
	"que": {}, "los": {}, "las": {}, "del": {}, "por": {}, "para": {}, "con": {},
	"una": {}, "uno": {}, "como": {}, "cómo": {}, "qué": {}, "cuál": {}, "mis": {},
	"sus": {}, "este": {}, "esta": {}, "son": {}, "hay": {}, "puedo": {}, "the": {},
}

type chunk struct {
	source string
	text   string
	terms  map[string]struct{}
}

// KnowledgeBase 是基于词项重叠打分的本地检索器，实现 schema.Retriever。
// 文档按 Markdown 结构切分为片段。
type KnowledgeBase struct {
	mu       sync.RWMutex
	chunks   []chunk
	topK     int
	splitter textsplitter.TextSplitter
}

var _ schema.Retriever = (*KnowledgeBase)(nil)

// NewKnowledgeBase 创建空的知识库；topK <= 0 时使用 DefaultTopK。
func NewKnowledgeBase(topK int) *KnowledgeBase {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &KnowledgeBase{
		topK: topK,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(markdownSeparators),
		),
	}
}

// LoadKnowledgeDir 递归加载目录下的 .md / .txt 文件。
func LoadKnowledgeDir(dir string, topK int) (*KnowledgeBase, error) {
	kb := NewKnowledgeBase(topK)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt":
		default:
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		return kb.Add(filepath.ToSlash(rel), string(data))
	})
	if err != nil {
		return nil, fmt.Errorf("load knowledge dir: %w", err)
	}
	return kb, nil
}

// Add 切分文档并加入索引。
func (kb *KnowledgeBase) Add(source, text string) error {
	parts, err := kb.splitter.SplitText(text)
	if err != nil {
		return fmt.Errorf("split %s: %w", source, err)
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		kb.chunks = append(kb.chunks, chunk{source: source, text: p, terms: termSet(p)})
	}
	return nil
}

// Len 返回片段数量。
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.chunks)
}

// GetRelevantDocuments 返回与查询词项重叠最多的片段，分数在 [0,1]。
func (kb *KnowledgeBase) GetRelevantDocuments(_ context.Context, query string) ([]schema.Document, error) {
	q := termSet(query)
	if len(q) == 0 {
		return nil, nil
	}

	kb.mu.RLock()
	defer kb.mu.RUnlock()

	type scored struct {
		idx   int
		score float64
	}
	var hits []scored
	for i, c := range kb.chunks {
		matched := 0
		for term := range q {
			if _, ok := c.terms[term]; ok {
				matched++
			}
		}
		if matched > 0 {
			hits = append(hits, scored{idx: i, score: float64(matched) / float64(len(q))})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > kb.topK {
		hits = hits[:kb.topK]
	}

	docs := make([]schema.Document, 0, len(hits))
	for _, h := range hits {
		c := kb.chunks[h.idx]
		docs = append(docs, schema.Document{
			PageContent: c.text,
			Metadata:    map[string]any{"source": c.source},
			Score:       float32(h.score),
		})
	}
	return docs, nil
}

func termSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, skip := stopwords[f]; skip {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}
