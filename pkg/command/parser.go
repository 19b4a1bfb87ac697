package command

import (
	"strings"
	"unicode"
)

// ParseResult 是一行输入的解析结果。
type ParseResult struct {
	IsCommand   bool     // 是否以命令前缀开头
	Tokens      []string // 命令名（小写）及其参数
	Raw         string   // 原始输入
	ArgumentRaw string   // 命令名之后的原始参数串
}

// Parser 判定输入是否为斜杠命令并切分参数。
type Parser struct {
	Prefix string // 默认 "/"
}

// NewParser 创建默认前缀的解析器。
func NewParser() Parser {
	return Parser{Prefix: "/"}
}

// Parse 解析一行输入。只有前缀后紧跟字母的才算命令，
// 因此 "/ hola" 或 "/123" 这类文本会原样交给问答流程。
func (p Parser) Parse(text string) ParseResult {
	result := ParseResult{Raw: text}

	prefix := p.Prefix
	if prefix == "" {
		prefix = "/"
	}
	trimmed := strings.TrimSpace(text)
	rest, ok := strings.CutPrefix(trimmed, prefix)
	if !ok || rest == "" {
		return result
	}
	if first := []rune(rest)[0]; !unicode.IsLetter(first) {
		return result
	}

	name, args, _ := strings.Cut(rest, " ")
	if i := strings.IndexFunc(name, unicode.IsSpace); i >= 0 {
		args = name[i:] + " " + args
		name = name[:i]
	}

	result.IsCommand = true
	result.Tokens = append([]string{strings.ToLower(name)}, strings.Fields(args)...)
	result.ArgumentRaw = strings.TrimSpace(args)
	return result
}
