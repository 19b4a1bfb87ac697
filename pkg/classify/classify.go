// Package classify 将传输层 / HTTP 层的失败映射为固定的错误分类与面向用户的提示。
//
// 分类结果仅用于向终端用户展示，不触发任何自动重试。
package classify

import (
	"fmt"
	"net/http"
	"strings"
)

// Kind 是封闭的错误分类枚举。
type Kind int

const (
	Unknown Kind = iota
	InvalidRequest
	Forbidden
	RateLimited
	ServerError
	Unavailable
	NetworkOrCors
	MalformedResponse
)

var kindNames = [...]string{
	Unknown:           "unknown",
	InvalidRequest:    "invalid_request",
	Forbidden:         "forbidden",
	RateLimited:       "rate_limited",
	ServerError:       "server_error",
	Unavailable:       "unavailable",
	NetworkOrCors:     "network_or_cors",
	MalformedResponse: "malformed_response",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Transport 描述请求在拿到 HTTP 状态之前（或解析响应体时）失败的方式。
type Transport int

const (
	// TransportNone 表示没有传输层失败。
	TransportNone Transport = iota
	// TransportNetwork 表示网络不可达、跨域被拒绝等拿不到响应的情况。
	TransportNetwork
	// TransportDecode 表示拿到了响应但响应体无法解析为预期的 JSON。
	TransportDecode
)

// 面向用户的提示文案。
const (
	MessageInvalidRequest = "No pude entender tu pregunta. ¿Podrías reformularla?"
	MessageForbidden      = "Acceso denegado: este sitio no está autorizado para usar el asistente."
	MessageRateLimited    = "Estás enviando mensajes muy rápido. Espera un momento e inténtalo de nuevo."
	MessageServerError    = "El servicio tuvo un problema interno. Inténtalo más tarde."
	MessageUnavailable    = "El servicio no está disponible en este momento. Inténtalo más tarde."
	MessageNetwork        = "No pude conectar con el servicio. Verifica tu conexión a internet e inténtalo de nuevo."
	MessageMalformed      = "Recibí una respuesta inválida del servicio. Inténtalo de nuevo."
	MessageUnknown        = "Lo siento, ocurrió un error inesperado al procesar tu pregunta."
)

// Classification 是一次失败的分类结果。
type Classification struct {
	Kind    Kind
	Message string
}

// statusTable 是按 HTTP 状态码的固定映射表。
var statusTable = map[int]Classification{
	http.StatusBadRequest:          {Kind: InvalidRequest, Message: MessageInvalidRequest},
	http.StatusForbidden:           {Kind: Forbidden, Message: MessageForbidden},
	http.StatusTooManyRequests:     {Kind: RateLimited, Message: MessageRateLimited},
	http.StatusInternalServerError: {Kind: ServerError, Message: MessageServerError},
	http.StatusServiceUnavailable:  {Kind: Unavailable, Message: MessageUnavailable},
}

// Classify 根据状态码、传输失败类型与服务端消息给出分类。
// Parameters:
//   - status: HTTP 状态码，0 表示没有状态（请求未送达）
//   - transport: 传输层失败类型
//   - serverMessage: 服务端在错误响应体中给出的 error 字段，可为空
//
// 匹配顺序：网络失败 -> 状态码映射表 -> 响应体解析失败 -> 兜底。
// 已映射的状态码总是使用主题化文案；未映射时优先使用服务端消息。
func Classify(status int, transport Transport, serverMessage string) Classification {
	if transport == TransportNetwork {
		return Classification{Kind: NetworkOrCors, Message: MessageNetwork}
	}
	if c, ok := statusTable[status]; ok {
		return c
	}
	if transport == TransportDecode {
		return Classification{Kind: MalformedResponse, Message: MessageMalformed}
	}
	if msg := strings.TrimSpace(serverMessage); msg != "" {
		return Classification{Kind: Unknown, Message: msg}
	}
	return Classification{Kind: Unknown, Message: MessageUnknown}
}
