package command

import "errors"

var (
	// ErrUnknownCommand 表示命令树中没有对应的子命令。
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNoActions 表示执行上下文中没有可用的挂件动作。
	ErrNoActions = errors.New("widget actions not configured")
)
