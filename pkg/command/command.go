package command

import "github.com/spf13/cobra"

// CommandFactory 创建一棵新的 Cobra 命令树。
// 每次调用都必须返回独立的实例，避免 Flag 状态在多次执行之间共享。
type CommandFactory func() *cobra.Command
