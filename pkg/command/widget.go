package command

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// help 按展示顺序列出可用命令。
var help = []struct{ name, desc string }{
	{"/limpiar", "Borra el historial y comienza una nueva conversación."},
	{"/sugerencia <texto>", "Envía una sugerencia al equipo."},
	{"/estado", "Muestra el estado de conexión con el servicio."},
	{"/ayuda", "Muestra esta ayuda."},
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Comandos disponibles:")
	for _, h := range help {
		fmt.Fprintf(w, "  %-22s %s\n", h.name, h.desc)
	}
}

// NewWidgetFactory 返回挂件命令树的工厂：limpiar / sugerencia / estado / ayuda。
func NewWidgetFactory() CommandFactory {
	return func() *cobra.Command {
		root := &cobra.Command{
			Use:           "askwidget",
			SilenceUsage:  true,
			SilenceErrors: true,
		}
		root.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
			printHelp(cmd.OutOrStdout())
		})
		root.AddCommand(clearCmd(), suggestCmd(), statusCmd(), helpCmd())
		return root
	}
}

func actionsFrom(cmd *cobra.Command) (*ExecutionContext, error) {
	execCtx := FromContext(cmd.Context())
	if execCtx == nil || execCtx.Actions == nil {
		return nil, ErrNoActions
	}
	return execCtx, nil
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "limpiar",
		Aliases: []string{"clear", "borrar"},
		Short:   "Borra el historial",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			execCtx, err := actionsFrom(cmd)
			if err != nil {
				return err
			}
			if err := execCtx.Actions.ClearConversation(); err != nil {
				return fmt.Errorf("no se pudo borrar el historial: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Historial borrado.")
			return nil
		},
	}
}

func suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "sugerencia <texto>",
		Aliases: []string{"suggest"},
		Short:   "Envía una sugerencia",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			execCtx, err := actionsFrom(cmd)
			if err != nil {
				return err
			}
			text := execCtx.ArgumentRaw
			if text == "" {
				text = strings.Join(args, " ")
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("escribe tu sugerencia después de /sugerencia")
			}
			if err := execCtx.Actions.SubmitSuggestion(cmd.Context(), text); err != nil {
				return fmt.Errorf("no se pudo enviar la sugerencia: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Sugerencia enviada.")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "estado",
		Aliases: []string{"status"},
		Short:   "Estado del servicio",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			execCtx, err := actionsFrom(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), execCtx.Actions.HealthStatus(cmd.Context()))
			return nil
		},
	}
}

func helpCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ayuda",
		Aliases: []string{"comandos"},
		Short:   "Muestra la ayuda",
		Run: func(cmd *cobra.Command, _ []string) {
			printHelp(cmd.OutOrStdout())
		},
	}
}
