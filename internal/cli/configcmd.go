package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/jpegcompress/internal/config"
)

// newConfigCmd создаёт команду config.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Работа с конфигурационным файлом",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

// newConfigInitCmd создаёт команду config init.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Создать пример конфигурационного файла",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "jpegcompress.yaml"
			if len(args) == 1 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("файл %s уже существует (используйте --force)", path)
			}

			if err := os.WriteFile(path, []byte(config.GenerateExampleConfig()), 0644); err != nil {
				return fmt.Errorf("не удалось записать %s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✅ Создан %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Перезаписать существующий файл")

	return cmd
}
