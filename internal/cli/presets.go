package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/jpegcompress/internal/compressor"
	"github.com/artemshloyda/jpegcompress/internal/config"
)

// newPresetsCmd создаёт команду для списка пресетов качества.
func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "Показать пресеты качества",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows [][]string
			for _, name := range config.ValidPresets() {
				p := config.Presets[config.Preset(name)]
				rows = append(rows, []string{name, compressor.FormatQuality(p.Quality), p.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Name", "Quality", "Description"}, rows, 1))
			return nil
		},
	}
}
