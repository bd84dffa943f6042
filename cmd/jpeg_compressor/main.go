// Команда jpeg_compressor - эталонный движок сжатия.
// Использование: jpeg_compressor <input_path> <output_path> <quality>
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/jpegcompress/internal/compressor"
	"github.com/artemshloyda/jpegcompress/internal/refengine"
)

func main() {
	cmd := &cobra.Command{
		Use:           "jpeg_compressor <input_path> <output_path> <quality>",
		Short:         "Перекодирует JPEG с заданным качеством (0.002-1.0)",
		Version:       refengine.Version,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			quality, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid quality %q: %w", args[2], err)
			}
			if err := compressor.ValidateQuality(quality); err != nil {
				return err
			}

			stats, err := refengine.Compress(args[0], args[1], quality)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Compressed %s -> %s (%s)\n", args[0], args[1], stats)
			return nil
		},
	}
	cmd.SetVersionTemplate("jpeg_compressor {{.Version}}\n")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
