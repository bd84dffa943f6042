package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/artemshloyda/jpegcompress/internal/compressor"
	"github.com/artemshloyda/jpegcompress/internal/storage"
)

// newStatsCmd создаёт команду stats.
func newStatsCmd(a *app) *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Показать статистику сжатий из базы данных",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DBPath == "" {
				return fmt.Errorf("укажите путь к БД через --db")
			}

			store, err := storage.New(a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("не удалось открыть БД: %w", err)
			}
			defer func() { _ = store.Close() }()

			stats, err := store.GetStats()
			if err != nil {
				return fmt.Errorf("не удалось получить статистику: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📊 Статистика сжатий:\n")
			fmt.Fprintf(out, "   Всего: %d\n", stats.Total)
			fmt.Fprintf(out, "   Успешно: %d\n", stats.OK)
			fmt.Fprintf(out, "   Ошибок: %d\n", stats.Failed)
			fmt.Fprintf(out, "   В процессе: %d\n", stats.InProgress)
			fmt.Fprintf(out, "   Вход: %s, выход: %s (сэкономлено %.1f%%)\n",
				humanize.IBytes(uint64(stats.InputBytes)),
				humanize.IBytes(uint64(stats.OutputBytes)),
				stats.SavedPercent())

			if recent <= 0 {
				return nil
			}
			jobs, err := store.Recent(recent)
			if err != nil {
				return fmt.Errorf("не удалось получить историю: %w", err)
			}
			if len(jobs) == 0 {
				return nil
			}

			var rows [][]string
			for _, job := range jobs {
				size := humanize.IBytes(uint64(job.SrcSize))
				if job.DstSize > 0 {
					size += " -> " + humanize.IBytes(uint64(job.DstSize))
				}
				status := string(job.Status)
				if job.Kind != "" && job.Status == storage.StatusFailed {
					status += " (" + job.Kind + ")"
				}
				rows = append(rows, []string{
					job.SrcName,
					compressor.FormatQuality(job.Quality),
					status,
					size,
					humanize.Time(job.StartedAt),
				})
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable([]string{"File", "Quality", "Status", "Size", "When"}, rows, 1, 3))
			return nil
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 10, "Сколько последних сжатий показать")

	return cmd
}
