package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropfetch/dropfetch/internal/journal"
	"github.com/dropfetch/dropfetch/internal/progress"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit int
		link  string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded download runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dir, err := journalDir(cfg)
			if err != nil {
				return err
			}

			j, err := journal.Open(dir)
			if err != nil {
				return err
			}
			defer j.Close()

			var records []journal.RunRecord
			if link != "" {
				records, err = j.HistoryForLink(link, limit)
			} else {
				records, err = j.History(limit)
			}
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSTATUS\tDOWNLOADED\tSKIPPED\tFAILED\tBYTES\tLINK")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					r.StartTime.Format(time.RFC3339),
					r.Status,
					r.Downloaded,
					r.Skipped,
					r.Failed,
					progress.FormatBytes(r.Bytes),
					r.Link,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	cmd.Flags().StringVar(&link, "link", "", "only show runs for this shared link")

	return cmd
}
