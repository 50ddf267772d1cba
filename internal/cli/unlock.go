package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropfetch/dropfetch/internal/config"
	"github.com/dropfetch/dropfetch/internal/lock"
)

func newUnlockCmd() *cobra.Command {
	var saveDirFlag string

	cmd := &cobra.Command{
		Use:   "unlock [save-dir]",
		Short: "Remove a leftover run lock from a save directory",
		Long: `unlock force-removes the lock file in a save directory. Only use this
when a previous run crashed and its lock was not cleaned up; removing
the lock of a live run allows two runs to write the same files.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			saveDir := saveDirFlag
			if len(args) > 0 {
				saveDir = args[0]
			}
			if saveDir == "" {
				return fmt.Errorf("no save directory given")
			}
			saveDir = config.ExpandPath(saveDir)

			l, err := lock.New(saveDir)
			if err != nil {
				return err
			}

			if holder, err := l.GetHolder(); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Warning: lock is held by PID %d on %s\n", holder.PID, holder.Hostname)
			}

			if err := l.ForceRelease(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Lock removed from %s\n", saveDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&saveDirFlag, "save-dir", "d", "", "save directory holding the lock")

	return cmd
}
