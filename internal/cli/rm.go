package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/context-keeper/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an entry",
		Long:  "Archive an entry (default) or hard-delete it with --hard.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	cmd.Flags().Bool("hard", false, "Hard-delete instead of archiving")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	hard, _ := cmd.Flags().GetBool("hard")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if hard {
		if err := s.Rm(cmd.Context(), args[0]); err != nil {
			exitErr("rm", err)
		}
		fmt.Printf("deleted %s\n", args[0])
		return
	}

	archived := true
	if _, err := s.Update(cmd.Context(), store.UpdateParams{ID: args[0], Archived: &archived}); err != nil {
		exitErr("rm", err)
	}
	fmt.Printf("archived %s\n", args[0])
}
