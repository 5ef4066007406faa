package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/context-keeper/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "link <from-id> <to-id>",
		Short: "Link two entries",
		Long:  "Record a relation between two entries. Contradiction links feed the resolve_contradictions maintenance action.",
		Args:  cobra.ExactArgs(2),
		Run:   runLink,
	}

	cmd.Flags().String("rel", store.RelContradicts, "Relation: contradicts, relates_to, supersedes")
	cmd.Flags().Bool("remove", false, "Remove the relation instead")

	RootCmd.AddCommand(cmd)
}

func runLink(cmd *cobra.Command, args []string) {
	rel, _ := cmd.Flags().GetString("rel")
	remove, _ := cmd.Flags().GetBool("remove")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if remove {
		if err := s.Unlink(cmd.Context(), args[0], args[1], rel); err != nil {
			exitErr("unlink", err)
		}
		fmt.Printf("unlinked %s %s %s\n", args[0], rel, args[1])
		return
	}

	if err := s.Link(cmd.Context(), args[0], args[1], rel); err != nil {
		exitErr("link", err)
	}
	fmt.Printf("linked %s %s %s\n", args[0], rel, args[1])
}
