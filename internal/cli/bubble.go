package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	bubbleCmd := &cobra.Command{
		Use:   "bubble",
		Short: "Bubble management",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all bubbles",
		Run:   runBubbleList,
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a bubble",
		Args:  cobra.ExactArgs(1),
		Run:   runBubbleCreate,
	}
	createCmd.Flags().String("description", "", "Bubble description")

	bubbleCmd.AddCommand(listCmd, createCmd)
	RootCmd.AddCommand(bubbleCmd)
}

func runBubbleList(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	bubbles, err := s.ListBubbles(cmd.Context())
	if err != nil {
		exitErr("list bubbles", err)
	}

	b, _ := json.MarshalIndent(bubbles, "", "  ")
	fmt.Println(string(b))
}

func runBubbleCreate(cmd *cobra.Command, args []string) {
	description, _ := cmd.Flags().GetString("description")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	bubble, err := s.CreateBubble(cmd.Context(), args[0], description)
	if err != nil {
		exitErr("create bubble", err)
	}

	b, _ := json.Marshal(bubble)
	fmt.Println(string(b))
}
