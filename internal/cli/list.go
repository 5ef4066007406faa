package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/context-keeper/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries",
		Run:   runList,
	}

	cmd.Flags().StringP("bubble", "b", "", "Filter by bubble name")
	cmd.Flags().String("type", "", "Filter by declared type")
	cmd.Flags().StringP("tags", "t", "", "Filter by tags (comma-separated)")
	cmd.Flags().Bool("archived", false, "Include archived entries")
	cmd.Flags().IntP("limit", "l", 0, "Max results (0 = all)")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	bubbleName, _ := cmd.Flags().GetString("bubble")
	typ, _ := cmd.Flags().GetString("type")
	tagsStr, _ := cmd.Flags().GetString("tags")
	archived, _ := cmd.Flags().GetBool("archived")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	bubbleID := ""
	if bubbleName != "" {
		bubble, err := s.GetBubbleByName(cmd.Context(), bubbleName)
		if err != nil {
			exitErr("resolve bubble", err)
		}
		bubbleID = bubble.ID
	}

	entries, err := s.List(cmd.Context(), store.ListParams{
		BubbleID:        bubbleID,
		Type:            typ,
		Tags:            splitTags(tagsStr),
		IncludeArchived: archived,
		Limit:           limit,
	})
	if err != nil {
		exitErr("list", err)
	}

	b, _ := json.MarshalIndent(entries, "", "  ")
	fmt.Println(string(b))
}
