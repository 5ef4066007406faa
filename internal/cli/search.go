package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/context-keeper/internal/observer"
	"github.com/rcliao/context-keeper/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search entries by content or tags",
		Args:  cobra.ExactArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("bubble", "b", "", "Restrict to a bubble")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	bubbleName, _ := cmd.Flags().GetString("bubble")
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

	results, err := s.Search(cmd.Context(), store.SearchParams{
		Query:    args[0],
		BubbleID: bubbleID,
		Limit:    limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	// A miss is telemetry: repeated misses become gap stub proposals.
	if len(results) == 0 {
		if obs, err := openObserver(); err == nil {
			obs.Log(observer.Event{Event: observer.EventSearchMiss, Query: args[0]})
		}
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
