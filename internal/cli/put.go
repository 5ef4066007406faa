package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/context-keeper/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [content]",
		Short: "Store a context entry",
		Long:  "Store a context entry. Content can be a positional arg or piped via stdin.",
		Run:   runPut,
	}

	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().StringP("bubble", "b", "", "Bubble name to file the entry under")
	cmd.Flags().String("type", "", "Declared type name")
	cmd.Flags().String("source", "user", "Provenance: agent, user, import, system")
	cmd.Flags().String("data", "", "JSON structured payload")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	tagsStr, _ := cmd.Flags().GetString("tags")
	bubbleName, _ := cmd.Flags().GetString("bubble")
	typ, _ := cmd.Flags().GetString("type")
	source, _ := cmd.Flags().GetString("source")
	dataStr, _ := cmd.Flags().GetString("data")

	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}

	if strings.TrimSpace(content) == "" {
		exitErr("put", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	var data map[string]any
	if dataStr != "" {
		if err := json.Unmarshal([]byte(dataStr), &data); err != nil {
			exitErr("parse data", err)
		}
	}

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

	entry, err := s.Save(cmd.Context(), store.SaveParams{
		Content:  strings.TrimSpace(content),
		Tags:     splitTags(tagsStr),
		Source:   source,
		BubbleID: bubbleID,
		Type:     typ,
		Data:     data,
	})
	if err != nil {
		exitErr("put", err)
	}

	b, _ := json.Marshal(entry)
	fmt.Println(string(b))
}

func splitTags(tagsStr string) []string {
	var tags []string
	for _, t := range strings.Split(tagsStr, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
