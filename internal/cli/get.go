package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/context-keeper/internal/observer"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get an entry by id",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	entry, err := s.Get(cmd.Context(), args[0])
	if err != nil {
		exitErr("get", err)
	}

	// Read telemetry feeds staleness analysis.
	if obs, err := openObserver(); err == nil {
		obs.Log(observer.Event{Event: observer.EventRead, Type: entry.Type})
	}

	b, _ := json.MarshalIndent(entry, "", "  ")
	fmt.Println(string(b))
}
