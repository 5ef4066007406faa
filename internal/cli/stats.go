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
		Use:   "stats",
		Short: "Show store statistics and self-model",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

type statsOutput struct {
	Store       *store.Stats        `json:"store"`
	Pending     int                 `json:"pending"`
	Protections int                 `json:"protections"`
	SelfModel   *observer.SelfModel `json:"self_model,omitempty"`
}

func runStats(cmd *cobra.Command, args []string) {
	s, plane, _, err := openControlPlane()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	st, err := s.Stats(cmd.Context(), getDBPath())
	if err != nil {
		exitErr("stats", err)
	}

	out := statsOutput{Store: st}
	if pending, err := plane.ListPending(); err == nil {
		out.Pending = len(pending)
	}
	if protections, err := plane.Protections(); err == nil {
		out.Protections = len(protections)
	}
	if sm, err := plane.SelfModel(); err == nil {
		out.SelfModel = sm
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
