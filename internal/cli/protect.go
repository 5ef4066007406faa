package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/context-keeper/internal/model"
)

func init() {
	protectCmd := &cobra.Command{
		Use:   "protect",
		Short: "Manage standing vetoes against maintenance actions",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List protections",
		Run:   runProtectList,
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a protection",
		Run:   runProtectAdd,
	}
	addCmd.Flags().String("entry", "", "Entry id to protect")
	addCmd.Flags().String("pattern", "", "Action kind to veto store-wide")
	addCmd.Flags().String("from", "", "Comma-separated action kinds to block")
	addCmd.Flags().String("scope", "", "Optional scope filter recorded on the protection")
	addCmd.Flags().String("reason", "", "Why this protection exists")

	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove protections for an entry and kind",
		Run:   runProtectRemove,
	}
	removeCmd.Flags().String("entry", "", "Entry id")
	removeCmd.Flags().String("kind", "", "Action kind")

	protectCmd.AddCommand(listCmd, addCmd, removeCmd)
	RootCmd.AddCommand(protectCmd)
}

func runProtectList(cmd *cobra.Command, args []string) {
	s, plane, _, err := openControlPlane()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	protections, err := plane.Protections()
	if err != nil {
		exitErr("list protections", err)
	}

	b, _ := json.MarshalIndent(protections, "", "  ")
	fmt.Println(string(b))
}

func runProtectAdd(cmd *cobra.Command, args []string) {
	entryID, _ := cmd.Flags().GetString("entry")
	pattern, _ := cmd.Flags().GetString("pattern")
	fromStr, _ := cmd.Flags().GetString("from")
	scope, _ := cmd.Flags().GetString("scope")
	reason, _ := cmd.Flags().GetString("reason")

	var from []model.ActionKind
	for _, k := range splitTags(fromStr) {
		from = append(from, model.ActionKind(k))
	}
	if pattern != "" && len(from) == 0 {
		from = []model.ActionKind{model.ActionKind(pattern)}
	}

	s, plane, _, err := openControlPlane()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	prot, err := plane.AddProtection(model.Protection{
		EntryID:       entryID,
		Pattern:       model.ActionKind(pattern),
		Scope:         scope,
		ProtectedFrom: from,
		Reason:        reason,
	})
	if err != nil {
		exitErr("add protection", err)
	}

	b, _ := json.Marshal(prot)
	fmt.Println(string(b))
}

func runProtectRemove(cmd *cobra.Command, args []string) {
	entryID, _ := cmd.Flags().GetString("entry")
	kind, _ := cmd.Flags().GetString("kind")

	s, plane, _, err := openControlPlane()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	removed, err := plane.RemoveProtection(entryID, model.ActionKind(kind))
	if err != nil {
		exitErr("remove protection", err)
	}
	fmt.Printf("removed %d\n", removed)
}
