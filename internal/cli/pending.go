package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "Manage queued maintenance proposals",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals awaiting approval",
		Run:   runPendingList,
	}

	approveCmd := &cobra.Command{
		Use:   "approve <id>...",
		Short: "Approve proposals and execute them",
		Args:  cobra.MinimumNArgs(1),
		Run:   runPendingApprove,
	}
	approveCmd.Flags().String("schema", "", "Schema file path (default: schema.yaml next to the database)")

	dismissCmd := &cobra.Command{
		Use:   "dismiss <id>...",
		Short: "Dismiss proposals",
		Args:  cobra.MinimumNArgs(1),
		Run:   runPendingDismiss,
	}
	dismissCmd.Flags().StringP("reason", "r", "", "Dismissal reason; a reason against named entries also protects them")

	pendingCmd.AddCommand(listCmd, approveCmd, dismissCmd)
	RootCmd.AddCommand(pendingCmd)
}

func runPendingList(cmd *cobra.Command, args []string) {
	s, plane, _, err := openControlPlane()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	pending, err := plane.ListPending()
	if err != nil {
		exitErr("list pending", err)
	}

	b, _ := json.MarshalIndent(pending, "", "  ")
	fmt.Println(string(b))
}

func runPendingApprove(cmd *cobra.Command, args []string) {
	schemaPath, _ := cmd.Flags().GetString("schema")

	s, plane, obs, err := openControlPlane()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	engine, err := buildEngine(cmd.Context(), s, plane, obs, schemaPath)
	if err != nil {
		exitErr("build engine", err)
	}

	results, err := plane.BulkApprove(args)
	if err != nil {
		exitErr("approve", err)
	}

	// Approval records intent; execution happens here, so an execution
	// failure never corrupts the approval bookkeeping.
	for _, res := range results {
		if !res.OK {
			fmt.Printf("%s: %s\n", res.ID, res.Message)
			continue
		}
		count, err := engine.Execute(cmd.Context(), *res.Action)
		if err != nil {
			fmt.Printf("%s: approved, execution failed: %v\n", res.ID, err)
			continue
		}
		fmt.Printf("%s: %s (%d affected)\n", res.ID, res.Message, count)
	}
}

func runPendingDismiss(cmd *cobra.Command, args []string) {
	reason, _ := cmd.Flags().GetString("reason")

	s, plane, _, err := openControlPlane()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	dismissed, err := plane.BulkDismiss(args, reason)
	if err != nil {
		exitErr("dismiss", err)
	}
	fmt.Printf("dismissed %d of %d\n", dismissed, len(args))
}
