package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rcliao/context-keeper/internal/schema"
)

func init() {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage declared entry types",
	}
	schemaCmd.PersistentFlags().String("schema", "", "Schema file path (default: schema.yaml next to the database)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List declared types",
		Run:   runSchemaList,
	}

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Declare a new type",
		Args:  cobra.ExactArgs(1),
		Run:   runSchemaAdd,
	}
	addCmd.Flags().String("description", "", "Type description (drives promotion scoring)")

	schemaCmd.AddCommand(listCmd, addCmd)
	RootCmd.AddCommand(schemaCmd)
}

func schemaPathFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("schema")
	if path == "" {
		path = filepath.Join(filepath.Dir(getDBPath()), "schema.yaml")
	}
	return path
}

func runSchemaList(cmd *cobra.Command, args []string) {
	sch, err := schema.Load(schemaPathFlag(cmd))
	if err != nil {
		exitErr("load schema", err)
	}

	b, _ := json.MarshalIndent(sch.Types, "", "  ")
	fmt.Println(string(b))
}

func runSchemaAdd(cmd *cobra.Command, args []string) {
	description, _ := cmd.Flags().GetString("description")
	path := schemaPathFlag(cmd)

	sch, err := schema.Load(path)
	if err != nil {
		exitErr("load schema", err)
	}
	if sch.Has(args[0]) {
		exitErr("add type", fmt.Errorf("type %q already declared", args[0]))
	}

	sch.Types = append(sch.Types, schema.Type{Name: args[0], Description: description})
	if err := sch.Save(path); err != nil {
		exitErr("save schema", err)
	}
	fmt.Printf("declared type %s\n", args[0])
}
