package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/context-keeper/internal/control"
	"github.com/rcliao/context-keeper/internal/improve"
	"github.com/rcliao/context-keeper/internal/llm"
	"github.com/rcliao/context-keeper/internal/observer"
	"github.com/rcliao/context-keeper/internal/risk"
	"github.com/rcliao/context-keeper/internal/schema"
	"github.com/rcliao/context-keeper/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one self-improvement cycle",
		Long:  "Observe the store, propose maintenance actions, auto-execute low-risk ones, and queue the rest for approval.",
		Run:   runTick,
	}

	cmd.Flags().String("schema", "", "Schema file path (default: schema.yaml next to the database)")

	RootCmd.AddCommand(cmd)
}

func runTick(cmd *cobra.Command, args []string) {
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

	result, err := engine.Tick(cmd.Context())
	if err != nil {
		exitErr("tick", err)
	}

	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(b))
}

func openControlPlane() (*store.SQLiteStore, *control.Plane, *observer.Observer, error) {
	s, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	obs, err := openObserver()
	if err != nil {
		s.Close()
		return nil, nil, nil, err
	}
	plane := control.New(obs, risk.PolicyFromEnv(), newLogger())
	return s, plane, obs, nil
}

func buildEngine(ctx context.Context, s *store.SQLiteStore, plane *control.Plane, obs *observer.Observer, schemaPath string) (*improve.Engine, error) {
	if schemaPath == "" {
		schemaPath = filepath.Join(filepath.Dir(getDBPath()), "schema.yaml")
	}
	sch, err := schema.Load(schemaPath)
	if err != nil {
		return nil, err
	}

	var analyzer improve.Analyzer
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		a, err := llm.NewAnalyzer(ctx, key, os.Getenv("CONTEXT_KEEPER_MODEL"))
		if err == nil {
			analyzer = a
		}
	}

	return improve.New(s, obs, plane, sch, analyzer, engineConfig(), newLogger()), nil
}

// engineConfig assembles tick timing from the environment once, at
// startup; defaults apply when unset.
func engineConfig() improve.Config {
	cfg := improve.Config{}
	if ms := os.Getenv("CONTEXT_KEEPER_TICK_TIMEOUT_MS"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil && n > 0 {
			cfg.TickTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if ttl := os.Getenv("CONTEXT_KEEPER_PENDING_TTL"); ttl != "" {
		if d, err := parseTTL(ttl); err == nil {
			cfg.PendingTTL = d
		}
	}
	return cfg
}
