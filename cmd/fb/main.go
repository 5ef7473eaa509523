// Command fb is a task board CLI: capture tasks, move them between
// pages and sections, and keep per-section ordering consistent with the
// remote store.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/steveyegge/focusboard/internal/attach"
	"github.com/steveyegge/focusboard/internal/config"
	"github.com/steveyegge/focusboard/internal/gateway"
	"github.com/steveyegge/focusboard/internal/logging"
	"github.com/steveyegge/focusboard/internal/reconcile"
	"github.com/steveyegge/focusboard/internal/reorder"
	"github.com/steveyegge/focusboard/internal/store"
	"github.com/steveyegge/focusboard/internal/taxonomy"
	"github.com/steveyegge/focusboard/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "fb",
	Short: "Focusboard task board",
	Long: `fb captures tasks and moves them through pages (inbox, daily, weekly)
and named sections, keeping a dense per-section ordering in sync with
the backing store.`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a focusboard workspace in the current directory",
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fatal("Error: %v\n", err)
		}
		dir, err := config.Init(cwd)
		if err != nil {
			fatal("Error initializing workspace: %v\n", err)
		}
		fmt.Printf("%s Initialized workspace at %s\n", ui.RenderPass("✓"), dir)
	},
}

func main() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Task Commands:"},
		&cobra.Group{ID: "board", Title: "Board Commands:"},
	)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd, listCmd, moveCmd, reorderCmd, doneCmd,
		reopenCmd, scheduleCmd, rmCmd)
	rootCmd.AddCommand(sectionsCmd, boardCmd, exportCmd, importCmd, suggestCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired subsystems for one command invocation.
type app struct {
	cfg    config.Config
	dir    string
	gw     *gateway.DB
	tax    *taxonomy.Taxonomy
	store  *store.Store
	engine *reorder.Engine
	rec    *reconcile.Reconciler
	logW   io.Writer
}

// openApp locates the workspace, opens the gateway, loads the taxonomy
// and the task snapshot, and runs the constraint drift check.
func openApp(ctx context.Context) (*app, error) {
	dir := config.FindDir()
	if dir == "" {
		return nil, fmt.Errorf("%s directory not found (run 'fb init')", config.DirName)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	logW := logging.Writer(logging.Options{File: cfg.LogFile})

	var gw *gateway.DB
	if cfg.TursoURL != "" {
		gw, err = gateway.OpenRemote(cfg.TursoURL, cfg.TursoAuthToken)
	} else {
		gw, err = gateway.Open(cfg.DBPath)
	}
	if err != nil {
		return nil, err
	}
	if err := gw.InitSchema(ctx); err != nil {
		_ = gw.Close()
		return nil, err
	}

	tax, err := taxonomy.New(taxonomy.NewRegistry(config.SectionsPath(dir)))
	if err != nil {
		_ = gw.Close()
		return nil, err
	}

	// Surface constraint drift loudly at startup instead of failing
	// silently on individual writes later.
	if live, err := gw.SectionConstraint(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s Could not read live section constraint: %v\n",
			ui.RenderWarn("⚠"), err)
	} else if err := tax.CheckDrift(live); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderErr("✗"), err)
	}

	st := store.New(gw, tax)
	if err := st.Load(ctx, cfg.OwnerID); err != nil {
		_ = gw.Close()
		return nil, err
	}

	rec := reconcile.New(st, gw, attach.NewDir(config.AttachmentsDir(dir)), nil,
		logging.New(logW, "[reconcile] "))

	return &app{
		cfg:    cfg,
		dir:    dir,
		gw:     gw,
		tax:    tax,
		store:  st,
		engine: reorder.New(st, tax),
		rec:    rec,
		logW:   logW,
	}, nil
}

func (a *app) close() {
	if err := a.gw.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func (a *app) logger(prefix string) *log.Logger {
	return logging.New(a.logW, prefix)
}

// resolveID expands a task id prefix to the full id, requiring the
// prefix to be unambiguous.
func (a *app) resolveID(prefix string) (string, error) {
	if _, ok := a.store.Get(prefix); ok {
		return prefix, nil
	}

	var matches []string
	for _, t := range a.store.Snapshot() {
		if strings.HasPrefix(t.ID, prefix) {
			matches = append(matches, t.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no task matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous (%d matches)", prefix, len(matches))
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
