package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/steveyegge/focusboard/internal/dashboard"
	"github.com/steveyegge/focusboard/internal/taxonomy"
	"github.com/steveyegge/focusboard/internal/ui"
)

var boardPort int

var boardCmd = &cobra.Command{
	Use:     "board",
	GroupID: "board",
	Short:   "Serve the live board over WebSocket",
	Long: `Start the board server. Connected WebSocket clients receive task,
section, and reconciliation events plus periodic board statistics.

The server also watches the custom-sections file, so registrations
made by other fb processes are reflected live.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, err := openApp(ctx)
		if err != nil {
			fatal("Error: %v\n", err)
		}
		defer a.close()

		port := boardPort
		if port == 0 {
			port = a.cfg.DashboardPort
		}

		srv := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Logger: a.logger("[board] "),
		})
		if err := srv.Start(); err != nil {
			fatal("Error starting board server: %v\n", err)
		}
		handler := dashboard.NewHandler(srv, a.logger("[board] "))
		a.rec.SetNotifier(handler)

		watcher, err := taxonomy.NewWatcher(a.tax, a.logger("[sections] "))
		if err != nil {
			fatal("Error: %v\n", err)
		}
		if err := watcher.Start(ctx); err != nil {
			fatal("Error: %v\n", err)
		}
		defer watcher.Stop()

		fmt.Printf("%s Board server on ws://localhost:%d/ws\n", ui.RenderAccent("▶"), port)

		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

		prev := a.store.Snapshot()
		prevSections := a.tax.Descriptors()

		for {
			select {
			case <-ticker.C:
				// Refresh from authoritative state so edits from other
				// processes show up, then push what changed to clients.
				if err := a.store.Load(ctx, a.cfg.OwnerID); err != nil {
					fmt.Fprintf(os.Stderr, "%s Reload failed: %v\n", ui.RenderWarn("⚠"), err)
					continue
				}
				next := a.store.Snapshot()
				for _, ev := range dashboard.DiffSnapshots(prev, next) {
					handler.OnTaskEvent(ev.Task, ev.Action)
				}
				nextSections := a.tax.Descriptors()
				added, removed := dashboard.DiffSections(prevSections, nextSections)
				for _, d := range added {
					handler.OnSectionRegistered(d)
				}
				for _, id := range removed {
					handler.OnSectionUnregistered(id)
				}
				handler.BroadcastStats(next)
				prev, prevSections = next, nextSections

			case <-sig:
				fmt.Printf("\n%s Shutting down\n", ui.RenderAccent("■"))
				if err := srv.Stop(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
				}
				return
			}
		}
	},
}

func init() {
	boardCmd.Flags().IntVar(&boardPort, "port", 0, "listen port (default from config)")
}
