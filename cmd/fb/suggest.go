package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/steveyegge/focusboard/internal/reorder"
	"github.com/steveyegge/focusboard/internal/suggest"
	"github.com/steveyegge/focusboard/internal/ui"
)

var suggestApply bool

var suggestCmd = &cobra.Command{
	Use:     "suggest <id>",
	GroupID: "tasks",
	Short:   "Ask Claude where to file a task",
	Long: `Suggest a destination (page/section) for a task, constrained to the
legal section set. Requires ANTHROPIC_API_KEY. With --apply the task is
moved to the suggested destination.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			fatal("Error: ANTHROPIC_API_KEY is not set\n")
		}

		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			fatal("Error: %v\n", err)
		}
		defer a.close()

		id, err := a.resolveID(args[0])
		if err != nil {
			fatal("Error: %v\n", err)
		}
		task, _ := a.store.Get(id)

		s := suggest.New(a.tax, a.cfg.Model)
		suggestion, err := s.Suggest(ctx, task)
		if err != nil {
			fatal("Error: %v\n", err)
		}

		fmt.Printf("%s Suggested destination for %q: %s/%s\n",
			ui.RenderAccent("◆"), task.Title, suggestion.Page, suggestion.Section)

		if !suggestApply {
			return
		}

		batch, err := a.engine.MoveAcross(reorder.Selection{
			TaskIDs:     []string{id},
			DestPage:    suggestion.Page,
			DestSection: suggestion.Section,
		})
		if err != nil {
			fatal("Error: %v\n", err)
		}
		if err := a.rec.Persist(ctx, a.cfg.OwnerID, batch); err != nil {
			fatal("Error persisting: %v\n", err)
		}
		fmt.Printf("%s Moved %s to %s/%s\n",
			ui.RenderPass("✓"), shortID(id), suggestion.Page, suggestion.Section)
	},
}

func init() {
	suggestCmd.Flags().BoolVar(&suggestApply, "apply", false, "move the task to the suggestion")
}
