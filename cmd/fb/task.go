package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
	"github.com/steveyegge/focusboard/internal/capture"
	"github.com/steveyegge/focusboard/internal/reorder"
	"github.com/steveyegge/focusboard/internal/schema"
	"github.com/steveyegge/focusboard/internal/ui"
)

var (
	addPage    string
	addSection string
)

var addCmd = &cobra.Command{
	Use:     "add <text...>",
	GroupID: "tasks",
	Short:   "Quick-capture a task",
	Long: `Capture a task from free text. Natural-language dates are recognized
and stripped from the title:

  fb add pay rent on friday
  fb add --page daily --section urgent call the bank`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			fatal("Error: %v\n", err)
		}
		defer a.close()

		page := schema.Page(addPage)
		task, err := capture.NewParser().Parse(a.cfg.OwnerID, page, addSection, strings.Join(args, " "))
		if err != nil {
			fatal("Error: %v\n", err)
		}

		batch, err := a.engine.Insert(task)
		if err != nil {
			fatal("Error: %v\n", err)
		}
		if err := a.rec.Persist(ctx, a.cfg.OwnerID, batch); err != nil {
			fatal("Error persisting: %v\n", err)
		}

		fmt.Printf("%s Added %s to %s/%s at position %d\n",
			ui.RenderPass("✓"), shortID(task.ID), task.Page, task.Section, task.SectionOrder)
		if task.Deadline != nil {
			fmt.Printf("   Deadline: %s\n", task.Deadline.Format("Mon Jan 2 15:04"))
		}
		if task.ScheduledDate != nil {
			fmt.Printf("   Scheduled: %s\n", task.ScheduledDate.Format("Mon Jan 2"))
		}
	},
}

var (
	listSection string
	listAll     bool
)

var listCmd = &cobra.Command{
	Use:     "list [page]",
	GroupID: "tasks",
	Short:   "List tasks by page and section",
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			fatal("Error: %v\n", err)
		}
		defer a.close()

		pages := schema.Pages
		if len(args) == 1 {
			p := schema.Page(args[0])
			if !schema.ValidPage(p) {
				fatal("Error: unknown page %q\n", args[0])
			}
			pages = []schema.Page{p}
		}

		for _, page := range pages {
			printedPage := false
			for _, section := range a.tax.LegalSections(page) {
				if listSection != "" && section != listSection {
					continue
				}
				tasks := a.store.Query(page, section, listAll)
				if len(tasks) == 0 {
					continue
				}
				if !printedPage {
					fmt.Printf("\n%s\n", ui.RenderHeader(strings.ToUpper(string(page))))
					printedPage = true
				}
				fmt.Printf("  %s\n", ui.RenderAccent(section))
				for _, t := range tasks {
					marker := " "
					if t.Completed {
						marker = ui.RenderPass("✓")
					}
					line := fmt.Sprintf("    %s %2d. [%s] %s", marker, t.SectionOrder, shortID(t.ID), t.Title)
					if t.ScheduledDate != nil {
						line += ui.RenderDim(" @" + t.ScheduledDate.Format("Jan 2"))
					}
					fmt.Println(line)
				}
			}
		}
		fmt.Println()
	},
}

var moveTo string

var moveCmd = &cobra.Command{
	Use:     "move <id...>",
	GroupID: "tasks",
	Short:   "Move tasks to another page/section",
	Long: `Move one or more tasks to a destination scope, preserving their
relative order. The destination must be legal for its page; an illegal
destination aborts the whole batch with nothing changed.

  fb move 3f2a --to daily/big_three
  fb move 3f2a 9c1b --to inbox/shopping`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			fatal("Error: %v\n", err)
		}
		defer a.close()

		destPage, destSection, err := parseDest(moveTo)
		if err != nil {
			fatal("Error: %v\n", err)
		}

		ids := make([]string, 0, len(args))
		for _, arg := range args {
			id, err := a.resolveID(arg)
			if err != nil {
				fatal("Error: %v\n", err)
			}
			ids = append(ids, id)
		}

		batch, err := a.engine.MoveAcross(reorder.Selection{
			TaskIDs:     ids,
			DestPage:    destPage,
			DestSection: destSection,
		})
		if err != nil {
			fatal("Error: %v\n", err)
		}
		if err := a.rec.Persist(ctx, a.cfg.OwnerID, batch); err != nil {
			fatal("Error persisting: %v\n", err)
		}

		fmt.Printf("%s Moved %d task(s) to %s/%s\n",
			ui.RenderPass("✓"), len(batch), destPage, destSection)
	},
}

var reorderCmd = &cobra.Command{
	Use:     "reorder <id> <position>",
	GroupID: "tasks",
	Short:   "Move a task to a new position within its section",
	Long: `Drag a task to a 1-based position within its current section. Every
sibling's order is re-derived so the section stays dense:

  fb reorder 3f2a 1    # put the task first`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
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
		pos, err := strconv.Atoi(args[1])
		if err != nil || pos < 1 {
			fatal("Error: position must be a positive integer\n")
		}

		task, _ := a.store.Get(id)
		batch, err := a.engine.MoveWithin(reorder.Gesture{
			Page:        task.Page,
			Section:     task.Section,
			TaskID:      id,
			TargetIndex: pos - 1,
		})
		if err != nil {
			fatal("Error: %v\n", err)
		}
		if err := a.rec.Persist(ctx, a.cfg.OwnerID, batch); err != nil {
			fatal("Error persisting: %v\n", err)
		}

		fmt.Printf("%s Reordered %s to position %d (%d row(s) changed)\n",
			ui.RenderPass("✓"), shortID(id), pos, len(batch))
	},
}

var doneCmd = &cobra.Command{
	Use:     "done <id>",
	GroupID: "tasks",
	Short:   "Mark a task completed",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setCompleted(args[0], true)
	},
}

var reopenCmd = &cobra.Command{
	Use:     "reopen <id>",
	GroupID: "tasks",
	Short:   "Reopen a completed task",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setCompleted(args[0], false)
	},
}

func setCompleted(idArg string, completed bool) {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		fatal("Error: %v\n", err)
	}
	defer a.close()

	id, err := a.resolveID(idArg)
	if err != nil {
		fatal("Error: %v\n", err)
	}

	batch, err := a.engine.SetCompleted(id, completed)
	if err != nil {
		fatal("Error: %v\n", err)
	}
	if err := a.rec.Persist(ctx, a.cfg.OwnerID, batch); err != nil {
		fatal("Error persisting: %v\n", err)
	}

	verb := "Completed"
	if !completed {
		verb = "Reopened"
	}
	fmt.Printf("%s %s %s\n", ui.RenderPass("✓"), verb, shortID(id))
}

var scheduleCmd = &cobra.Command{
	Use:     "schedule <id> <date...>",
	GroupID: "tasks",
	Short:   "Set a weekly task's scheduled date",
	Long: `Set the scheduled date of a task on the weekly page. The date may be
natural language:

  fb schedule 3f2a next tuesday
  fb schedule 3f2a clear`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
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

		var date *time.Time
		text := strings.Join(args[1:], " ")
		if text != "clear" {
			w := when.New(nil)
			w.Add(en.All...)
			w.Add(common.All...)
			r, err := w.Parse(text, time.Now())
			if err != nil || r == nil {
				fatal("Error: could not parse date %q\n", text)
			}
			t := r.Time
			date = &t
		}

		batch, err := a.engine.Schedule(id, date)
		if err != nil {
			fatal("Error: %v\n", err)
		}
		if err := a.rec.Persist(ctx, a.cfg.OwnerID, batch); err != nil {
			fatal("Error persisting: %v\n", err)
		}

		if date == nil {
			fmt.Printf("%s Cleared schedule for %s\n", ui.RenderPass("✓"), shortID(id))
		} else {
			fmt.Printf("%s Scheduled %s for %s\n", ui.RenderPass("✓"), shortID(id), date.Format("Mon Jan 2"))
		}
	},
}

var rmForce bool

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	GroupID: "tasks",
	Short:   "Delete a task and its attachments",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
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

		if !rmForce {
			var confirmed bool
			form := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Delete %q and its attachments?", task.Title)).
					Value(&confirmed),
			))
			if err := form.Run(); err != nil {
				fatal("Error: %v\n", err)
			}
			if !confirmed {
				fmt.Fprintln(os.Stderr, "Aborted")
				return
			}
		}

		batch, err := a.engine.Delete(id)
		if err != nil {
			fatal("Error: %v\n", err)
		}
		if err := a.rec.Persist(ctx, a.cfg.OwnerID, batch); err != nil {
			fatal("Error persisting: %v\n", err)
		}

		fmt.Printf("%s Deleted %s\n", ui.RenderPass("✓"), shortID(id))
	},
}

// parseDest splits "page/section" and validates the page half.
func parseDest(dest string) (schema.Page, string, error) {
	parts := strings.SplitN(dest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("destination must be page/section (got %q)", dest)
	}
	page := schema.Page(parts[0])
	if !schema.ValidPage(page) {
		return "", "", fmt.Errorf("unknown page %q", parts[0])
	}
	return page, parts[1], nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	addCmd.Flags().StringVar(&addPage, "page", string(schema.PageInbox), "destination page")
	addCmd.Flags().StringVar(&addSection, "section", "inbox_tasks", "destination section")
	listCmd.Flags().StringVar(&listSection, "section", "", "only this section")
	listCmd.Flags().BoolVar(&listAll, "all", false, "include completed tasks")
	moveCmd.Flags().StringVar(&moveTo, "to", "", "destination page/section (required)")
	_ = moveCmd.MarkFlagRequired("to")
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "skip confirmation")
}
