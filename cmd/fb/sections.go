package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/steveyegge/focusboard/internal/taxonomy"
	"github.com/steveyegge/focusboard/internal/ui"
)

var sectionsCmd = &cobra.Command{
	Use:     "sections",
	GroupID: "board",
	Short:   "Manage sections",
	Long: `List, add, and remove sections.

System sections are fixed by configuration and mirror the remote
schema constraint. Custom sections apply within the inbox page and
persist locally.`,
}

var sectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sections",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			fatal("Error: %v\n", err)
		}
		defer a.close()

		fmt.Printf("\n%s (config v%d)\n", ui.RenderHeader("SECTIONS"), a.tax.Version())
		for _, d := range a.tax.Descriptors() {
			kind := ui.RenderDim("custom")
			if d.IsSystem {
				kind = ui.RenderAccent("system")
			}
			fmt.Printf("  %-16s %-20s %s", d.ID, d.Name, kind)
			if len(d.Pages) > 0 {
				fmt.Printf("  %v", d.Pages)
			}
			fmt.Println()
		}
		fmt.Println()
	},
}

var (
	sectionIcon  string
	sectionColor string
)

var sectionsAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Register a custom section",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			fatal("Error: %v\n", err)
		}
		defer a.close()

		var name string
		if len(args) == 1 {
			name = args[0]
		} else {
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Section name").Value(&name),
				huh.NewInput().Title("Icon").Value(&sectionIcon),
				huh.NewInput().Title("Color").Placeholder("#8B5CF6").Value(&sectionColor),
			))
			if err := form.Run(); err != nil {
				fatal("Error: %v\n", err)
			}
		}

		d, err := a.tax.Register(name, sectionIcon, sectionColor)
		if err != nil {
			if errors.Is(err, taxonomy.ErrDuplicateName) {
				fatal("Error: %v\n", err)
			}
			fatal("Error registering section: %v\n", err)
		}

		fmt.Printf("%s Registered section %s (display order %d)\n",
			ui.RenderPass("✓"), d.ID, d.DisplayOrder)

		// A brand-new custom section is legal locally but the live
		// constraint may not accept it yet; warn rather than fail.
		if live, err := a.gw.SectionConstraint(ctx); err == nil {
			known := false
			for _, lit := range live {
				if lit == d.ID {
					known = true
					break
				}
			}
			if !known {
				fmt.Printf("%s The remote constraint does not include %q yet; writes to it will be rejected until the schema is updated\n",
					ui.RenderWarn("⚠"), d.ID)
			}
		}
	},
}

var sectionsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a custom section",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			fatal("Error: %v\n", err)
		}
		defer a.close()

		if err := a.tax.Unregister(args[0]); err != nil {
			if errors.Is(err, taxonomy.ErrProtectedSection) {
				fatal("Error: %s is a system section and cannot be removed\n", args[0])
			}
			fatal("Error: %v\n", err)
		}
		fmt.Printf("%s Removed section %s\n", ui.RenderPass("✓"), args[0])
	},
}

func init() {
	sectionsAddCmd.Flags().StringVar(&sectionIcon, "icon", "tag", "section icon")
	sectionsAddCmd.Flags().StringVar(&sectionColor, "color", "#8B5CF6", "section color")
	sectionsCmd.AddCommand(sectionsListCmd, sectionsAddCmd, sectionsRmCmd)
}
