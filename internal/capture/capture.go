// Package capture turns free-form quick-capture text into a task.
// Natural-language dates ("pay rent on friday") are recognized and
// stripped from the title.
package capture

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/steveyegge/focusboard/internal/schema"
)

// Parser extracts a title and an optional date from capture text.
type Parser struct {
	w *when.Parser
}

// NewParser creates a parser with the English and common rule sets.
func NewParser() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

// Parse builds a task from the capture text, destined for the given
// scope. The task still needs its section_order assigned by the reorder
// engine's Insert.
//
// A recognized date becomes the scheduled date on the weekly page and
// the deadline everywhere else.
func (p *Parser) Parse(ownerID string, page schema.Page, section, text string) (*schema.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("capture text is empty")
	}

	title := text
	var parsed *time.Time

	if r, err := p.w.Parse(text, time.Now()); err == nil && r != nil {
		t := r.Time
		parsed = &t
		title = strings.TrimSpace(text[:r.Index] + text[r.Index+len(r.Text):])
		if title == "" {
			// The whole text was a date expression; keep it as the title
			// rather than producing an untitled task.
			title = text
			parsed = nil
		}
	}

	task := &schema.Task{
		ID:      schema.NewID(),
		OwnerID: ownerID,
		Page:    page,
		Section: section,
		Title:   title,
	}
	if parsed != nil {
		if page == schema.PageWeekly {
			task.ScheduledDate = parsed
		} else {
			task.Deadline = parsed
		}
	}
	task.SetDefaults()
	return task, nil
}
