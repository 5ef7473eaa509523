// Package suggest asks Claude for a destination (page, section) for an
// unfiled task. Purely advisory: the caller decides whether to move.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/steveyegge/focusboard/internal/schema"
	"github.com/steveyegge/focusboard/internal/taxonomy"
)

// DefaultModel is used when no model is configured.
const DefaultModel = string(anthropic.ModelClaudeSonnet4_5)

// Suggestion is a proposed destination for a task.
type Suggestion struct {
	Page    schema.Page
	Section string
}

// Suggester proposes placements via the Anthropic API.
type Suggester struct {
	client anthropic.Client
	model  string
	tax    *taxonomy.Taxonomy
}

// New creates a suggester. The client reads ANTHROPIC_API_KEY from the
// environment. model may be empty to use DefaultModel.
func New(tax *taxonomy.Taxonomy, model string) *Suggester {
	if model == "" {
		model = DefaultModel
	}
	return &Suggester{
		client: anthropic.NewClient(),
		model:  model,
		tax:    tax,
	}
}

// Suggest proposes a legal destination for the task. The model is
// constrained to the taxonomy's legal pairs; anything else in the reply
// is rejected rather than trusted.
func (s *Suggester) Suggest(ctx context.Context, task *schema.Task) (*Suggestion, error) {
	var pairs []string
	for _, page := range schema.Pages {
		for _, section := range s.tax.LegalSections(page) {
			pairs = append(pairs, fmt.Sprintf("%s/%s", page, section))
		}
	}

	prompt := fmt.Sprintf(
		"A task needs to be filed on a personal task board.\n"+
			"Title: %s\nNotes: %s\n\n"+
			"Legal destinations (page/section), one per line:\n%s\n\n"+
			"Reply with exactly one destination from the list and nothing else.",
		task.Title, task.Notes, strings.Join(pairs, "\n"))

	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 32,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("suggestion request failed: %w", err)
	}

	var reply string
	for _, block := range msg.Content {
		reply += block.Text
	}
	return s.parseReply(reply)
}

func (s *Suggester) parseReply(reply string) (*Suggestion, error) {
	reply = strings.TrimSpace(reply)
	parts := strings.SplitN(reply, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("unparseable suggestion %q", reply)
	}

	page := schema.Page(strings.TrimSpace(parts[0]))
	section := strings.TrimSpace(parts[1])
	if !s.tax.IsLegal(page, section) {
		return nil, fmt.Errorf("model suggested illegal destination %q", reply)
	}
	return &Suggestion{Page: page, Section: section}, nil
}
