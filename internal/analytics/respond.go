package analytics

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/insightlab/analytics-engine/internal/domain"
)

// Intent names for conversational replies.
const (
	IntentRevenue   = "revenue"
	IntentOrders    = "orders"
	IntentPatients  = "patients"
	IntentInventory = "inventory"
	IntentGreeting  = "greeting"
	IntentFallback  = "fallback"
)

// ReplyContext is the tenant snapshot interpolated into reply templates.
// Callers fetch it immediately before rendering so answers are never stale.
type ReplyContext struct {
	Summary   domain.PeriodSummary
	LowStock  int
	TotalSKUs int
}

// Reply is a rendered conversational answer.
type Reply struct {
	Intent string `json:"intent"`
	Text   string `json:"text"`
}

// intentMatcher pairs an ordered keyword set with a template renderer.
// Matchers are evaluated top to bottom; the first hit wins. Substring
// matching lets "order" cover "orders" and "reorder"; wholeWords is for
// short keywords like "hi" that would otherwise fire inside unrelated
// words.
type intentMatcher struct {
	intent     string
	keywords   []string
	wholeWords bool
	render     func(ctx ReplyContext) string
}

var intentTaxonomy = []intentMatcher{
	{
		intent:   IntentRevenue,
		keywords: []string{"revenue", "sales", "income", "earning"},
		render: func(ctx ReplyContext) string {
			return fmt.Sprintf("Revenue for the current period is %.2f across %.0f orders.",
				ctx.Summary.Revenue, ctx.Summary.Orders)
		},
	},
	{
		intent:   IntentOrders,
		keywords: []string{"order", "production", "lab"},
		render: func(ctx ReplyContext) string {
			return fmt.Sprintf("You have %.0f active orders; %.0f orders were placed in the current period.",
				ctx.Summary.ActiveOrders, ctx.Summary.Orders)
		},
	},
	{
		intent:   IntentPatients,
		keywords: []string{"patient", "appointment", "booking", "visit"},
		render: func(ctx ReplyContext) string {
			return fmt.Sprintf("%.0f patients were seen this period with a %.1f%% no-show rate.",
				ctx.Summary.Patients, ctx.Summary.NoShowRate)
		},
	},
	{
		intent:   IntentInventory,
		keywords: []string{"stock", "inventory", "reorder", "supply"},
		render: func(ctx ReplyContext) string {
			if ctx.LowStock == 0 {
				return fmt.Sprintf("All %d tracked items are above their reorder thresholds.", ctx.TotalSKUs)
			}
			return fmt.Sprintf("%d of %d tracked items are below their reorder thresholds.",
				ctx.LowStock, ctx.TotalSKUs)
		},
	},
	{
		intent:     IntentGreeting,
		keywords:   []string{"hello", "hi", "hey"},
		wholeWords: true,
		render: func(ctx ReplyContext) string {
			return "Hello! Ask me about revenue, orders, patients, or inventory."
		},
	},
}

// Respond matches free text against the intent taxonomy and renders the
// first matching template. Unmatched text gets a clarification prompt.
func Respond(text string, ctx ReplyContext) Reply {
	normalized := strings.ToLower(text)
	words := splitWords(normalized)
	for _, m := range intentTaxonomy {
		for _, kw := range m.keywords {
			if m.wholeWords {
				if containsWord(words, kw) {
					return Reply{Intent: m.intent, Text: m.render(ctx)}
				}
			} else if strings.Contains(normalized, kw) {
				return Reply{Intent: m.intent, Text: m.render(ctx)}
			}
		}
	}
	return Reply{
		Intent: IntentFallback,
		Text:   "I didn't catch that. Try asking about revenue, orders, patients, or inventory.",
	}
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsWord(words []string, kw string) bool {
	for _, w := range words {
		if w == kw {
			return true
		}
	}
	return false
}
