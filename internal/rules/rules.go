// Package rules implements the rule base driving automatic transaction
// classification: an ordered list of typed matchers persisted as a
// human-editable JSON file. Evaluation order is file order and the first
// matching rule wins, so classification is reproducible for a fixed file.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/netzema/fintrack/internal/core"
)

// Fields a rule can match against.
const (
	FieldRemittance   Field = "remittance"
	FieldCounterparty Field = "counterparty"
	FieldAmount       Field = "amount"
	FieldID           Field = "id"
)

// Matcher kinds.
const (
	KindSubstring Kind = "substring"
	KindExact     Kind = "exact"
	KindRegex     Kind = "regex"
	KindAmount    Kind = "amount"
)

// Rule origins.
const (
	OriginManual  Origin = "manual"  // edited directly in the rules file
	OriginDerived Origin = "derived" // appended by the labeling tool
)

type (
	Field  string
	Kind   string
	Origin string

	// Rule maps a pattern to a category. Kind defaults to substring; amount
	// rules carry a comparison expression such as ">= 100" or "< -50".
	Rule struct {
		Match    string `json:"match"`
		Field    Field  `json:"field"`
		Kind     Kind   `json:"kind,omitempty"`
		Category string `json:"category"`
		Origin   Origin `json:"origin,omitempty"`
	}
)

var (
	ErrEmptyMatch       = errors.New("empty match pattern")
	ErrUnknownField     = errors.New("unknown rule field")
	ErrUnknownKind      = errors.New("unknown rule kind")
	ErrBadRegex         = errors.New("invalid regex pattern")
	ErrBadComparison    = errors.New("invalid amount comparison")
	ErrDuplicatePattern = errors.New("rule for this pattern already exists")
)

var comparisonRe = regexp.MustCompile(`^(>=|<=|==|!=|>|<)\s*(-?\d+(?:\.\d+)?)$`)

// EffectiveKind resolves the default matcher kind: amount comparisons for the
// amount field, exact match for ids, substring otherwise.
func (r Rule) EffectiveKind() Kind {
	if r.Kind != "" {
		return r.Kind
	}
	switch r.Field {
	case FieldAmount:
		return KindAmount
	case FieldID:
		return KindExact
	default:
		return KindSubstring
	}
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.Match) == "" {
		return ErrEmptyMatch
	}
	if strings.TrimSpace(r.Category) == "" {
		return core.ErrEmptyCategory
	}
	switch r.Field {
	case FieldRemittance, FieldCounterparty, FieldAmount, FieldID:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, string(r.Field))
	}
	if r.Field == FieldAmount && r.EffectiveKind() != KindAmount {
		return fmt.Errorf("%w: amount rules need a comparison match", ErrBadComparison)
	}
	switch r.EffectiveKind() {
	case KindSubstring, KindExact:
	case KindRegex:
		if _, err := regexp.Compile("(?i)" + r.Match); err != nil {
			return fmt.Errorf("%w: %v", ErrBadRegex, err)
		}
	case KindAmount:
		if r.Field != FieldAmount {
			return fmt.Errorf("%w: amount comparison on field %q", ErrBadComparison, string(r.Field))
		}
		if !comparisonRe.MatchString(strings.TrimSpace(r.Match)) {
			return fmt.Errorf("%w: %q", ErrBadComparison, r.Match)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(r.Kind))
	}
	return nil
}

// fieldValue extracts the matched text field from a transaction.
func (r Rule) fieldValue(tx core.Transaction) string {
	switch r.Field {
	case FieldCounterparty:
		return tx.Counterparty
	case FieldID:
		return tx.ID
	default:
		return tx.Remittance
	}
}

// Matches reports whether the rule applies to the transaction. String
// matching is case-insensitive; amount comparisons evaluate the signed
// euro amount.
func (r Rule) Matches(tx core.Transaction) bool {
	switch r.EffectiveKind() {
	case KindAmount:
		return r.matchesAmount(tx.Amount)
	case KindExact:
		return strings.EqualFold(strings.TrimSpace(r.fieldValue(tx)), strings.TrimSpace(r.Match))
	case KindRegex:
		re, err := regexp.Compile("(?i)" + r.Match)
		if err != nil {
			return false
		}
		return re.MatchString(r.fieldValue(tx))
	default:
		return strings.Contains(strings.ToLower(r.fieldValue(tx)), strings.ToLower(r.Match))
	}
}

func (r Rule) matchesAmount(m core.Money) bool {
	sub := comparisonRe.FindStringSubmatch(strings.TrimSpace(r.Match))
	if sub == nil {
		return false
	}
	threshold, err := decimal.NewFromString(sub[2])
	if err != nil {
		return false
	}
	cmp := m.Decimal().Cmp(threshold)
	switch sub[1] {
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	}
	return false
}

// Base is an ordered rule set. Order equals priority: Classify returns the
// category of the first rule that matches.
type Base struct {
	rules []Rule
}

// New builds a Base, validating every rule. Order is preserved.
func New(rs []Rule) (*Base, error) {
	for i, r := range rs {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, r.Match, err)
		}
	}
	return &Base{rules: append([]Rule(nil), rs...)}, nil
}

// Rules returns a copy of the rule list in evaluation order.
func (b *Base) Rules() []Rule {
	return append([]Rule(nil), b.rules...)
}

// Len returns the number of rules.
func (b *Base) Len() int {
	return len(b.rules)
}

// Classify returns the category of the first matching rule, or false when no
// rule matches.
func (b *Base) Classify(tx core.Transaction) (string, bool) {
	if r, ok := b.FirstMatch(tx); ok {
		return r.Category, true
	}
	return "", false
}

// FirstMatch returns the highest-priority rule matching the transaction.
func (b *Base) FirstMatch(tx core.Transaction) (Rule, bool) {
	for _, r := range b.rules {
		if r.Matches(tx) {
			return r, true
		}
	}
	return Rule{}, false
}

// Append adds a rule at the lowest priority. A rule whose pattern duplicates
// an existing rule on the same field is rejected so the file does not
// accumulate dead entries.
func (b *Base) Append(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	for _, existing := range b.rules {
		if existing.Field == r.Field && strings.EqualFold(strings.TrimSpace(existing.Match), strings.TrimSpace(r.Match)) {
			return fmt.Errorf("%w: %q on %s -> %s", ErrDuplicatePattern, r.Match, r.Field, existing.Category)
		}
	}
	b.rules = append(b.rules, r)
	return nil
}

// Categories returns the distinct target categories, in first-seen order.
func (b *Base) Categories() []string {
	seen := make(map[string]bool, len(b.rules))
	var out []string
	for _, r := range b.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}

// DeriveSubstring builds the rule the labeling tool proposes for a pattern
// typed by the user: a case-insensitive substring match on the remittance.
func DeriveSubstring(pattern, category string) Rule {
	return Rule{
		Match:    strings.TrimSpace(pattern),
		Field:    FieldRemittance,
		Kind:     KindSubstring,
		Category: category,
		Origin:   OriginDerived,
	}
}

// DeriveUnique builds a one-off rule pinned to a single transaction id, used
// when a transaction should be labeled without generalizing a pattern.
func DeriveUnique(txID, category string) Rule {
	return Rule{
		Match:    txID,
		Field:    FieldID,
		Kind:     KindExact,
		Category: category,
		Origin:   OriginDerived,
	}
}
