package runner

import (
	"fmt"

	"github.com/calebh/marketscout/internal/domain"
	"github.com/calebh/marketscout/internal/filter"
)

// PreparedItem is an item spec with its keyword expressions compiled. Filter
// syntax errors surface here, at configuration load, never during a live
// match.
type PreparedItem struct {
	Spec         *domain.ItemSpec
	Keywords     *filter.Expr // nil when the item declares no keywords
	Antikeywords *filter.Expr
}

// PrepareItem compiles an item's filter expressions.
// Parameters:
//   - spec: item specification.
// Returns:
//   - *PreparedItem: spec with compiled expressions.
//   - error: non-nil on malformed expressions, naming the item.
func PrepareItem(spec *domain.ItemSpec) (*PreparedItem, error) {
	prepared := &PreparedItem{Spec: spec}
	if spec.Keywords != "" {
		expr, err := filter.Compile(spec.Keywords)
		if err != nil {
			return nil, fmt.Errorf("item %q keywords: %w", spec.Name, err)
		}
		prepared.Keywords = expr
	}
	if spec.Antikeywords != "" {
		expr, err := filter.Compile(spec.Antikeywords)
		if err != nil {
			return nil, fmt.Errorf("item %q antikeywords: %w", spec.Name, err)
		}
		prepared.Antikeywords = expr
	}
	return prepared, nil
}

// MatchesKeywords applies the acceptance rule: the listing passes when the
// keyword expression is absent or matches, and the antikeyword expression is
// absent or does not match.
func (p *PreparedItem) MatchesKeywords(text string) bool {
	if p.Keywords != nil && !p.Keywords.Match(text) {
		return false
	}
	if p.Antikeywords != nil && p.Antikeywords.Match(text) {
		return false
	}
	return true
}
