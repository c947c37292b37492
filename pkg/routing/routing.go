package routing

import (
	"fmt"
	"strings"

	"github.com/pedro-hbl/atm-lambda-otel/pkg/events"
)

// Category identifies one of the consumer targets
type Category string

const (
	// ApprovedTransactions receives every approved transaction
	ApprovedTransactions Category = "approved"
	// NYTransactions receives transactions made at NY locations
	NYTransactions Category = "ny-location"
	// UnapprovedTransactions receives every transaction that was not approved
	UnapprovedTransactions Category = "unapproved"
)

// NYLocationPrefix is the location prefix matched by the NY rule
const NYLocationPrefix = "NY-"

// Rule mirrors an event bus rule: the event pattern it is deployed with and
// the predicate the bus applies to the detail
type Rule struct {
	Category Category
	Pattern  string
	Matches  func(events.Transaction) bool
}

// Rules are the three rules deployed on the bus, in target order
var Rules = []Rule{
	{
		Category: ApprovedTransactions,
		Pattern:  `{"source":["custom.myATMapp"],"detail-type":["transaction"],"detail":{"result":["approved"]}}`,
		Matches: func(tx events.Transaction) bool {
			return tx.Result == events.Approved
		},
	},
	{
		Category: NYTransactions,
		Pattern:  `{"source":["custom.myATMapp"],"detail-type":["transaction"],"detail":{"location":[{"prefix":"NY-"}]}}`,
		Matches: func(tx events.Transaction) bool {
			return strings.HasPrefix(tx.Location, NYLocationPrefix)
		},
	},
	{
		Category: UnapprovedTransactions,
		Pattern:  `{"source":["custom.myATMapp"],"detail-type":["transaction"],"detail":{"result":[{"anything-but":"approved"}]}}`,
		Matches: func(tx events.Transaction) bool {
			return tx.Result != events.Approved
		},
	},
}

// Route returns every category whose rule matches the transaction
func Route(tx events.Transaction) []Category {
	var matched []Category
	for _, rule := range Rules {
		if rule.Matches(tx) {
			matched = append(matched, rule.Category)
		}
	}
	return matched
}

// Match reports whether the rule for category matches the transaction
func Match(category Category, tx events.Transaction) bool {
	for _, rule := range Rules {
		if rule.Category == category {
			return rule.Matches(tx)
		}
	}
	return false
}

// ParseCategory accepts a category name or one of the case aliases
func ParseCategory(name string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "case1", "approved":
		return ApprovedTransactions, nil
	case "case2", "ny", "ny-location":
		return NYTransactions, nil
	case "case3", "unapproved":
		return UnapprovedTransactions, nil
	default:
		return "", fmt.Errorf("unknown handler %q: valid options are case1/approved, case2/ny, case3/unapproved", name)
	}
}
