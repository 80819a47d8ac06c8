// Package classify maps institution-specific raw transaction-type codes to a
// closed set of normalized actions and determines the sign of the cash
// movement per account kind. Mis-signed cash is the worst possible failure
// mode, so unknown codes are never coerced: they classify as ActionOther and
// are flagged for review.
package classify

import (
	"fmt"
	"strings"
)

// Action is the normalized transaction action. The set is closed; statement
// type codes outside the configured mapping become ActionOther.
type Action string

const (
	ActionDeposit       Action = "deposit"
	ActionWithdrawal    Action = "withdrawal"
	ActionCheck         Action = "check"
	ActionPayment       Action = "payment"
	ActionFee           Action = "fee"
	ActionTransfer      Action = "transfer"
	ActionBuy           Action = "buy"
	ActionSell          Action = "sell"
	ActionDividend      Action = "dividend"
	ActionInterest      Action = "interest"
	ActionCapGainsLong  Action = "capgains-long"
	ActionCapGainsShort Action = "capgains-short"
	ActionReinvest      Action = "reinvest"
	ActionOther         Action = "other"
)

var validActions = map[Action]struct{}{
	ActionDeposit: {}, ActionWithdrawal: {}, ActionCheck: {}, ActionPayment: {},
	ActionFee: {}, ActionTransfer: {}, ActionBuy: {}, ActionSell: {},
	ActionDividend: {}, ActionInterest: {}, ActionCapGainsLong: {},
	ActionCapGainsShort: {}, ActionReinvest: {}, ActionOther: {},
}

// ValidAction reports whether a is in the closed action set.
func ValidAction(a Action) bool {
	_, ok := validActions[a]
	return ok
}

// IsDistribution reports whether the action is a cash distribution that
// increases cash without decreasing any commodity.
func (a Action) IsDistribution() bool {
	switch a {
	case ActionDividend, ActionInterest, ActionCapGainsLong, ActionCapGainsShort:
		return true
	}
	return false
}

// AccountKind distinguishes the sign conventions of the account a statement
// belongs to. Banking covers checking and savings assets; Credit covers
// card-style liabilities; Investment covers brokerage accounts holding
// commodities.
type AccountKind string

const (
	KindBanking    AccountKind = "banking"
	KindCredit     AccountKind = "credit"
	KindInvestment AccountKind = "investment"
)

// ValidAccountKind reports whether k is a known account kind.
func ValidAccountKind(k AccountKind) bool {
	switch k {
	case KindBanking, KindCredit, KindInvestment:
		return true
	}
	return false
}

// SignPreserve means the statement's own sign is kept, used where either
// direction is legitimate (transfers, unclassified types).
const SignPreserve = 0

// signTable determines the sign of the cash leg from the user's perspective,
// keyed by account kind then action. For banking accounts money out is
// negative. For credit accounts the polarity of purchase-style actions is
// inverted: a charge increases the liability (+), a payment reduces it (-).
// For investment accounts a buy consumes cash, a sell and any distribution
// produce cash; reinvestments have no external cash movement.
var signTable = map[AccountKind]map[Action]int{
	KindBanking: {
		ActionDeposit:    +1,
		ActionDividend:   +1,
		ActionInterest:   +1,
		ActionWithdrawal: -1,
		ActionCheck:      -1,
		ActionPayment:    -1,
		ActionFee:        -1,
		ActionTransfer:   SignPreserve,
		ActionOther:      SignPreserve,
	},
	KindCredit: {
		ActionWithdrawal: +1,
		ActionCheck:      +1,
		ActionFee:        +1,
		ActionInterest:   +1,
		ActionPayment:    -1,
		ActionDeposit:    -1,
		ActionTransfer:   SignPreserve,
		ActionOther:      SignPreserve,
	},
	KindInvestment: {
		ActionBuy:           -1,
		ActionFee:           -1,
		ActionWithdrawal:    -1,
		ActionSell:          +1,
		ActionDividend:      +1,
		ActionInterest:      +1,
		ActionCapGainsLong:  +1,
		ActionCapGainsShort: +1,
		ActionDeposit:       +1,
		ActionReinvest:      SignPreserve,
		ActionTransfer:      SignPreserve,
		ActionOther:         SignPreserve,
	},
}

// Result is the outcome of classifying one raw type code.
type Result struct {
	Action Action
	// Sign is -1, +1 or SignPreserve for the cash leg.
	Sign int
	// Known is false when the raw code was not in the mapping and the
	// transaction should carry a review flag.
	Known bool
}

// Classifier maps raw statement type codes to actions using a declarative
// per-institution table. The zero value is unusable; build with New.
type Classifier struct {
	typeMap map[string]Action
}

// New builds a classifier from a raw-code mapping. Codes are matched
// case-insensitively. Actions outside the closed set are rejected.
func New(typeMap map[string]Action) (*Classifier, error) {
	m := make(map[string]Action, len(typeMap))
	for code, action := range typeMap {
		if !ValidAction(action) {
			return nil, fmt.Errorf("type map entry %q: unknown action %q", code, action)
		}
		m[normalizeCode(code)] = action
	}
	return &Classifier{typeMap: m}, nil
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Classify maps a raw type code to an action and cash sign for the given
// account kind. Unknown codes yield ActionOther with Known=false and the
// statement sign preserved; they are emitted flagged, never dropped.
func (c *Classifier) Classify(rawCode string, kind AccountKind) Result {
	action, ok := c.typeMap[normalizeCode(rawCode)]
	if !ok {
		return Result{Action: ActionOther, Sign: SignPreserve, Known: false}
	}
	return Result{Action: action, Sign: Sign(action, kind), Known: true}
}

// Sign returns the cash-leg sign for an action under an account kind.
// Combinations outside the table preserve the statement sign.
func Sign(action Action, kind AccountKind) int {
	if signs, ok := signTable[kind]; ok {
		if s, ok := signs[action]; ok {
			return s
		}
	}
	return SignPreserve
}
