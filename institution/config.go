// Package institution holds the declarative per-institution configuration.
// Institution differences (sign tables, account roots, commodity-leaf
// templates, security tables) are configuration records, not subclasses;
// behavioral special cases plug in through the explicit hook interfaces in
// hooks.go.
package institution

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ledgertools/beanport/accounts"
	"github.com/ledgertools/beanport/classify"
	"github.com/ledgertools/beanport/securities"
)

// CommodityDecl declares a commodity directive to emit for the institution.
type CommodityDecl struct {
	Symbol string
	Date   time.Time
}

// AccountDecl declares an open or close directive for an account.
type AccountDecl struct {
	Account  string
	Date     time.Time
	Currency string
}

// Config is everything the pipeline needs to import one institution's
// statements. Build by hand or load from YAML with Load; either way Validate
// must pass before the config is used.
type Config struct {
	// Name identifies the institution in reports.
	Name string
	// Kind selects the sign convention: banking, credit or investment.
	Kind classify.AccountKind
	// Currency is the operating currency for cash legs.
	Currency string

	// Roots maps transaction classes to account path prefixes.
	Roots accounts.Roots

	// CommodityLeaf appends a per-security leaf segment to investment
	// accounts, built from LeafTemplate ({ticker}, {currency}).
	CommodityLeaf bool
	LeafTemplate  string

	// TypeMap maps the institution's raw type codes to normalized actions.
	TypeMap map[string]classify.Action

	// Securities is the user's identifier table for this institution.
	Securities []securities.Security

	// FilenamePattern identifies this institution's files. Used only by
	// the calling layer to pick a config; the core never touches it.
	FilenamePattern string

	// Commodities, Opens and Closes become custom directive entries
	// independent of any single transaction.
	Commodities []CommodityDecl
	Opens       []AccountDecl
	Closes      []AccountDecl

	// Hooks are the institution's behavioral override points. Never
	// populated from YAML.
	Hooks Hooks
}

// Validate checks the config is complete enough to drive the pipeline.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("institution name is required")
	}
	if !classify.ValidAccountKind(c.Kind) {
		return fmt.Errorf("institution %s: unknown account kind %q", c.Name, c.Kind)
	}
	if c.Currency == "" {
		return fmt.Errorf("institution %s: currency is required", c.Name)
	}
	if err := c.Roots.Validate(); err != nil {
		return fmt.Errorf("institution %s: %w", c.Name, err)
	}
	for code, action := range c.TypeMap {
		if !classify.ValidAction(action) {
			return fmt.Errorf("institution %s: type map %q: unknown action %q", c.Name, code, action)
		}
	}
	return nil
}

// yamlConfig mirrors Config for YAML decoding; account paths arrive as
// colon-joined strings and dates as YYYY-MM-DD.
type yamlConfig struct {
	Name            string            `yaml:"name"`
	Kind            string            `yaml:"kind"`
	Currency        string            `yaml:"currency"`
	FilenamePattern string            `yaml:"filename_pattern"`
	CommodityLeaf   bool              `yaml:"commodity_leaf"`
	LeafTemplate    string            `yaml:"leaf_template"`
	TypeMap         map[string]string `yaml:"type_map"`
	Accounts        struct {
		Cash           string `yaml:"cash"`
		CashEquivalent string `yaml:"cash_equivalent"`
		Investment     string `yaml:"investment"`
		Dividends      string `yaml:"dividends"`
		Interest       string `yaml:"interest"`
		CapGainsLong   string `yaml:"capgains_long"`
		CapGainsShort  string `yaml:"capgains_short"`
		Fees           string `yaml:"fees"`
		Rounding       string `yaml:"rounding"`
		Unclassified   string `yaml:"unclassified"`
	} `yaml:"accounts"`
	Securities []struct {
		Symbol   string `yaml:"symbol"`
		CUSIP    string `yaml:"cusip"`
		ISIN     string `yaml:"isin"`
		Name     string `yaml:"name"`
		Currency string `yaml:"currency"`
	} `yaml:"securities"`
	Commodities []struct {
		Symbol string `yaml:"symbol"`
		Date   string `yaml:"date"`
	} `yaml:"commodities"`
	Opens []struct {
		Account  string `yaml:"account"`
		Date     string `yaml:"date"`
		Currency string `yaml:"currency"`
	} `yaml:"opens"`
	Closes []struct {
		Account string `yaml:"account"`
		Date    string `yaml:"date"`
	} `yaml:"closes"`
}

// Parse decodes a YAML institution config and validates it.
func Parse(data []byte) (*Config, error) {
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, fmt.Errorf("failed to parse institution config: %w", err)
	}

	cfg := &Config{
		Name:            yc.Name,
		Kind:            classify.AccountKind(yc.Kind),
		Currency:        yc.Currency,
		FilenamePattern: yc.FilenamePattern,
		CommodityLeaf:   yc.CommodityLeaf,
		LeafTemplate:    yc.LeafTemplate,
		Roots: accounts.Roots{
			Cash:           accounts.ParsePath(yc.Accounts.Cash),
			CashEquivalent: accounts.ParsePath(yc.Accounts.CashEquivalent),
			Investment:     accounts.ParsePath(yc.Accounts.Investment),
			Dividends:      accounts.ParsePath(yc.Accounts.Dividends),
			Interest:       accounts.ParsePath(yc.Accounts.Interest),
			CapGainsLong:   accounts.ParsePath(yc.Accounts.CapGainsLong),
			CapGainsShort:  accounts.ParsePath(yc.Accounts.CapGainsShort),
			Fees:           accounts.ParsePath(yc.Accounts.Fees),
			Rounding:       accounts.ParsePath(yc.Accounts.Rounding),
			Unclassified:   accounts.ParsePath(yc.Accounts.Unclassified),
		},
	}

	if len(yc.TypeMap) > 0 {
		cfg.TypeMap = make(map[string]classify.Action, len(yc.TypeMap))
		for code, action := range yc.TypeMap {
			cfg.TypeMap[code] = classify.Action(action)
		}
	}

	for _, s := range yc.Securities {
		cfg.Securities = append(cfg.Securities, securities.Security{
			Symbol:   s.Symbol,
			CUSIP:    s.CUSIP,
			ISIN:     s.ISIN,
			Name:     s.Name,
			Currency: s.Currency,
		})
	}

	for _, c := range yc.Commodities {
		date, err := parseDate(c.Date)
		if err != nil {
			return nil, fmt.Errorf("commodity %s: %w", c.Symbol, err)
		}
		cfg.Commodities = append(cfg.Commodities, CommodityDecl{Symbol: c.Symbol, Date: date})
	}
	for _, o := range yc.Opens {
		date, err := parseDate(o.Date)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", o.Account, err)
		}
		cfg.Opens = append(cfg.Opens, AccountDecl{Account: o.Account, Date: date, Currency: o.Currency})
	}
	for _, c := range yc.Closes {
		date, err := parseDate(c.Date)
		if err != nil {
			return nil, fmt.Errorf("close %s: %w", c.Account, err)
		}
		cfg.Closes = append(cfg.Closes, AccountDecl{Account: c.Account, Date: date})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses a YAML institution config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read institution config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
