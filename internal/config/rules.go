package config

// rules.go loads the optional YAML rules document that overrides the
// built-in validation rules, category table and anomaly threshold.

import (
	"fmt"
	"os"

	"bankpipe/internal/anomaly"
	"bankpipe/internal/categorize"
	"bankpipe/internal/validate"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultMaxTransactionAmount caps single-transaction amounts when no
// rules file overrides it.
const DefaultMaxTransactionAmount = "10000000"

// rulesDocument is the YAML shape of a rules file. Every section is
// optional; omitted sections keep their defaults.
type rulesDocument struct {
	Validation struct {
		MaxTransactionAmount string   `yaml:"max_transaction_amount"`
		AllowedCurrencies    []string `yaml:"allowed_currencies"`
		IBANPattern          string   `yaml:"iban_pattern"`
		BICPattern           string   `yaml:"bic_pattern"`
	} `yaml:"validation"`

	Categories map[string][]string `yaml:"categories"`

	Anomaly struct {
		Threshold float64 `yaml:"threshold"`
	} `yaml:"anomaly"`
}

// Rules is the fully resolved rule configuration of a run.
type Rules struct {
	RuleSet          *validate.RuleSet
	Classifier       *categorize.Classifier
	AnomalyThreshold float64
}

// LoadRules resolves the rule configuration, overlaying the YAML file
// at path (when non-empty) onto the defaults.
func LoadRules(path string) (*Rules, error) {
	var doc rulesDocument
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rules file: %w", err)
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse rules file %s: %w", path, err)
		}
	}

	maxAmount := doc.Validation.MaxTransactionAmount
	if maxAmount == "" {
		maxAmount = DefaultMaxTransactionAmount
	}
	limit, err := decimal.NewFromString(maxAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid max_transaction_amount %q: %w", maxAmount, err)
	}

	ibanPattern := doc.Validation.IBANPattern
	if ibanPattern == "" {
		ibanPattern = validate.DefaultIBANPattern
	}
	bicPattern := doc.Validation.BICPattern
	if bicPattern == "" {
		bicPattern = validate.DefaultBICPattern
	}

	ruleSet, err := validate.NewRuleSet(limit, doc.Validation.AllowedCurrencies, ibanPattern, bicPattern)
	if err != nil {
		return nil, fmt.Errorf("build rule set: %w", err)
	}

	categories := doc.Categories
	if len(categories) == 0 {
		categories = categorize.DefaultCategories
	}
	classifier := categorize.New(categories)

	threshold := doc.Anomaly.Threshold
	if threshold <= 0 {
		threshold = anomaly.DefaultThreshold
	}

	return &Rules{
		RuleSet:          ruleSet,
		Classifier:       classifier,
		AnomalyThreshold: threshold,
	}, nil
}
