// Package schema describes the single queryable relation and the business
// rules the translator hands to the language model.
package schema

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed transactions.yaml
var transactionsYAML []byte

type Column struct {
	Name        string   `yaml:"name" json:"name"`
	Type        string   `yaml:"type" json:"type"`
	Description string   `yaml:"description" json:"description"`
	Values      []string `yaml:"values,omitempty" json:"values,omitempty"`
}

type Rule struct {
	Name       string `yaml:"name" json:"name"`
	Definition string `yaml:"definition" json:"definition"`
}

// Descriptor is immutable once built. Callers receive copies of its slices.
type Descriptor struct {
	table   string
	columns []Column
	rules   []Rule
}

type document struct {
	Table   string   `yaml:"table"`
	Columns []Column `yaml:"columns"`
	Rules   []Rule   `yaml:"rules"`
}

// Default returns the descriptor of the transactions dataset.
func Default() (*Descriptor, error) {
	return Parse(transactionsYAML)
}

func Parse(raw []byte) (*Descriptor, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode schema document: %w", err)
	}
	table := strings.TrimSpace(doc.Table)
	if table == "" {
		return nil, fmt.Errorf("schema table name is required")
	}
	if len(doc.Columns) == 0 {
		return nil, fmt.Errorf("schema %q has no columns", table)
	}

	seen := make(map[string]struct{}, len(doc.Columns))
	columns := make([]Column, 0, len(doc.Columns))
	for i, column := range doc.Columns {
		name := strings.TrimSpace(column.Name)
		if name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = struct{}{}
		column.Name = name
		column.Type = strings.ToUpper(strings.TrimSpace(column.Type))
		if column.Type == "" {
			return nil, fmt.Errorf("column %q has no type", name)
		}
		column.Description = strings.TrimSpace(column.Description)
		columns = append(columns, column)
	}

	rules := make([]Rule, 0, len(doc.Rules))
	for _, rule := range doc.Rules {
		rule.Name = strings.TrimSpace(rule.Name)
		rule.Definition = strings.TrimSpace(rule.Definition)
		if rule.Name == "" || rule.Definition == "" {
			return nil, fmt.Errorf("business rule requires name and definition")
		}
		rules = append(rules, rule)
	}

	return &Descriptor{table: table, columns: columns, rules: rules}, nil
}

func (d *Descriptor) Table() string {
	return d.table
}

func (d *Descriptor) Columns() []Column {
	out := make([]Column, len(d.columns))
	copy(out, d.columns)
	return out
}

func (d *Descriptor) Rules() []Rule {
	out := make([]Rule, len(d.rules))
	copy(out, d.rules)
	return out
}

func (d *Descriptor) ColumnNames() []string {
	names := make([]string, 0, len(d.columns))
	for _, column := range d.columns {
		names = append(names, column.Name)
	}
	return names
}

// Drift lists the differences between the descriptor and the columns the
// stored dataset actually exposes.
type Drift struct {
	Missing []string // described but absent from the dataset
	Unknown []string // present in the dataset but not described
}

func (d Drift) Empty() bool {
	return len(d.Missing) == 0 && len(d.Unknown) == 0
}

func (d Drift) Error() string {
	parts := make([]string, 0, 2)
	if len(d.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(d.Missing, ", "))
	}
	if len(d.Unknown) > 0 {
		parts = append(parts, "undescribed columns: "+strings.Join(d.Unknown, ", "))
	}
	return "schema drift: " + strings.Join(parts, "; ")
}

// Check compares the descriptor with the dataset's column set and returns an
// error of type Drift when they disagree.
func (d *Descriptor) Check(datasetColumns []string) error {
	present := make(map[string]struct{}, len(datasetColumns))
	for _, name := range datasetColumns {
		present[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	described := make(map[string]struct{}, len(d.columns))

	var drift Drift
	for _, column := range d.columns {
		described[strings.ToLower(column.Name)] = struct{}{}
		if _, ok := present[strings.ToLower(column.Name)]; !ok {
			drift.Missing = append(drift.Missing, column.Name)
		}
	}
	for name := range present {
		if _, ok := described[name]; !ok {
			drift.Unknown = append(drift.Unknown, name)
		}
	}
	sort.Strings(drift.Unknown)
	if drift.Empty() {
		return nil
	}
	return drift
}

// Document renders the descriptor column by column for prompt construction.
func (d *Descriptor) Document() string {
	var b strings.Builder
	b.WriteString("Table Name: ")
	b.WriteString(d.table)
	b.WriteString("\nColumns:\n")
	for _, column := range d.columns {
		fmt.Fprintf(&b, "-%s (%s)", column.Name, column.Type)
		if column.Description != "" {
			b.WriteString(": ")
			b.WriteString(column.Description)
		}
		if len(column.Values) > 0 {
			quoted := make([]string, 0, len(column.Values))
			for _, value := range column.Values {
				quoted = append(quoted, "'"+value+"'")
			}
			b.WriteString(" Values: ")
			b.WriteString(strings.Join(quoted, ", "))
			b.WriteString(".")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RulesDocument renders the business rules as a numbered list.
func (d *Descriptor) RulesDocument() string {
	var b strings.Builder
	for i, rule := range d.rules {
		fmt.Fprintf(&b, "%d. %s = %s\n", i+1, rule.Name, rule.Definition)
	}
	return b.String()
}
