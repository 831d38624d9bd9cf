// Package rulefile reads and writes rule sets as YAML documents.
package rulefile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/rules"
	"github.com/Veraticus/smartledger/internal/service"
)

// CurrentVersion is the document version written by Encode.
const CurrentVersion = 1

// ErrInvalidEntry is returned for an entry that cannot become a rule.
var ErrInvalidEntry = errors.New("invalid rule entry")

// File is a rule set document.
type File struct {
	Rules   []Entry `yaml:"rules"`
	Version int     `yaml:"version"`
}

// Entry is one rule in a document.
type Entry struct {
	AmountGroup *int   `yaml:"amount_group,omitempty"`
	DateGroup   *int   `yaml:"date_group,omitempty"`
	CategoryID  *int64 `yaml:"category_id,omitempty"`
	MethodID    *int64 `yaml:"method_id,omitempty"`
	CardID      *int64 `yaml:"card_id,omitempty"`
	Enabled     *bool  `yaml:"enabled,omitempty"` // nil means enabled
	Name        string `yaml:"name"`
	Channel     string `yaml:"channel,omitempty"`
	Keywords    string `yaml:"keywords,omitempty"`
	Pattern     string `yaml:"pattern,omitempty"`
	Type        string `yaml:"type"`
	Priority    int    `yaml:"priority,omitempty"`
}

// FromRules builds a document from stored rules.
func FromRules(ruleSet []model.Rule) File {
	f := File{Version: CurrentVersion, Rules: make([]Entry, 0, len(ruleSet))}
	for _, r := range ruleSet {
		enabled := r.Enabled
		f.Rules = append(f.Rules, Entry{
			Name:        r.Name,
			Channel:     r.Channel,
			Keywords:    r.Keywords,
			Pattern:     r.Pattern,
			AmountGroup: r.AmountGroup,
			DateGroup:   r.DateGroup,
			Type:        string(r.Type),
			CategoryID:  r.CategoryID,
			MethodID:    r.MethodID,
			CardID:      r.CardID,
			Priority:    r.Priority,
			Enabled:     &enabled,
		})
	}
	return f
}

// Encode writes ruleSet as YAML.
func Encode(w io.Writer, ruleSet []model.Rule) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromRules(ruleSet)); err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	return enc.Close()
}

// Decode reads a document. Unknown fields are rejected.
func Decode(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{Version: CurrentVersion}, nil
		}
		return File{}, fmt.Errorf("failed to parse rule file: %w", err)
	}
	if f.Version == 0 {
		f.Version = CurrentVersion
	}
	if f.Version > CurrentVersion {
		return File{}, fmt.Errorf("unsupported rule file version %d", f.Version)
	}
	return f, nil
}

// Rule converts the entry, validating its type and pattern.
func (e Entry) Rule(m *rules.Matcher) (model.Rule, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return model.Rule{}, fmt.Errorf("%w: missing name", ErrInvalidEntry)
	}
	typ, err := model.ParseTransactionType(e.Type)
	if err != nil {
		return model.Rule{}, fmt.Errorf("%w: %s: %w", ErrInvalidEntry, name, err)
	}
	if err := m.PatternError(e.Pattern); err != nil {
		return model.Rule{}, fmt.Errorf("%w: %s: bad pattern: %w", ErrInvalidEntry, name, err)
	}

	enabled := true
	if e.Enabled != nil {
		enabled = *e.Enabled
	}
	return model.Rule{
		Name:        name,
		Channel:     strings.TrimSpace(e.Channel),
		Keywords:    e.Keywords,
		Pattern:     e.Pattern,
		AmountGroup: e.AmountGroup,
		DateGroup:   e.DateGroup,
		Type:        typ,
		CategoryID:  e.CategoryID,
		MethodID:    e.MethodID,
		CardID:      e.CardID,
		Priority:    e.Priority,
		Enabled:     enabled,
	}, nil
}

// ImportOptions controls Import.
type ImportOptions struct {
	// Replace disables every stored rule the document does not name.
	Replace bool
	DryRun  bool
}

// ImportResult counts what Import changed.
type ImportResult struct {
	Created  int
	Updated  int
	Disabled int
}

// Import stores the document's rules in one unit of work. An entry whose name
// matches a stored rule updates that rule; others are created. Any invalid
// entry aborts the import before anything is written.
func Import(ctx context.Context, store service.AtomicStore, f File, opts ImportOptions) (ImportResult, error) {
	matcher := rules.NewMatcher()
	incoming := make([]model.Rule, 0, len(f.Rules))
	seen := make(map[string]bool, len(f.Rules))
	for i, e := range f.Rules {
		rule, err := e.Rule(matcher)
		if err != nil {
			return ImportResult{}, fmt.Errorf("rule %d: %w", i+1, err)
		}
		if seen[rule.Name] {
			return ImportResult{}, fmt.Errorf("%w: duplicate name %q", ErrInvalidEntry, rule.Name)
		}
		seen[rule.Name] = true
		incoming = append(incoming, rule)
	}

	var result ImportResult
	err := store.WithTx(ctx, func(tx service.Store) error {
		existing, err := tx.ListRules(ctx)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
		byName := make(map[string]model.Rule, len(existing))
		for _, r := range existing {
			if _, dup := byName[r.Name]; !dup {
				byName[r.Name] = r
			}
		}

		for i := range incoming {
			rule := incoming[i]
			if current, ok := byName[rule.Name]; ok {
				rule.ID = current.ID
				result.Updated++
			} else {
				result.Created++
			}
			if _, err := tx.UpsertRule(ctx, &rule); err != nil {
				return fmt.Errorf("failed to save rule %q: %w", rule.Name, err)
			}
		}

		if opts.Replace {
			for _, r := range existing {
				if seen[r.Name] || !r.Enabled {
					continue
				}
				r.Enabled = false
				if _, err := tx.UpsertRule(ctx, &r); err != nil {
					return fmt.Errorf("failed to disable rule %q: %w", r.Name, err)
				}
				result.Disabled++
			}
		}

		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return ImportResult{}, err
	}

	slog.Info("imported rules",
		"created", result.Created, "updated", result.Updated, "disabled", result.Disabled, "dry_run", opts.DryRun)
	return result, nil
}

var errDryRun = errors.New("dry run")
