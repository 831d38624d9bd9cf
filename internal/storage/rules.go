package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/model"
)

const ruleColumns = `id, name, channel, method_id, card_id, keywords, pattern,
	amount_group, date_group, type, category_id, enabled, priority,
	created_at, updated_at`

// ListRules returns every rule, highest priority first. Rules of equal
// priority keep their creation order.
func (s *SQLiteStorage) ListRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listRules(ctx, s.db)
}

// GetRule retrieves a rule by ID.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// UpsertRule inserts rule when its ID is zero and replaces the stored rule
// with the same ID otherwise.
func (s *SQLiteStorage) UpsertRule(ctx context.Context, rule *model.Rule) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateRule(rule); err != nil {
		return 0, err
	}
	return upsertRule(ctx, s.db, rule)
}

// SetRuleEnabled toggles a rule without touching its other fields.
func (s *SQLiteStorage) SetRuleEnabled(ctx context.Context, id int64, enabled bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE rules SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}
	return nil
}

func listRules(ctx context.Context, q querier) ([]model.Rule, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY priority DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

func upsertRule(ctx context.Context, q querier, rule *model.Rule) (int64, error) {
	now := time.Now().UTC()

	if rule.ID == 0 {
		result, err := q.ExecContext(ctx, `
			INSERT INTO rules (
				name, channel, method_id, card_id, keywords, pattern,
				amount_group, date_group, type, category_id, enabled, priority,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rule.Name, rule.Channel, nullInt64(rule.MethodID), nullInt64(rule.CardID),
			rule.Keywords, nullString(rule.Pattern), nullInt(rule.AmountGroup), nullInt(rule.DateGroup),
			string(rule.Type), nullInt64(rule.CategoryID), rule.Enabled, rule.Priority,
			now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to create rule: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get rule ID: %w", err)
		}
		rule.ID = id
		rule.CreatedAt = now
		rule.UpdatedAt = now
		return id, nil
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO rules (
			id, name, channel, method_id, card_id, keywords, pattern,
			amount_group, date_group, type, category_id, enabled, priority,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			channel = excluded.channel,
			method_id = excluded.method_id,
			card_id = excluded.card_id,
			keywords = excluded.keywords,
			pattern = excluded.pattern,
			amount_group = excluded.amount_group,
			date_group = excluded.date_group,
			type = excluded.type,
			category_id = excluded.category_id,
			enabled = excluded.enabled,
			priority = excluded.priority,
			updated_at = excluded.updated_at`,
		rule.ID, rule.Name, rule.Channel, nullInt64(rule.MethodID), nullInt64(rule.CardID),
		rule.Keywords, nullString(rule.Pattern), nullInt(rule.AmountGroup), nullInt(rule.DateGroup),
		string(rule.Type), nullInt64(rule.CategoryID), rule.Enabled, rule.Priority,
		now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update rule: %w", err)
	}
	rule.UpdatedAt = now
	return rule.ID, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*model.Rule, error) {
	var (
		rule                   model.Rule
		methodID, cardID       sql.NullInt64
		categoryID             sql.NullInt64
		amountGroup, dateGroup sql.NullInt64
		pattern                sql.NullString
		typ                    string
	)
	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Channel, &methodID, &cardID, &rule.Keywords, &pattern,
		&amountGroup, &dateGroup, &typ, &categoryID, &rule.Enabled, &rule.Priority,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	rule.MethodID = int64From(methodID)
	rule.CardID = int64From(cardID)
	rule.CategoryID = int64From(categoryID)
	rule.AmountGroup = intFrom(amountGroup)
	rule.DateGroup = intFrom(dateGroup)
	rule.Pattern = pattern.String
	rule.Type = model.TransactionType(typ)
	return &rule, nil
}
