package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/model"
)

const methodColumns = `id, name, type, is_credit, bill_day, due_day, total_limit,
	remaining_limit, is_custom, repay_lead_days`

const cardColumns = `id, method_id, label, bill_day, due_day, total_limit,
	remaining_limit, is_custom, repay_lead_days`

// GetMethods returns every payment method in creation order.
func (s *SQLiteStorage) GetMethods(ctx context.Context) ([]model.Method, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+methodColumns+` FROM methods ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query methods: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var methods []model.Method
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating methods: %w", err)
	}
	return methods, nil
}

// GetMethodByID returns a payment method by ID.
func (s *SQLiteStorage) GetMethodByID(ctx context.Context, id int64) (*model.Method, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	m, err := scanMethod(s.db.QueryRowContext(ctx, `SELECT `+methodColumns+` FROM methods WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("method %d: %w", id, common.ErrNotFound)
	}
	return m, err
}

// SaveMethod creates the method when its ID is zero and updates it otherwise.
func (s *SQLiteStorage) SaveMethod(ctx context.Context, method *model.Method) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateMethod(method); err != nil {
		return 0, err
	}

	typ := method.Type
	if typ == "" {
		typ = model.TransactionExpense
	}
	args := []any{
		method.Name, string(typ), method.IsCredit, nullInt(method.BillDay), nullInt(method.DueDay),
		nullFloat(method.TotalLimit), nullFloat(method.RemainingLimit), method.IsCustom,
		nullInt(method.RepayLeadDays),
	}

	if method.ID != 0 {
		result, err := s.db.ExecContext(ctx, `
			UPDATE methods SET name = ?, type = ?, is_credit = ?, bill_day = ?, due_day = ?,
				total_limit = ?, remaining_limit = ?, is_custom = ?, repay_lead_days = ?
			WHERE id = ?`, append(args, method.ID)...)
		if err != nil {
			return 0, uniqueOr(err, fmt.Sprintf("method %q", method.Name), "failed to save method")
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return 0, fmt.Errorf("method %d: %w", method.ID, common.ErrNotFound)
		}
		method.Type = typ
		return method.ID, nil
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO methods (name, type, is_credit, bill_day, due_day, total_limit,
			remaining_limit, is_custom, repay_lead_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return 0, uniqueOr(err, fmt.Sprintf("method %q", method.Name), "failed to save method")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get method ID: %w", err)
	}
	method.ID = id
	method.Type = typ
	return id, nil
}

// GetCards returns the cards issued under a method, or every card when
// methodID is zero.
func (s *SQLiteStorage) GetCards(ctx context.Context, methodID int64) ([]model.Card, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + cardColumns + ` FROM cards`
	var args []any
	if methodID != 0 {
		query += ` WHERE method_id = ?`
		args = append(args, methodID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cards []model.Card
	for rows.Next() {
		var (
			card                       model.Card
			billDay, dueDay, leadDays  sql.NullInt64
			totalLimit, remainingLimit sql.NullFloat64
		)
		if err := rows.Scan(&card.ID, &card.MethodID, &card.Label, &billDay, &dueDay,
			&totalLimit, &remainingLimit, &card.IsCustom, &leadDays); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		card.BillDay = intFrom(billDay)
		card.DueDay = intFrom(dueDay)
		card.RepayLeadDays = intFrom(leadDays)
		card.TotalLimit = floatFrom(totalLimit)
		card.RemainingLimit = floatFrom(remainingLimit)
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}
	return cards, nil
}

// SaveCard creates the card when its ID is zero and updates it otherwise.
func (s *SQLiteStorage) SaveCard(ctx context.Context, card *model.Card) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateCard(card); err != nil {
		return 0, err
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM methods WHERE id = ?`, card.MethodID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to verify method: %w", err)
	}
	if exists == 0 {
		return 0, fmt.Errorf("method %d: %w", card.MethodID, common.ErrNotFound)
	}

	args := []any{
		card.MethodID, card.Label, nullInt(card.BillDay), nullInt(card.DueDay),
		nullFloat(card.TotalLimit), nullFloat(card.RemainingLimit), card.IsCustom,
		nullInt(card.RepayLeadDays),
	}

	if card.ID != 0 {
		result, err := s.db.ExecContext(ctx, `
			UPDATE cards SET method_id = ?, label = ?, bill_day = ?, due_day = ?,
				total_limit = ?, remaining_limit = ?, is_custom = ?, repay_lead_days = ?
			WHERE id = ?`, append(args, card.ID)...)
		if err != nil {
			return 0, fmt.Errorf("failed to save card: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return 0, fmt.Errorf("card %d: %w", card.ID, common.ErrNotFound)
		}
		return card.ID, nil
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (method_id, label, bill_day, due_day, total_limit,
			remaining_limit, is_custom, repay_lead_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to save card: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get card ID: %w", err)
	}
	card.ID = id
	return id, nil
}

func scanMethod(row rowScanner) (*model.Method, error) {
	var (
		m                          model.Method
		typ                        string
		billDay, dueDay, leadDays  sql.NullInt64
		totalLimit, remainingLimit sql.NullFloat64
	)
	err := row.Scan(&m.ID, &m.Name, &typ, &m.IsCredit, &billDay, &dueDay,
		&totalLimit, &remainingLimit, &m.IsCustom, &leadDays)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan method: %w", err)
	}
	m.Type = model.TransactionType(typ)
	m.BillDay = intFrom(billDay)
	m.DueDay = intFrom(dueDay)
	m.RepayLeadDays = intFrom(leadDays)
	m.TotalLimit = floatFrom(totalLimit)
	m.RemainingLimit = floatFrom(remainingLimit)
	return &m, nil
}

func uniqueOr(err error, subject, msg string) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%s: %w", subject, common.ErrDuplicateEntry)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
