package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/service"
)

var transactionColumns = []string{
	"id", "amount", "type", "category_id", "method_id", "card_id", "occurred_at",
	"note", "source", "matched_rule_id", "from_message", "external_id",
}

// SaveTransaction inserts a transaction and returns its new ID.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.Transaction) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransaction(txn); err != nil {
		return 0, err
	}
	return saveTransaction(ctx, s.db, txn)
}

func saveTransaction(ctx context.Context, q querier, txn *model.Transaction) (int64, error) {
	source := txn.Source
	if source == "" {
		source = model.SourceManual
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO transactions (
			amount, type, category_id, method_id, card_id, occurred_at,
			note, source, matched_rule_id, from_message, external_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.Amount, string(txn.Type), txn.CategoryID, txn.MethodID, nullInt64(txn.CardID),
		txn.OccurredAt.UTC(), txn.Note, source, nullInt64(txn.MatchedRuleID), txn.FromMessage,
		nullString(txn.ExternalID),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("transaction %q: %w", txn.ExternalID, common.ErrDuplicateEntry)
		}
		return 0, fmt.Errorf("failed to save transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction ID: %w", err)
	}
	txn.ID = id
	txn.Source = source
	return id, nil
}

// GetTransaction retrieves a transaction by ID.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	query, args, err := sq.Select(transactionColumns...).
		From("transactions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	txn, err := scanTransaction(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %d: %w", id, common.ErrNotFound)
	}
	return txn, err
}

// ListTransactions returns transactions matching filter, newest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, *filter.End, *filter.Start)
	}

	builder := sq.Select(transactionColumns...).
		From("transactions").
		OrderBy("occurred_at DESC", "id DESC")
	builder = applyTransactionFilter(builder, filter)
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			// SQLite only accepts OFFSET after a LIMIT.
			builder = builder.Limit(uint64(1 << 62))
		}
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}

// CountTransactions returns the total number of stored transactions.
func (s *SQLiteStorage) CountTransactions(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func applyTransactionFilter(builder sq.SelectBuilder, filter service.TransactionFilter) sq.SelectBuilder {
	if filter.Start != nil {
		builder = builder.Where(sq.GtOrEq{"occurred_at": filter.Start.UTC()})
	}
	if filter.End != nil {
		builder = builder.Where(sq.Lt{"occurred_at": filter.End.UTC()})
	}
	if filter.Type != "" {
		builder = builder.Where(sq.Eq{"type": string(filter.Type)})
	}
	if filter.CategoryID != nil {
		builder = builder.Where(sq.Eq{"category_id": *filter.CategoryID})
	}
	if filter.MethodID != nil {
		builder = builder.Where(sq.Eq{"method_id": *filter.MethodID})
	}
	if filter.CardID != nil {
		builder = builder.Where(sq.Eq{"card_id": *filter.CardID})
	}
	if filter.FromMessage != nil {
		builder = builder.Where(sq.Eq{"from_message": *filter.FromMessage})
	}
	return builder
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn           model.Transaction
		typ           string
		cardID        sql.NullInt64
		matchedRuleID sql.NullInt64
		externalID    sql.NullString
	)
	err := row.Scan(
		&txn.ID, &txn.Amount, &typ, &txn.CategoryID, &txn.MethodID, &cardID, &txn.OccurredAt,
		&txn.Note, &txn.Source, &matchedRuleID, &txn.FromMessage, &externalID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.Type = model.TransactionType(typ)
	txn.CardID = int64From(cardID)
	txn.MatchedRuleID = int64From(matchedRuleID)
	txn.ExternalID = externalID.String
	txn.OccurredAt = txn.OccurredAt.In(time.Local)
	return &txn, nil
}
