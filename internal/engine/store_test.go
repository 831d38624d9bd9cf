package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/service"
)

var errStoreDown = errors.New("store unavailable")

// memStore is an in-memory AtomicStore with failure injection.
type memStore struct {
	listErr    error
	saveErr    error
	txSaveErr  error // SaveTransaction failure inside WithTx only
	rules      []model.Rule
	txns       []model.Transaction
	txMu       sync.Mutex
	mu         sync.Mutex
	nextRuleID int64
	nextTxnID  int64
}

func newMemStore(rules ...model.Rule) *memStore {
	m := &memStore{}
	for _, r := range rules {
		if r.ID > m.nextRuleID {
			m.nextRuleID = r.ID
		}
		m.rules = append(m.rules, r)
	}
	return m
}

func (m *memStore) ListRules(_ context.Context) ([]model.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]model.Rule(nil), m.rules...), nil
}

func (m *memStore) UpsertRule(_ context.Context, rule *model.Rule) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rule.ID != 0 {
		for i := range m.rules {
			if m.rules[i].ID == rule.ID {
				m.rules[i] = *rule
				return rule.ID, nil
			}
		}
	}
	m.nextRuleID++
	rule.ID = m.nextRuleID
	m.rules = append(m.rules, *rule)
	return rule.ID, nil
}

func (m *memStore) SaveTransaction(_ context.Context, txn *model.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	m.nextTxnID++
	txn.ID = m.nextTxnID
	m.txns = append(m.txns, *txn)
	return txn.ID, nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx service.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	rules := append([]model.Rule(nil), m.rules...)
	txns := append([]model.Transaction(nil), m.txns...)
	nextRule, nextTxn := m.nextRuleID, m.nextTxnID
	m.mu.Unlock()

	if err := fn(&memTx{m: m}); err != nil {
		m.mu.Lock()
		m.rules, m.txns = rules, txns
		m.nextRuleID, m.nextTxnID = nextRule, nextTxn
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) snapshot() ([]model.Rule, []model.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Rule(nil), m.rules...), append([]model.Transaction(nil), m.txns...)
}

type memTx struct {
	m *memStore
}

func (t *memTx) ListRules(ctx context.Context) ([]model.Rule, error) {
	return t.m.ListRules(ctx)
}

func (t *memTx) UpsertRule(ctx context.Context, rule *model.Rule) (int64, error) {
	return t.m.UpsertRule(ctx, rule)
}

func (t *memTx) SaveTransaction(ctx context.Context, txn *model.Transaction) (int64, error) {
	if t.m.txSaveErr != nil {
		return 0, t.m.txSaveErr
	}
	return t.m.SaveTransaction(ctx, txn)
}
