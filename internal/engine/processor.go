package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Veraticus/smartledger/internal/common"
	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/rules"
	"github.com/Veraticus/smartledger/internal/service"
)

// Message is one inbound text with whatever payment context the source knows.
type Message struct {
	ReceivedAt time.Time // zero means processing time
	MethodID   *int64
	CardID     *int64
	Text       string
	Channel    string
}

// OutcomeKind says what happened to a processed message.
type OutcomeKind int

// Outcome kinds.
const (
	OutcomeCommitted OutcomeKind = iota + 1
	OutcomeQueued
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCommitted:
		return "committed"
	case OutcomeQueued:
		return "queued"
	default:
		return "unknown"
	}
}

// Outcome reports the result of ProcessIncoming.
type Outcome struct {
	Transaction *model.Transaction    // set when committed
	Pending     *model.PendingMessage // set when queued
	Match       model.RuleMatchResult
	Kind        OutcomeKind
}

// Resolution is the user's answer for a pending message.
type Resolution struct {
	CardID     *int64
	PendingID  string
	Type       model.TransactionType
	Rule       model.Rule
	Amount     float64
	CategoryID int64
	MethodID   int64
}

// ResolveResult reports what SaveRuleAndApply did.
type ResolveResult struct {
	RuleID        int64
	TransactionID int64
	// Applied is false when the pending item was already resolved,
	// dismissed, or is being resolved by another caller.
	Applied bool
}

// Processor runs inbound messages through the rule engine and owns the
// in-memory pending queue.
type Processor struct {
	store   service.AtomicStore
	matcher *rules.Matcher
	cfg     Config

	// snapshot is replaced, never mutated, so readers need no lock.
	snapshot atomic.Pointer[[]model.PendingMessage]

	mu          sync.Mutex
	inFlight    map[string]struct{}
	subscribers map[int]chan []model.PendingMessage
	nextSubID   int
}

// NewProcessor creates a processor over store.
func NewProcessor(store service.AtomicStore, matcher *rules.Matcher, cfg Config) *Processor {
	if matcher == nil {
		matcher = rules.NewMatcher()
	}
	p := &Processor{
		store:       store,
		matcher:     matcher,
		cfg:         cfg.withDefaults(),
		inFlight:    make(map[string]struct{}),
		subscribers: make(map[int]chan []model.PendingMessage),
	}
	empty := []model.PendingMessage{}
	p.snapshot.Store(&empty)
	return p
}

// ProcessIncoming infers a transaction from msg and commits it, or queues the
// message for the user when no rule yields a usable amount.
//
// A store failure is returned together with a queued outcome: the message is
// kept as a pending item rather than dropped.
func (p *Processor) ProcessIncoming(ctx context.Context, msg Message) (Outcome, error) {
	logger := slog.With("channel", msg.Channel)
	logger.Debug("processing inbound message", "text", msg.Text)

	ruleSet, err := p.store.ListRules(ctx)
	if err != nil {
		pending := p.enqueue(msg, nil)
		logger.Warn("failed to load rules, message queued", "pending_id", pending.ID, "error", err)
		return Outcome{Kind: OutcomeQueued, Pending: &pending},
			common.NewUserError("无法读取规则", fmt.Errorf("failed to load rules: %w", err))
	}

	match := p.matcher.Evaluate(ruleSet, rules.Query{
		CardID:   msg.CardID,
		MethodID: msg.MethodID,
		Channel:  msg.Channel,
		Text:     msg.Text,
	})

	if !match.Committable() || !validAmount(*match.Amount) {
		pending := p.enqueue(msg, match.Rule)
		logger.Info("message queued for review", "pending_id", pending.ID, "matched", match.Matched())
		return Outcome{Kind: OutcomeQueued, Pending: &pending, Match: match}, nil
	}

	txn := p.inferredTransaction(msg, match)
	if _, err := p.store.SaveTransaction(ctx, txn); err != nil {
		pending := p.enqueue(msg, match.Rule)
		logger.Warn("failed to commit inferred transaction, message queued",
			"pending_id", pending.ID, "rule_id", match.Rule.ID, "error", err)
		return Outcome{Kind: OutcomeQueued, Pending: &pending, Match: match},
			common.NewUserError("自动记账失败", fmt.Errorf("failed to save transaction: %w", err))
	}

	logger.Info("auto-imported transaction",
		"transaction_id", txn.ID, "rule_id", match.Rule.ID, "amount", txn.Amount, "type", txn.Type)
	return Outcome{Kind: OutcomeCommitted, Transaction: txn, Match: match}, nil
}

func (p *Processor) inferredTransaction(msg Message, match model.RuleMatchResult) *model.Transaction {
	rule := match.Rule

	typ := match.Type
	if !typ.Valid() {
		typ = model.TransactionExpense
	}

	categoryID := p.cfg.DefaultCategoryID
	if rule.CategoryID != nil {
		categoryID = *rule.CategoryID
	}

	methodID := p.cfg.DefaultMethodID
	switch {
	case rule.MethodID != nil:
		methodID = *rule.MethodID
	case msg.MethodID != nil:
		methodID = *msg.MethodID
	}

	ruleID := rule.ID
	return &model.Transaction{
		Amount:        *match.Amount,
		Type:          typ,
		CategoryID:    categoryID,
		MethodID:      methodID,
		CardID:        copyID(msg.CardID),
		OccurredAt:    p.cfg.now(),
		Note:          p.cfg.AutoImportNote,
		Source:        msg.Channel,
		MatchedRuleID: &ruleID,
		FromMessage:   true,
	}
}

// SaveRuleAndApply stores the user's rule and the confirmed transaction as one
// unit, then drops the pending item. Validation failures are rejected before
// anything is written; on a store failure the pending item stays queued.
func (p *Processor) SaveRuleAndApply(ctx context.Context, res Resolution) (ResolveResult, error) {
	if err := validateResolution(res); err != nil {
		return ResolveResult{}, err
	}

	if !p.claim(res.PendingID) {
		slog.Info("pending item already resolved or in progress", "pending_id", res.PendingID)
		return ResolveResult{}, nil
	}

	rule := res.Rule
	var result ResolveResult
	err := p.store.WithTx(ctx, func(tx service.Store) error {
		ruleID, err := tx.UpsertRule(ctx, &rule)
		if err != nil {
			return fmt.Errorf("failed to save rule: %w", err)
		}

		txn := &model.Transaction{
			Amount:        res.Amount,
			Type:          res.Type,
			CategoryID:    res.CategoryID,
			MethodID:      res.MethodID,
			CardID:        copyID(res.CardID),
			OccurredAt:    p.cfg.now(),
			Note:          p.cfg.ManualNote,
			Source:        rule.Channel,
			MatchedRuleID: &ruleID,
			FromMessage:   true,
		}
		txnID, err := tx.SaveTransaction(ctx, txn)
		if err != nil {
			return fmt.Errorf("failed to save transaction: %w", err)
		}

		result = ResolveResult{RuleID: ruleID, TransactionID: txnID, Applied: true}
		return nil
	})
	if err != nil {
		p.release(res.PendingID)
		slog.Warn("failed to resolve pending item", "pending_id", res.PendingID, "error", err)
		return ResolveResult{}, common.NewUserError("保存失败", err)
	}

	p.complete(res.PendingID)
	slog.Info("resolved pending item",
		"pending_id", res.PendingID, "rule_id", result.RuleID, "transaction_id", result.TransactionID)
	return result, nil
}

// Dismiss drops a pending item without recording anything. It reports false
// when the item is gone or currently being resolved.
func (p *Processor) Dismiss(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, busy := p.inFlight[id]; busy {
		return false
	}
	current := *p.snapshot.Load()
	idx := indexOf(current, id)
	if idx < 0 {
		return false
	}
	p.publishLocked(without(current, idx))
	slog.Info("dismissed pending item", "pending_id", id)
	return true
}

// Pending returns the current queue, oldest first. The slice must not be modified.
func (p *Processor) Pending() []model.PendingMessage {
	return *p.snapshot.Load()
}

// Get returns one pending item by id.
func (p *Processor) Get(id string) (model.PendingMessage, bool) {
	current := *p.snapshot.Load()
	if idx := indexOf(current, id); idx >= 0 {
		return current[idx], true
	}
	return model.PendingMessage{}, false
}

// Subscribe returns a channel that immediately holds the current queue and
// afterwards always holds the latest one. Slow readers skip intermediate
// states. The returned function unsubscribes and closes the channel.
func (p *Processor) Subscribe() (<-chan []model.PendingMessage, func()) {
	ch := make(chan []model.PendingMessage, 1)

	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = ch
	ch <- *p.snapshot.Load()
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, id)
			close(ch)
			p.mu.Unlock()
		})
	}
}

func (p *Processor) enqueue(msg Message, suggested *model.Rule) model.PendingMessage {
	received := msg.ReceivedAt
	if received.IsZero() {
		received = p.cfg.now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	current := *p.snapshot.Load()
	item := model.PendingMessage{
		ID:            uniqueID(current, pendingID(received, msg.Text)),
		Channel:       msg.Channel,
		Text:          msg.Text,
		MethodID:      copyID(msg.MethodID),
		CardID:        copyID(msg.CardID),
		SuggestedRule: suggested,
		ReceivedAt:    received,
	}

	next := make([]model.PendingMessage, len(current), len(current)+1)
	copy(next, current)
	p.publishLocked(append(next, item))
	return item
}

func (p *Processor) claim(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, busy := p.inFlight[id]; busy {
		return false
	}
	if indexOf(*p.snapshot.Load(), id) < 0 {
		return false
	}
	p.inFlight[id] = struct{}{}
	return true
}

func (p *Processor) release(id string) {
	p.mu.Lock()
	delete(p.inFlight, id)
	p.mu.Unlock()
}

func (p *Processor) complete(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.inFlight, id)
	current := *p.snapshot.Load()
	if idx := indexOf(current, id); idx >= 0 {
		p.publishLocked(without(current, idx))
	}
}

// publishLocked installs next as the current queue and hands it to every
// subscriber, replacing any value they have not read yet. p.mu must be held.
func (p *Processor) publishLocked(next []model.PendingMessage) {
	p.snapshot.Store(&next)
	for _, ch := range p.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}

func validateResolution(res Resolution) error {
	if !validAmount(res.Amount) {
		return common.NewUserError("金额需大于0", common.ErrInvalidAmount)
	}
	if !res.Type.Valid() {
		return common.NewUserError("请选择收支类型", fmt.Errorf("unknown transaction type %q", res.Type))
	}
	if res.CategoryID <= 0 {
		return common.NewUserError("请选择分类", common.ErrMissingCategory)
	}
	if res.MethodID <= 0 {
		return common.NewUserError("请选择支付方式", common.ErrMissingMethod)
	}
	if res.PendingID == "" {
		return common.NewUserError("缺少待确认消息", errors.New("pending id is required"))
	}
	return nil
}

func validAmount(amount float64) bool {
	return amount > 0 && !math.IsNaN(amount) && !math.IsInf(amount, 0)
}

func pendingID(received time.Time, text string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	return strconv.FormatInt(received.UnixMilli(), 10) + "_" + strconv.FormatUint(uint64(h.Sum32()), 10)
}

func uniqueID(current []model.PendingMessage, id string) string {
	if indexOf(current, id) < 0 {
		return id
	}
	for n := 1; ; n++ {
		candidate := id + "-" + strconv.Itoa(n)
		if indexOf(current, candidate) < 0 {
			return candidate
		}
	}
}

func indexOf(items []model.PendingMessage, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func without(items []model.PendingMessage, idx int) []model.PendingMessage {
	next := make([]model.PendingMessage, 0, len(items)-1)
	next = append(next, items[:idx]...)
	return append(next, items[idx+1:]...)
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
