package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/smartledger/internal/model"
	"github.com/Veraticus/smartledger/internal/rules"
)

func TestLearn_NextMessageAutoCommits(t *testing.T) {
	store := newMemStore()
	p := newTestProcessor(store)
	ctx := context.Background()
	text := "Alipay payment 25.00 success"

	item := queueOne(t, p, text)
	result, err := p.Learn(ctx, item.ID, Confirmation{
		Type:       model.TransactionExpense,
		Amount:     25,
		CategoryID: 3,
		MethodID:   2,
	})
	require.NoError(t, err)
	require.True(t, result.Applied)

	ruleSet, _ := store.snapshot()
	require.Len(t, ruleSet, 1)
	learned := ruleSet[0]
	assert.Equal(t, "规则-com.eg.android.AlipayGphone", learned.Name)
	assert.Equal(t, "alipay,payment,25.00", learned.Keywords)
	assert.Equal(t, rules.LearnedRulePriority, learned.Priority)

	outcome, err := p.ProcessIncoming(ctx, Message{Text: text, Channel: item.Channel})
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, outcome.Kind)
	assert.Equal(t, learned.ID, *outcome.Transaction.MatchedRuleID)
	assert.Equal(t, int64(3), outcome.Transaction.CategoryID)
	assert.Equal(t, int64(2), outcome.Transaction.MethodID)
	assert.InDelta(t, 25.0, outcome.Transaction.Amount, 1e-9)
}

func TestLearn_MissingItem(t *testing.T) {
	p := newTestProcessor(newMemStore())
	result, err := p.Learn(context.Background(), "nope", Confirmation{Type: model.TransactionExpense, Amount: 1, CategoryID: 1, MethodID: 1})
	require.NoError(t, err)
	assert.False(t, result.Applied)
}

func TestSuggest(t *testing.T) {
	p := newTestProcessor(newMemStore())

	t.Run("from partial match", func(t *testing.T) {
		rule := bankRule()
		rule.MethodID = int64Ptr(4)
		rule.Type = model.TransactionIncome
		item := model.PendingMessage{Text: "银行 消费 3笔 共消费45元", SuggestedRule: &rule}

		s := p.Suggest(item)
		require.NotNil(t, s.Amount)
		assert.InDelta(t, 45.0, *s.Amount, 1e-9)
		assert.Equal(t, model.TransactionIncome, s.Type)
		require.NotNil(t, s.CategoryID)
		assert.Equal(t, int64(3), *s.CategoryID)
		require.NotNil(t, s.MethodID)
		assert.Equal(t, int64(4), *s.MethodID)
		assert.Equal(t, "银行,消费,3笔", s.Keywords)
	})

	t.Run("generic amount", func(t *testing.T) {
		item := model.PendingMessage{Text: "收到转账 88.8 元", MethodID: int64Ptr(1)}
		s := p.Suggest(item)
		require.NotNil(t, s.Amount)
		assert.InDelta(t, 88.8, *s.Amount, 1e-9)
		assert.Equal(t, model.TransactionExpense, s.Type)
		assert.Nil(t, s.CategoryID)
		require.NotNil(t, s.MethodID)
		assert.Equal(t, int64(1), *s.MethodID)
	})

	t.Run("nothing to suggest", func(t *testing.T) {
		s := p.Suggest(model.PendingMessage{Text: "随机通知内容"})
		assert.Nil(t, s.Amount)
	})
}
