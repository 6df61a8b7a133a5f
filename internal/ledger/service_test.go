package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"traderoom/internal/types"
)

func TestComputeHashIsDeterministic(t *testing.T) {
	amt := decimal.RequireFromString("100.50")
	prev := "ab12"
	h1 := computeHash("e1", "t1", "a1", amt, types.LedgerEntryTypeDeposit, 7, &prev)
	h2 := computeHash("e1", "t1", "a1", amt, types.LedgerEntryTypeDeposit, 7, &prev)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestComputeHashChainsOnPrev(t *testing.T) {
	amt := decimal.NewFromInt(10)
	prev := "ab12"
	withPrev := computeHash("e1", "t1", "a1", amt, types.LedgerEntryTypeTrade, 1, &prev)
	withoutPrev := computeHash("e1", "t1", "a1", amt, types.LedgerEntryTypeTrade, 1, nil)
	assert.NotEqual(t, withPrev, withoutPrev)
}

func TestComputeHashSensitiveToAmount(t *testing.T) {
	a := computeHash("e1", "t1", "a1", decimal.NewFromInt(10), types.LedgerEntryTypeTrade, 1, nil)
	b := computeHash("e1", "t1", "a1", decimal.NewFromInt(11), types.LedgerEntryTypeTrade, 1, nil)
	assert.NotEqual(t, a, b)
}

func TestNullable(t *testing.T) {
	assert.Equal(t, "", nullable(nil))
	v := "x"
	assert.Equal(t, "x", nullable(&v))
}
