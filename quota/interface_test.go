package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountExceeded(t *testing.T) {
	assert.False(t, Account{Tier: TierFree, QuestionsAskedToday: 4}.Exceeded(5))
	assert.True(t, Account{Tier: TierFree, QuestionsAskedToday: 5}.Exceeded(5))
	assert.True(t, Account{Tier: TierFree, QuestionsAskedToday: 9}.Exceeded(5))
	assert.False(t, Account{Tier: TierPro, QuestionsAskedToday: 1000}.Exceeded(5))
	assert.True(t, Account{Tier: TierFree}.Exceeded(0))
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierPro, ParseTier("pro"))
	assert.Equal(t, TierFree, ParseTier("free"))
	assert.Equal(t, TierFree, ParseTier(""))
	assert.Equal(t, TierFree, ParseTier("enterprise"))
}
