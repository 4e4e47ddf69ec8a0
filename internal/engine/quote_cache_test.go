package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hxuan190/omnipool-engine/internal/domain"
)

func TestQuoteCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewQuoteCache(2)
	a := quoteKey{version: 1, in: 0, out: 27, amount: "1"}
	b := quoteKey{version: 1, in: 0, out: 27, amount: "2"}
	d := quoteKey{version: 1, in: 0, out: 27, amount: "3"}

	c.Set(a, &domain.QuoteResult{Round: 1})
	c.Set(b, &domain.QuoteResult{Round: 2})
	_, ok := c.Get(a)
	assert.True(t, ok)

	c.Set(d, &domain.QuoteResult{Round: 3})
	assert.Equal(t, 2, c.Size())
	_, ok = c.Get(b)
	assert.False(t, ok)
	_, ok = c.Get(a)
	assert.True(t, ok)
}

func TestQuoteCacheDropsOlderVersions(t *testing.T) {
	c := NewQuoteCache(8)
	old := quoteKey{version: 1, amount: "1"}
	next := quoteKey{version: 2, amount: "1"}

	c.Set(old, &domain.QuoteResult{})
	c.Set(next, &domain.QuoteResult{})
	assert.Equal(t, 1, c.Size())
	_, ok := c.Get(old)
	assert.False(t, ok)

	// late writes for a superseded version are ignored
	c.Set(old, &domain.QuoteResult{})
	assert.Equal(t, 1, c.Size())
}
