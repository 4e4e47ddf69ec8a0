package engine

import (
	"container/list"
	"sync"

	"github.com/hxuan190/omnipool-engine/internal/domain"
)

// quoteKey identifies a quote against one version of the pool state. A state
// change makes every older key unreachable.
type quoteKey struct {
	version uint64
	kind    domain.TradeKind
	in      domain.AssetID
	out     domain.AssetID
	amount  string
}

type quoteEntry struct {
	key   quoteKey
	value *domain.QuoteResult
}

// QuoteCache is a bounded LRU of quotes.
type QuoteCache struct {
	mu      sync.Mutex
	cache   map[quoteKey]*list.Element
	lru     *list.List
	maxSize int
	version uint64
}

func NewQuoteCache(maxSize int) *QuoteCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &QuoteCache{
		cache:   make(map[quoteKey]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// Get returns the cached quote and promotes it.
func (c *QuoteCache) Get(key quoteKey) (*domain.QuoteResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*quoteEntry).value, true
}

// Set stores a quote. Seeing a newer state version drops everything cached
// for older ones.
func (c *QuoteCache) Set(key quoteKey, value *domain.QuoteResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key.version < c.version {
		return
	}
	if key.version > c.version {
		c.reset()
		c.version = key.version
	}

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*quoteEntry).value = value
		return
	}

	for len(c.cache) >= c.maxSize {
		c.evictLRU()
	}
	c.cache[key] = c.lru.PushFront(&quoteEntry{key: key, value: value})
}

// must be called with mu held
func (c *QuoteCache) evictLRU() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	c.lru.Remove(back)
	delete(c.cache, back.Value.(*quoteEntry).key)
}

func (c *QuoteCache) reset() {
	c.cache = make(map[quoteKey]*list.Element, c.maxSize)
	c.lru.Init()
}

func (c *QuoteCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}
