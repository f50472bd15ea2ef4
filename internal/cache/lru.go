package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU реализует кэш с вытеснением по размеру и сроком жизни записей.
type LRU[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
	now     func() time.Time
}

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// NewLRU создает кэш на maxSize записей со сроком жизни ttl.
func NewLRU[T any](maxSize int, ttl time.Duration) *LRU[T] {
	return &LRU[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get возвращает значение и продлевает срок жизни записи.
// Просроченная запись не возвращается, но остается до CleanExpired.
func (c *LRU[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	item := elem.Value.(*entry[T])
	if c.now().After(item.expiresAt) {
		return zero, false
	}

	item.expiresAt = c.now().Add(c.ttl)
	c.order.MoveToFront(elem)
	return item.value, true
}

// Set сохраняет значение и возвращает ключ вытесненной записи, если она была.
func (c *LRU[T]) Set(key string, value T) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &entry[T]{key: key, value: value, expiresAt: c.now().Add(c.ttl)}

	if elem, ok := c.items[key]; ok {
		elem.Value = item
		c.order.MoveToFront(elem)
		return "", false
	}

	c.items[key] = c.order.PushFront(item)

	if c.maxSize > 0 && c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			evicted := oldest.Value.(*entry[T]).key
			c.remove(oldest)
			return evicted, true
		}
	}

	return "", false
}

// Delete удаляет запись и сообщает, была ли она в кэше.
func (c *LRU[T]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	c.remove(elem)
	return true
}

// CleanExpired удаляет просроченные записи и возвращает их ключи.
func (c *LRU[T]) CleanExpired() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := make([]string, 0)
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		item := elem.Value.(*entry[T])
		if now.After(item.expiresAt) {
			removed = append(removed, item.key)
			c.remove(elem)
		}
		elem = prev
	}

	return removed
}

// Len возвращает число записей, включая еще не очищенные просроченные.
func (c *LRU[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU[T]) remove(elem *list.Element) {
	item := elem.Value.(*entry[T])
	delete(c.items, item.key)
	c.order.Remove(elem)
}
