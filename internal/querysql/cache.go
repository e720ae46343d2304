package querysql

import (
	"sort"
	"strings"
	"sync"

	"github.com/pgschema/relmig/internal/command"
	"github.com/pgschema/relmig/internal/fingerprint"
	"github.com/pgschema/relmig/internal/logger"
	"github.com/pgschema/relmig/internal/query"
)

type cacheKey struct {
	tree  uint64
	nulls string
}

// Cache memoizes generated SQL. The text of a command depends on the tree
// and on which parameters are NULL, so entries are keyed on both and the
// parameter values are rebound on every hit.
type Cache struct {
	gen *Generator

	mu      sync.Mutex
	entries map[cacheKey]*command.Command
}

// NewCache returns an empty cache in front of gen.
func NewCache(gen *Generator) *Cache {
	return &Cache{gen: gen, entries: map[cacheKey]*command.Command{}}
}

// GetCommand returns the command for sel bound to params.
func (c *Cache) GetCommand(sel *query.Select, params map[string]any) (*command.Command, error) {
	key := cacheKey{tree: fingerprint.QueryHash(sel), nulls: nullness(params)}

	c.mu.Lock()
	cached, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return cached.WithValues(params), nil
	}

	compiled, err := c.gen.Compile(sel, params)
	if err != nil {
		return nil, err
	}
	if compiled.IsCacheable() {
		c.mu.Lock()
		c.entries[key] = compiled.Command
		c.mu.Unlock()
	} else if logger.IsDebug() {
		logger.Get().Debug("Generated SQL is not cacheable", "tree", key.tree)
	}
	return compiled.Command, nil
}

// Len returns the number of cached commands.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// nullness encodes the names of the parameters bound to nil.
func nullness(params map[string]any) string {
	var names []string
	for name, v := range params {
		if v == nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "\x00")
}
