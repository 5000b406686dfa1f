package grid

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize bounds the number of cached routes.
const DefaultCacheSize = 512

type cachedRoute struct {
	path Path
	cost int
}

// Cache memoizes routes per barrier epoch. Concurrent requests for the same
// (start, end, epoch) share one search.
type Cache struct {
	router *Router
	routes *lru.Cache[string, cachedRoute]
	group  singleflight.Group
}

// NewCache wraps router with a bounded route cache.
func NewCache(router *Router, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	routes, err := lru.New[string, cachedRoute](size)
	if err != nil {
		return nil, fmt.Errorf("route cache: %w", err)
	}
	return &Cache{router: router, routes: routes}, nil
}

// Router returns the wrapped router.
func (c *Cache) Router() *Router { return c.router }

// Route behaves like Router.Route. The returned path is owned by the caller.
func (c *Cache) Route(start, end Cell) (Path, int, error) {
	epoch := c.router.Epoch()
	key := fmt.Sprintf("%d:%d:%d", start, end, epoch)
	if hit, ok := c.routes.Get(key); ok {
		return append(Path(nil), hit.path...), hit.cost, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		path, cost, seen, err := c.router.route(start, end)
		if err != nil {
			return nil, err
		}
		hit := cachedRoute{path: path, cost: cost}
		if seen == epoch {
			c.routes.Add(key, hit)
		}
		return hit, nil
	})
	if err != nil {
		return nil, UnreachableCost, err
	}
	hit := v.(cachedRoute)
	return append(Path(nil), hit.path...), hit.cost, nil
}

// Len returns the number of cached routes.
func (c *Cache) Len() int { return c.routes.Len() }
