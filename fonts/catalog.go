package fonts

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Catalog is an immutable discovery result. It is safe to share between
// requests; nothing mutates it after construction.
type Catalog struct {
	Book  *Book
	Slots []Slot
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Slots)
}

// Font loads the face behind slot index. Failures are returned, never fatal.
func (c *Catalog) Font(index int) (*Font, error) {
	if c == nil || index < 0 || index >= len(c.Slots) {
		return nil, fmt.Errorf("fonts: no slot %d", index)
	}
	slot := c.Slots[index]
	data, err := slot.Load()
	if err != nil {
		return nil, err
	}
	info, _ := c.Book.Info(index)
	return &Font{Data: data, Index: slot.Index, Info: info}, nil
}

// Paths lists the distinct on-disk files behind the slots, in slot order.
func (c *Catalog) Paths() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(c.Slots))
	var out []string
	for _, s := range c.Slots {
		if s.InMemory() {
			continue
		}
		if _, dup := seen[s.Path]; dup {
			continue
		}
		seen[s.Path] = struct{}{}
		out = append(out, s.Path)
	}
	return out
}

// InMemoryIDs lists the slot ids whose bytes are compiled in.
func (c *Catalog) InMemoryIDs() []int {
	if c == nil {
		return nil
	}
	var ids []int
	for i, s := range c.Slots {
		if s.InMemory() {
			ids = append(ids, i)
		}
	}
	return ids
}

// With returns a new catalog holding c's slots followed by the slots
// discovered under extra. c is left untouched.
func (c *Catalog) With(extra []string) *Catalog {
	if len(extra) == 0 {
		return c
	}
	s := NewSearcher()
	if c != nil {
		for i, slot := range c.Slots {
			info, _ := c.Book.Info(i)
			s.book.Push(info)
			s.slots = append(s.slots, slot)
		}
	}
	for _, p := range extra {
		s.SearchPath(p)
	}
	return s.Catalog()
}

// Registry owns the process-wide catalog. Readers get the current pointer;
// Reload swaps in a freshly discovered catalog. Nothing reloads implicitly.
type Registry struct {
	opts     Options
	current  atomic.Pointer[Catalog]
	loadedAt atomic.Int64
	group    singleflight.Group
	once     sync.Once
}

func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts}
}

// Catalog returns the shared catalog, discovering it on first use.
func (r *Registry) Catalog() *Catalog {
	r.once.Do(func() {
		if r.current.Load() == nil {
			r.Reload()
		}
	})
	return r.current.Load()
}

// Reload rediscovers fonts. Concurrent callers share one discovery run.
// Unreadable files are logged and skipped during discovery, so it cannot fail.
func (r *Registry) Reload() *Catalog {
	v, _, _ := r.group.Do("reload", func() (any, error) {
		start := time.Now()
		c := Discover(r.opts)
		r.current.Store(c)
		r.loadedAt.Store(time.Now().Unix())
		log.Printf("[INFO][FONTS] catalog loaded: %d faces, %d families in %v",
			c.Len(), len(c.Book.Families()), time.Since(start).Round(time.Millisecond))
		return c, nil
	})
	return v.(*Catalog)
}

// LoadedAt reports when the current catalog was built.
func (r *Registry) LoadedAt() time.Time {
	return time.Unix(r.loadedAt.Load(), 0)
}
