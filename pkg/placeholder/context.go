package placeholder

import (
	"os"
	"sync"
	"time"

	"github.com/go-go-golems/recast/pkg/tagchain"
	"github.com/pkg/errors"
)

// Context is the per-event set of named values visible to template
// expansion. It is owned exclusively by the reform call processing one
// event and is never shared across events.
type Context struct {
	Tag       string
	TagParts  []string
	TagPrefix []string
	TagSuffix []string
	Hostname  string
	Time      any
	Record    map[string]any
}

// Builder assembles per-event contexts. The hostname is resolved once at
// construction; tag-derived chains are memoized per distinct tag since
// multiple events for different tags may be processed concurrently.
type Builder struct {
	hostname string
	strategy Strategy

	mu     sync.Mutex
	chains map[string]tagchain.Chains
}

func NewBuilder(strategy Strategy) (*Builder, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.Wrap(err, "resolve hostname")
	}
	return &Builder{
		hostname: hostname,
		strategy: strategy,
		chains:   map[string]tagchain.Chains{},
	}, nil
}

func (b *Builder) Build(tag string, t time.Time, record map[string]any) *Context {
	c := b.chainsFor(tag)
	return &Context{
		Tag:       tag,
		TagParts:  c.Parts,
		TagPrefix: c.Prefix,
		TagSuffix: c.Suffix,
		Hostname:  b.hostname,
		Time:      b.strategy.RenderTime(t),
		Record:    record,
	}
}

func (b *Builder) chainsFor(tag string) tagchain.Chains {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.chains[tag]; ok {
		return c
	}
	c := tagchain.Decompose(tag)
	b.chains[tag] = c
	return c
}
