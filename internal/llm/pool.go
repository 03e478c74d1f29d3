package llm

import (
	"fmt"
	"sync"
)

// maxPooled bounds how many provider/model clients a Pool keeps.
const maxPooled = 32

// Pool hands out one instrumented client per provider and model, creating
// them on first use. Request-level model overrides go through a Pool.
type Pool struct {
	mu       sync.Mutex
	settings func(provider, model string) Settings
	stats    *LLMStats
	clients  map[string]Client
}

// NewPool builds clients from settings. A nil stats disables instrumentation.
func NewPool(settings func(provider, model string) Settings, stats *LLMStats) *Pool {
	return &Pool{
		settings: settings,
		stats:    stats,
		clients:  make(map[string]Client),
	}
}

// Get returns the client for provider and model.
func (p *Pool) Get(provider, model string) (Client, error) {
	key := provider + "/" + model

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c, nil
	}

	c, err := New(p.settings(provider, model))
	if err != nil {
		return nil, fmt.Errorf("llm pool: %w", err)
	}
	if p.stats != nil {
		c = Instrument(c, p.stats)
	}
	if len(p.clients) >= maxPooled {
		for k, old := range p.clients {
			old.Close()
			delete(p.clients, k)
			break
		}
	}
	p.clients[key] = c
	return c, nil
}

// Close releases every pooled client.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, c := range p.clients {
		c.Close()
		delete(p.clients, k)
	}
}
