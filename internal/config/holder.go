package config

import "sync/atomic"

// Holder serves the current configuration to components that must observe
// runtime changes. Readers call Get on every use instead of caching.
type Holder struct {
	cur atomic.Pointer[Config]
}

// NewHolder returns a Holder serving cfg.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.cur.Store(cfg)
	return h
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	return h.cur.Load()
}

// Set replaces the configuration seen by subsequent Get calls.
func (h *Holder) Set(cfg *Config) {
	h.cur.Store(cfg)
}
