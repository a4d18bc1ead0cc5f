package guardrail

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/aegischain/aegisd/internal/model"
)

// State is the mutable half of the engine: address lists and per-agent
// cumulative spend. It is injected rather than package-global so tests
// and embedded deployments can run isolated engines side by side.
//
// Spend is cumulative for the life of the state; it only goes down via
// an explicit ResetSpend. Operators who want a true daily window reset
// it from a scheduler.
type State struct {
	mu        sync.RWMutex
	blacklist map[string]struct{}
	whitelist map[string]struct{}
	spend     map[string]decimal.Decimal
}

// NewState returns a State seeded with the default address lists:
// the zero address and a known drain address blacklisted, the Uniswap
// V2/V3 routers whitelisted.
func NewState() *State {
	s := &State{
		blacklist: make(map[string]struct{}),
		whitelist: make(map[string]struct{}),
		spend:     make(map[string]decimal.Decimal),
	}
	for _, a := range []string{
		model.ZeroAddress,
		"0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
	} {
		s.blacklist[a] = struct{}{}
	}
	for _, a := range []string{
		"0x7a250d5630b4cf539739df2c5dacb4c659f2488d", // Uniswap V2 Router
		"0xe592427a0aece92de3edee1f18e0157c05861564", // Uniswap V3 Router
	} {
		s.whitelist[a] = struct{}{}
	}
	return s
}

// NewEmptyState returns a State with no seeded lists.
func NewEmptyState() *State {
	return &State{
		blacklist: make(map[string]struct{}),
		whitelist: make(map[string]struct{}),
		spend:     make(map[string]decimal.Decimal),
	}
}

func (s *State) IsBlacklisted(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blacklist[model.NormalizeAddress(addr)]
	return ok
}

func (s *State) IsWhitelisted(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.whitelist[model.NormalizeAddress(addr)]
	return ok
}

func (s *State) AddBlacklist(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[model.NormalizeAddress(addr)] = struct{}{}
}

func (s *State) RemoveBlacklist(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blacklist, model.NormalizeAddress(addr))
}

func (s *State) AddWhitelist(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist[model.NormalizeAddress(addr)] = struct{}{}
}

func (s *State) RemoveWhitelist(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.whitelist, model.NormalizeAddress(addr))
}

// Spent returns the cumulative spend recorded for the agent.
func (s *State) Spent(agent string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spend[model.NormalizeAddress(agent)]
}

// AddSpend records value against the agent's running total.
func (s *State) AddSpend(agent string, value decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.NormalizeAddress(agent)
	s.spend[key] = s.spend[key].Add(value)
}

// ResetSpend zeroes the agent's running total and returns what it was.
func (s *State) ResetSpend(agent string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.NormalizeAddress(agent)
	prev := s.spend[key]
	delete(s.spend, key)
	return prev
}

// Blacklist returns a sorted copy of the blacklist.
func (s *State) Blacklist() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.blacklist)
}

// Whitelist returns a sorted copy of the whitelist.
func (s *State) Whitelist() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.whitelist)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
