package llm

import (
	"strings"
	"sync"
)

// ModelClass groups model ids by request-shape compatibility.
type ModelClass string

const (
	ClassLegacy    ModelClass = "LEGACY"
	ClassReasoning ModelClass = "REASONING"
)

// TokenField is the request field that caps output length.
type TokenField string

const (
	TokenFieldMaxTokens           TokenField = "max_tokens"
	TokenFieldMaxCompletionTokens TokenField = "max_completion_tokens"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
	// ReasoningMinimumCap is the floor for reasoning models, which spend
	// part of the budget on hidden reasoning tokens.
	ReasoningMinimumCap = 1000
)

// Capability describes how to shape a request for a model family.
type Capability struct {
	Prefix              string     `json:"prefix"`
	Class               ModelClass `json:"class"`
	SupportsTemperature bool       `json:"supportsTemperature"`
	TokenField          TokenField `json:"tokenField"`
	MinimumCap          int        `json:"minimumCap"`
}

// MaxOutputTokens applies the default and floor to a caller-requested cap.
func (c Capability) MaxOutputTokens(requested int) int {
	if requested <= 0 {
		requested = DefaultMaxTokens
	}
	if requested < c.MinimumCap {
		return c.MinimumCap
	}
	return requested
}

// LegacyCapability applies to every model id without a table entry.
var LegacyCapability = Capability{
	Class:               ClassLegacy,
	SupportsTemperature: true,
	TokenField:          TokenFieldMaxTokens,
}

var defaultReasoningPrefixes = []string{"gpt-5", "gpt-4.1", "o1", "o3", "o4"}

func reasoningCapability(prefix string) Capability {
	return Capability{
		Prefix:              prefix,
		Class:               ClassReasoning,
		SupportsTemperature: false,
		TokenField:          TokenFieldMaxCompletionTokens,
		MinimumCap:          ReasoningMinimumCap,
	}
}

// Capabilities is an ordered prefix table. The first matching prefix wins.
type Capabilities struct {
	entries []Capability
}

// NewCapabilities builds the built-in table plus extra reasoning prefixes.
func NewCapabilities(extraReasoningPrefixes ...string) *Capabilities {
	seen := make(map[string]struct{})
	table := &Capabilities{}
	for _, prefix := range append(append([]string{}, defaultReasoningPrefixes...), extraReasoningPrefixes...) {
		p := normalizeModel(prefix)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		table.entries = append(table.entries, reasoningCapability(p))
	}
	return table
}

// Classify returns the capability for model. Unknown ids get LegacyCapability.
func (c *Capabilities) Classify(model string) Capability {
	id := normalizeModel(model)
	if c != nil && id != "" {
		for _, entry := range c.entries {
			if strings.HasPrefix(id, entry.Prefix) {
				return entry
			}
		}
	}
	return LegacyCapability
}

// Entries returns a copy of the table in lookup order.
func (c *Capabilities) Entries() []Capability {
	if c == nil {
		return nil
	}
	return append([]Capability(nil), c.entries...)
}

var (
	defaultMu   sync.RWMutex
	defaultCaps = NewCapabilities()
)

// SetDefaultCapabilities replaces the table used by Classify.
func SetDefaultCapabilities(c *Capabilities) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultCaps = c
}

// DefaultCapabilities returns the table used by Classify.
func DefaultCapabilities() *Capabilities {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultCaps
}

// Classify looks model up in the default table.
func Classify(model string) Capability {
	return DefaultCapabilities().Classify(model)
}

func normalizeModel(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}
