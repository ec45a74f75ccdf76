package match

import "fmt"

// Data party indices. A third party, when configured, is the triple dealer;
// it holds no dataset and never enters the matching semantics.
const (
	PartyA = 0
	PartyB = 1

	HelperParty = 2
)

// Config carries the public protocol parameters of one run. It is passed
// explicitly into the engine and the orchestration layer; nothing is read
// from ambient globals.
type Config struct {
	// PartyIndex is this process's 0-based party index.
	PartyIndex int `json:"party_index" yaml:"party_index"`

	// PartyCount is the total number of participating processes: 2, or 3
	// when a helper dealer runs as its own party.
	PartyCount int `json:"party_count" yaml:"party_count"`

	// Capacity is the agreed public padding bound L. Both parties' padded
	// sets have exactly this length, which is what hides true dataset sizes.
	Capacity int `json:"capacity" yaml:"capacity"`
}

// Validate checks the configuration's internal consistency.
func (c *Config) Validate() error {
	if c.PartyCount != 2 && c.PartyCount != 3 {
		return fmt.Errorf("party count must be 2 or 3, got %d", c.PartyCount)
	}
	if c.PartyIndex < 0 || c.PartyIndex >= c.PartyCount {
		return fmt.Errorf("party index %d out of range for %d parties", c.PartyIndex, c.PartyCount)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	}
	return nil
}

// IsDataParty reports whether this process holds a dataset.
func (c *Config) IsDataParty() bool {
	return c.PartyIndex == PartyA || c.PartyIndex == PartyB
}

// CounterpartIndex returns the other data party's index.
func (c *Config) CounterpartIndex() int {
	if c.PartyIndex == PartyA {
		return PartyB
	}
	return PartyA
}
