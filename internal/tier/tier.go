package tier

import "fmt"

// Tier is an account subscription level.
type Tier string

const (
	Free    = Tier("free")
	Pro     = Tier("pro")
	Trainer = Tier("trainer")
)

// Capabilities lists what a tier unlocks.
type Capabilities struct {
	ExtendedTexts   bool // extended text pool is appended to the base pool
	ProgressHistory bool // recent results are shown in the stats view
}

var capabilities = map[Tier]Capabilities{
	Free:    {},
	Pro:     {ExtendedTexts: true, ProgressHistory: true},
	Trainer: {ExtendedTexts: true, ProgressHistory: true},
}

// All returns every tier in ascending order.
func All() []Tier {
	return []Tier{Free, Pro, Trainer}
}

func Parse(s string) (Tier, error) {
	t := Tier(s)
	if _, ok := capabilities[t]; !ok {
		return "", fmt.Errorf("unknown subscription tier %q", s)
	}
	return t, nil
}

func (t Tier) Valid() bool {
	_, ok := capabilities[t]
	return ok
}

// Capabilities returns the table entry for t. Unknown tiers get nothing.
func (t Tier) Capabilities() Capabilities {
	return capabilities[t]
}

func (t Tier) String() string {
	return string(t)
}
