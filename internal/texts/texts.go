// Package texts holds the reference passages typed during a session.
package texts

import (
	"math/rand/v2"

	"speedtype/internal/tier"

	"github.com/samber/lo"
)

var base = []string{
	"Technology is transforming the world faster than ever before, helping people connect, learn, and solve complex problems through innovation. From smartphones to smart homes, digital tools have become part of our daily lives, making tasks easier and communication more effective.",
	"Artificial intelligence is shaping the future by allowing computers to think and make decisions like humans. It improves typing assistants, voice recognition, and even gaming experiences by learning from data and user behavior.",
	"Cloud computing gives everyone the power to store, share, and access files from anywhere at any time. It keeps projects safe and accessible, making teamwork faster and more efficient.",
	"Cybersecurity plays a vital role in protecting personal data and keeping systems safe from hackers or digital attacks. Strong passwords and encryption help secure our online activities.",
	"Coding teaches logical thinking and creativity, enabling people to build apps, automate tasks, and design solutions that shape the digital world.",
}

var extended = []string{
	"Go is a statically typed, compiled programming language designed at Google. It is syntactically similar to C, but also has memory safety, garbage collection, structural typing, and communicating sequential processes style concurrency.",
	"A goroutine is a lightweight thread managed by the Go runtime. Channels are the pipes that connect concurrent goroutines, so you can send values into channels from one goroutine and receive those values into another goroutine.",
	"PostgreSQL is a free and open-source relational database management system emphasizing extensibility and SQL compliance. It features transactions with atomicity, consistency, isolation, and durability properties.",
}

// Pool returns the passages available to t: the base pool, plus the extended
// pool when the tier unlocks it.
func Pool(t tier.Tier) []string {
	if t.Capabilities().ExtendedTexts {
		return lo.Flatten([][]string{base, extended})
	}
	return lo.Flatten([][]string{base})
}

// Picker returns an index in [0, n).
type Picker func(n int) int

// Pick samples one passage uniformly from the tier's pool. A nil picker uses
// math/rand/v2.
func Pick(t tier.Tier, pick Picker) string {
	if pick == nil {
		pick = rand.IntN
	}
	pool := Pool(t)
	return pool[pick(len(pool))]
}
