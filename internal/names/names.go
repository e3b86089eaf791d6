// Package names generates readable default worker names for operators who
// start a worker without naming it. Identity is always explicit on the wire;
// this only picks the default the operator sees.
package names

import (
	"fmt"
	"math/rand"
)

var adjectives = []string{
	"steady", "prompt", "quiet", "earnest", "brisk",
	"patient", "careful", "tireless", "punctual", "diligent",
	"attentive", "methodical", "persistent", "thorough", "vigilant",
}

var nouns = []string{
	"courier", "scribe", "clerk", "herald", "runner",
	"archivist", "dispatcher", "porter", "envoy", "steward",
	"copyist", "messenger", "registrar", "typist", "postman",
}

// Generate returns a name like "steady-courier-37". Collisions are possible
// and harmless; the queue keys agents purely by the ID they present.
func Generate() string {
	adj := adjectives[rand.Intn(len(adjectives))]
	noun := nouns[rand.Intn(len(nouns))]
	return fmt.Sprintf("%s-%s-%02d", adj, noun, rand.Intn(100))
}
