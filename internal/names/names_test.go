package names

import (
	"regexp"
	"testing"
)

func TestGenerateShape(t *testing.T) {
	re := regexp.MustCompile(`^[a-z]+-[a-z]+-\d{2}$`)
	for i := 0; i < 50; i++ {
		name := Generate()
		if !re.MatchString(name) {
			t.Fatalf("unexpected name %q", name)
		}
	}
}

func TestGenerateVaries(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		seen[Generate()] = struct{}{}
	}
	if len(seen) < 10 {
		t.Fatalf("only %d distinct names in 100 draws", len(seen))
	}
}
