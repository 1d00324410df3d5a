package source

import "testing"

func TestLegacyXORIsSelfInverse(t *testing.T) {
	original := []byte("the quick brown fox")
	buf := append([]byte(nil), original...)

	legacyXORTransform(buf, 0, len(original))
	if string(buf) == string(original) {
		t.Fatal("transform had no effect on plaintext")
	}
	legacyXORTransform(buf, 0, len(original))
	if string(buf) != string(original) {
		t.Fatalf("second application = %q, want original %q", buf, original)
	}
}

func TestLegacyXORRespectsStartIndex(t *testing.T) {
	total := 20
	whole := make([]byte, total)
	for i := range whole {
		whole[i] = byte(i)
	}

	fromStart := append([]byte(nil), whole...)
	legacyXORTransform(fromStart, 0, total)

	tail := append([]byte(nil), whole[10:]...)
	legacyXORTransform(tail, 10, total)

	for i, b := range tail {
		if b != fromStart[10+i] {
			t.Fatalf("byte %d: windowed transform = %#x, want %#x", i, b, fromStart[10+i])
		}
	}
}
