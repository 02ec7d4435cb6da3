package utils

import (
	"testing"
)

func TestHashString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple string",
			input:    "hello",
			expected: "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HashString(tt.input)

			if len(result) != 64 {
				t.Errorf("Expected hash length 64, got %d", len(result))
			}
			if result != HashString(tt.input) {
				t.Errorf("Hash function not consistent")
			}
			if result != tt.expected {
				t.Errorf("Expected hash %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestHashString_Uniqueness(t *testing.T) {
	inputs := []string{
		"test1",
		"test2",
		"Test1",
		"test 1",
		"test1 ",
		" test1",
	}

	hashes := make(map[string]string)

	for _, input := range inputs {
		hash := HashString(input)
		for otherInput, otherHash := range hashes {
			if hash == otherHash && input != otherInput {
				t.Errorf("Hash collision detected: '%s' and '%s' both hash to %s", input, otherInput, hash)
			}
		}
		hashes[input] = hash
	}
}

func BenchmarkHashString(b *testing.B) {
	testString := "This is a test string for benchmarking the hash function performance"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		HashString(testString)
	}
}
