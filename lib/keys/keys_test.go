package keys

import (
	"testing"
	"time"
)

func TestValid(t *testing.T) {
	tests := []struct {
		id       string
		expected bool
	}{
		{"task-1", true},
		{"a", true},
		{"", false},
		{"has:separator", false},
		{":", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.id); got != tt.expected {
			t.Errorf("Valid(%q) = %v, want %v", tt.id, got, tt.expected)
		}
	}
}

func TestMonthToken(t *testing.T) {
	tests := []struct {
		time     time.Time
		expected string
	}{
		{time.Date(2025, time.November, 3, 12, 0, 0, 0, time.UTC), "11-25"},
		{time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), "01-25"},
		{time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC), "12-24"},
		{time.Date(2030, time.June, 15, 0, 0, 0, 0, time.UTC), "06-30"},
	}
	for _, tt := range tests {
		if got := MonthToken(tt.time); got != tt.expected {
			t.Errorf("MonthToken(%v) = %q, want %q", tt.time, got, tt.expected)
		}
	}
}

func TestBuilders(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Entity", Entity("task", "task-1"), "e:task:task-1"},
		{"EntityPrefix", EntityPrefix("task"), "e:task:"},
		{"Log", Log("task", "task-1", "log-9"), "log:task:task-1:log-9"},
		{"LogPrefix", LogPrefix("task", "task-1"), "log:task:task-1:"},
		{"LogTypePrefix", LogTypePrefix("task"), "log:task:"},
		{"Effect", Effect("task", "task-1", "created"), "fx:task:task-1:created"},
		{"EffectPrefix", EffectPrefix("task", "task-1", ""), "fx:task:task-1:"},
		{"EffectPrefixNarrowed", EffectPrefix("task", "task-1", "archive"), "fx:task:task-1:archive"},
		{"Link", Link("abc"), "ln:abc"},
		{"LinkTriple", LinkTriple("task-finrec", "task", "task-1", "finrec", "finrec-1"), "lt:task-finrec:task:task-1:finrec:finrec-1"},
		{"LinkReverse", LinkReverse("task", "task-1"), "lr:task:task-1"},
		{"IndexBucket", IndexBucket("task", "collected", "11-25"), "ix:task:collected:11-25"},
		{"IndexPrefix", IndexPrefix("task", "collected"), "ix:task:collected:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestIndexBucketToken(t *testing.T) {
	token, ok := IndexBucketToken("ix:task:collected:11-25", "task", "collected")
	if !ok || token != "11-25" {
		t.Errorf("IndexBucketToken = (%q, %v), want (11-25, true)", token, ok)
	}

	if _, ok := IndexBucketToken("ix:item:sold:11-25", "task", "collected"); ok {
		t.Errorf("expected mismatching index to report false")
	}
}

// TestPrefixIsolation ensures that no builder output is a prefix of a key
// from a different namespace, which would make prefix scans bleed across
// namespaces.
func TestPrefixIsolation(t *testing.T) {
	prefixes := []string{
		EntityPrefix("task"),
		LogTypePrefix("task"),
		EffectPrefix("task", "task-1", ""),
		LinkScanPrefix,
		LinkTripleScanPrefix,
		LinkReverseScanPrefix,
		IndexPrefix("task", "collected"),
	}
	keys := []string{
		Entity("task", "task-1"),
		Log("task", "task-1", "log-1"),
		Effect("task", "task-1", "created"),
		Link("abc"),
		LinkTriple("task-finrec", "task", "task-1", "finrec", "finrec-1"),
		LinkReverse("task", "task-1"),
		IndexBucket("task", "collected", "11-25"),
	}
	for i, p := range prefixes {
		for j, k := range keys {
			hasPrefix := len(k) >= len(p) && k[:len(p)] == p
			if i == j && !hasPrefix {
				t.Errorf("key %q should match its own prefix %q", k, p)
			}
			if i != j && hasPrefix {
				t.Errorf("key %q must not match foreign prefix %q", k, p)
			}
		}
	}
}
