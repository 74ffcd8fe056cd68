package idgen

import (
	"strings"
	"testing"
)

func TestGeneratorsPrefixAndUniqueness(t *testing.T) {
	cases := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{"intent", NewIntentID, "intent-"},
		{"execution", NewExecutionID, "exec-"},
		{"artifact", NewArtifactID, "artifact-"},
		{"contract", NewContractID, "contract-"},
		{"materialization", NewMaterializationID, "materialization-"},
		{"session", NewSessionID, "session-"},
		{"record", NewRecordID, "record-"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, b := tc.gen(), tc.gen()
			if !strings.HasPrefix(a, tc.prefix) {
				t.Fatalf("expected prefix %q, got %q", tc.prefix, a)
			}
			if a == b {
				t.Fatalf("expected unique ids, got duplicate %q", a)
			}
		})
	}
}
