package vectorstore

import "testing"

func TestQdrantVersionNames(t *testing.T) {
	alias := "aiact_eu_ai_act"

	v := versionName(alias)
	if !isVersionOf(alias, v) {
		t.Errorf("versionName(%q) = %q, not recognized as a version of its alias", alias, v)
	}

	// The alias itself and other aliases' versions must never be
	// treated as disposable build output.
	if isVersionOf(alias, alias) {
		t.Error("alias misidentified as one of its own versions")
	}
	if isVersionOf("other_index", v) {
		t.Errorf("%q misidentified as a version of other_index", v)
	}

	if second := versionName(alias); second == v {
		t.Error("consecutive builds produced the same collection name")
	}
}
