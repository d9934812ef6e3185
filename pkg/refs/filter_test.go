package refs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fulmenhq/cloudref/pkg/refs"
)

func ref(identity string, remote bool) *refs.Reference {
	return &refs.Reference{Identity: identity, RawPath: identity, Remote: remote, Eligible: true}
}

func TestDedup_FirstOccurrenceWins(t *testing.T) {
	list := []*refs.Reference{
		ref("/a.png", false),
		ref("/b.png", false),
		ref("/a.png", false),
		ref("/c.png", false),
		ref("/b.png", false),
		ref("/a.png", false),
	}

	skipped := refs.Dedup(list)

	assert.Equal(t, 3, skipped)
	assert.Equal(t, []bool{true, true, false, true, false, false}, eligibility(list))
}

func TestFilter_RemoteNeverEligible(t *testing.T) {
	list := []*refs.Reference{
		ref("http://cdn/x.png", true),
		ref("/a.png", false),
		ref("http://cdn/x.png", true),
		ref("data:image/png;base64,AA", true),
	}

	stats := refs.Filter(list)

	assert.Equal(t, 0, stats.Duplicates, "repeated remote URLs are counted as remote, not duplicates")
	assert.Equal(t, 3, stats.Remote)
	assert.Equal(t, []bool{false, true, false, false}, eligibility(list))
}

func TestFilter_AtMostOneEligiblePerIdentity(t *testing.T) {
	ids := []string{"/x", "/y", "/x", "/z", "/y", "/x", "/z", "/w"}
	var list []*refs.Reference
	for _, id := range ids {
		list = append(list, ref(id, false))
	}
	refs.Filter(list)

	seen := map[string]int{}
	firstIndex := map[string]int{}
	for i, r := range list {
		if _, ok := firstIndex[r.Identity]; !ok {
			firstIndex[r.Identity] = i
		}
		if r.Eligible {
			seen[r.Identity]++
			assert.Equal(t, firstIndex[r.Identity], i, "eligible reference must be the earliest for %s", r.Identity)
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
	assert.Len(t, seen, 4)
}

func TestPhaseHelpers(t *testing.T) {
	a, b, c := ref("/a", false), ref("/a", false), ref("/b", false)
	b.Eligible = false
	p := &refs.Phase{Number: 1, Files: []*refs.SourceFile{
		{SourcePath: "one.css", Refs: []*refs.Reference{a, b}},
		{SourcePath: "two.css"},
		{SourcePath: "three.css", Refs: []*refs.Reference{c}},
	}}

	assert.Equal(t, []*refs.Reference{a, b, c}, p.References())
	assert.Equal(t, []*refs.Reference{a, c}, p.Eligible())
}

func eligibility(list []*refs.Reference) []bool {
	out := make([]bool, len(list))
	for i, r := range list {
		out[i] = r.Eligible
	}
	return out
}
