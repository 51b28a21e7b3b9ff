package nugmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPredicateMatches(t *testing.T) {
	ls := LabelSet{"id": "pkg", "version": "1.2.3"}

	require.True(t, Predicate{}.Matches(ls))

	gteq, lteq := "1.0.0", "2.0.0"
	rng := Predicate{Range: &Range{Key: "version", Gteq: &gteq, Lteq: &lteq}}
	require.True(t, rng.Matches(ls))
	require.False(t, Predicate{Range: &Range{Key: "missing", Gteq: &gteq}}.Matches(ls))

	id := "pkg"
	eq := Predicate{Range: &Range{Key: "id", Gteq: &id, Lteq: &id}}
	require.True(t, Predicate{And: &And{rng, eq}}.Matches(ls))
	require.True(t, Predicate{Or: &Or{Predicate{Range: &Range{Key: "missing", Gteq: &gteq}}, eq}}.Matches(ls))
}

func TestLessByKeys(t *testing.T) {
	a := LabelSet{"id": "aaa", "version": "2.0.0"}
	b := LabelSet{"id": "aaa", "version": "1.0.0"}
	require.False(t, LessByKeys([]string{"id"}, a, b))
	require.False(t, LessByKeys([]string{"id"}, b, a))
	require.True(t, LessByKeys([]string{"id", "version"}, b, a))
	require.False(t, LessByKeys([]string{"id", "version"}, a, b))
}
