// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

package objects_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stixview.io/stixview/objects"
)

func TestIntersectTypes(t *testing.T) {
	legal := []string{"malware", "indicator", "tool"}

	// no request means no restriction
	require.Equal(t, legal, objects.IntersectTypes(legal, nil))

	// requested subset
	require.Equal(t, []string{"indicator"}, objects.IntersectTypes(legal, []string{"indicator"}))

	// types outside the partition are dropped
	require.Equal(t, []string{"malware"}, objects.IntersectTypes(legal, []string{"malware", "ipv4-addr"}))

	// empty intersection matches nothing, not everything
	require.Empty(t, objects.IntersectTypes(legal, []string{"ipv4-addr"}))

	// the legal set is not shared with the result
	got := objects.IntersectTypes(legal, nil)
	got[0] = "changed"
	require.Equal(t, "malware", legal[0])
}

func TestTaxonomyPartitions(t *testing.T) {
	seen := map[string]string{}
	for name, types := range map[string][]string{
		"sdo": objects.SDOTypes,
		"sco": objects.SCOTypes,
		"smo": objects.SMOTypes,
		"sro": {objects.RelationshipType},
	} {
		for _, typ := range types {
			require.NotContains(t, seen, typ, "type %q in both %q and %q", typ, seen[typ], name)
			seen[typ] = name
		}
	}

	require.Len(t, objects.AllTypes(), len(seen))
	require.Contains(t, objects.SDOTypes, "attack-flow")
	require.Contains(t, objects.SDOTypes, "attack-action")
}

func TestSortFieldDefaults(t *testing.T) {
	// the first token is the fallback for unknown sorts, so the lists must
	// never be empty
	for _, options := range [][]string{
		objects.SDOSortFields,
		objects.SCOSortFields,
		objects.SROSortFields,
		objects.SMOSortFields,
	} {
		require.NotEmpty(t, options)
	}
	require.Equal(t, "name_ascending", objects.SDOSortFields[0])
	require.Equal(t, "created_ascending", objects.SROSortFields[0])
}
