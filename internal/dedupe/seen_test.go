package dedupe_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tenderradar/internal/dedupe"
)

func TestSetSeen(t *testing.T) {
	s := dedupe.NewSet(10)
	require.False(t, s.Seen("1000-1-LE24"))
	s.Add("1000-1-LE24")
	require.True(t, s.Seen("1000-1-LE24"))
	require.Equal(t, 1, s.Len())
}

func TestSetAddIsIdempotent(t *testing.T) {
	s := dedupe.NewSet(10)
	s.Add("code")
	s.Add("code")
	require.Equal(t, 1, s.Len())
}

func TestSetCapacityEvictsOldest(t *testing.T) {
	s := dedupe.NewSet(2)
	s.Add("first")
	s.Add("second")
	s.Add("third")

	require.False(t, s.Seen("first"))
	require.True(t, s.Seen("second"))
	require.True(t, s.Seen("third"))
	require.Equal(t, 2, s.Len())
}
