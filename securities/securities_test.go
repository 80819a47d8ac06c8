package securities

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T, secs []Security) *Resolver {
	t.Helper()
	table, err := NewTable(secs)
	require.NoError(t, err)
	return NewResolver(table)
}

func TestNewTable_RejectsConflicts(t *testing.T) {
	_, err := NewTable([]Security{
		{Symbol: "VTI", CUSIP: "922908769"},
		{Symbol: "VXUS", CUSIP: "922908769"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "922908769")
}

func TestNewTable_RequiresSymbol(t *testing.T) {
	_, err := NewTable([]Security{{Name: "Some Fund"}})
	require.Error(t, err)
}

func TestResolve_ExactMatch(t *testing.T) {
	r := testTable(t, []Security{
		{Symbol: "VTI", CUSIP: "922908769", Name: "Vanguard Total Stock Market ETF"},
	})

	tests := []struct {
		name string
		id   string
	}{
		{"by symbol", "VTI"},
		{"by symbol lowercase", "vti"},
		{"by cusip", "922908769"},
		{"by display name", "Vanguard Total Stock Market ETF"},
		{"with surrounding space", "  VTI  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec, tie, err := r.Resolve(tt.id, "")
			require.NoError(t, err)
			assert.Nil(t, tie)
			assert.Equal(t, "VTI", sec.Symbol)
		})
	}
}

func TestResolve_ExactBeatsSubstring(t *testing.T) {
	// "0001" resolves exactly even though "00010002" is a longer candidate
	// that contains it.
	r := testTable(t, []Security{
		{Symbol: "AAA", CUSIP: "0001"},
		{Symbol: "BBB", CUSIP: "00010002"},
	})

	sec, tie, err := r.Resolve("0001", "")
	require.NoError(t, err)
	assert.Nil(t, tie)
	assert.Equal(t, "AAA", sec.Symbol)
}

func TestResolve_SubstringFallback(t *testing.T) {
	r := testTable(t, []Security{
		{Symbol: "VTI", Name: "Vanguard Total Stock Market ETF"},
		{Symbol: "BND", Name: "Vanguard Total Bond Market ETF"},
	})

	sec, tie, err := r.Resolve("", "TOTAL BOND MARKET")
	require.NoError(t, err)
	assert.Nil(t, tie)
	assert.Equal(t, "BND", sec.Symbol)
}

func TestResolve_LongestSubstringWins(t *testing.T) {
	r := testTable(t, []Security{
		{Symbol: "V", Name: "Visa"},
		{Symbol: "VTI", Name: "Vanguard Total Stock Market ETF"},
	})

	sec, _, err := r.Resolve("VANGUARD TOTAL STOCK", "")
	require.NoError(t, err)
	assert.Equal(t, "VTI", sec.Symbol)
}

func TestResolve_TieReported(t *testing.T) {
	// Two distinct securities matched by equally long identifiers: the first
	// in symbol order wins, the others surface on the tie.
	r := testTable(t, []Security{
		{Symbol: "AAA", CUSIP: "FUNDX1"},
		{Symbol: "BBB", CUSIP: "FUNDX2"},
	})

	sec, tie, err := r.Resolve("FUNDX", "")
	require.NoError(t, err)
	assert.Equal(t, "AAA", sec.Symbol)
	require.NotNil(t, tie)
	assert.Equal(t, "AAA", tie.Chosen)
	assert.Equal(t, []string{"BBB"}, tie.Others)
}

func TestResolve_Unresolved(t *testing.T) {
	r := testTable(t, []Security{
		{Symbol: "VTI", Name: "Vanguard Total Stock Market ETF"},
	})

	_, _, err := r.Resolve("ZZTOP", "Unknown Fund")
	require.Error(t, err)

	var unresolved *UnresolvedError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "ZZTOP", unresolved.Identifier)
	assert.Equal(t, "Unknown Fund", unresolved.Name)
}

func TestResolve_UnresolvedNearMatches(t *testing.T) {
	r := testTable(t, []Security{
		{Symbol: "VTZA"},
		{Symbol: "BND"},
	})

	_, _, err := r.Resolve("QQXYZ", "")
	var unresolved *UnresolvedError
	require.True(t, errors.As(err, &unresolved))
	// QQXYZ shares no 3-char prefix with anything configured.
	assert.Empty(t, unresolved.PartialMatches)

	// VTZ123 matches nothing outright but shares the VTZ prefix.
	_, _, err = r.Resolve("VTZ123", "")
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, []string{"VTZA"}, unresolved.PartialMatches)
}

func TestNormalizeIdentifier_StripsMarks(t *testing.T) {
	r := testTable(t, []Security{
		{Symbol: "NESN", Name: "Nestlé SA"},
	})
	sec, _, err := r.Resolve("Nestle SA", "")
	require.NoError(t, err)
	assert.Equal(t, "NESN", sec.Symbol)
}
