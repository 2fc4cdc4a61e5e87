package function

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/telemetry/pkg/types"
)

func filterFixture(t *testing.T) *types.StreamCollection {
	t.Helper()
	sc := types.NewStreamCollection("c", types.Project{}, nil)
	add := func(tag string, vs ...*types.Number) {
		s := types.NewStream(types.NewTag(tag))
		for i, v := range vs {
			p := types.DayOf(day0.AddDate(0, 0, i))
			dp := types.NullDataPoint(p)
			if v != nil {
				dp = types.NewDataPoint(p, *v)
			}
			require.NoError(t, s.Add(dp))
		}
		require.NoError(t, sc.Add(s))
	}
	add("alice", val(types.Int(1)), val(types.Int(9)))
	add("bob", val(types.Int(5)), val(types.Int(4)))
	add("carol", val(types.Int(3)), nil)
	add("dave", nil, nil)
	return sc
}

func filterTags(t *testing.T, got types.Value) []string {
	t.Helper()
	sc, ok := got.(*types.StreamCollection)
	require.True(t, ok)
	var out []string
	for _, tag := range sc.Tags() {
		out = append(out, tag.String())
	}
	return out
}

func TestFilter(t *testing.T) {
	r := builtin(t)
	sc := filterFixture(t)

	tests := []struct {
		metric, selector string
		cutoff           types.Number
		want             []string
	}{
		{"max", "top", types.Int(1), []string{"alice"}},
		{"last", "top", types.Int(2), []string{"alice", "bob"}},
		{"avg", "bottom", types.Int(2), []string{"bob", "carol"}},
		{"min", "above", types.Float(2.5), []string{"bob", "carol"}},
		{"max", "below", types.Int(9), []string{"bob", "carol"}},
		{"MAX", "Top", types.Int(10), []string{"alice", "bob", "carol"}},
	}
	for _, tt := range tests {
		t.Run(tt.metric+"/"+tt.selector, func(t *testing.T) {
			got, err := r.Compute("Filter", []types.Value{sc, types.Text(tt.metric), types.Text(tt.selector), tt.cutoff})
			require.NoError(t, err)
			assert.Equal(t, tt.want, filterTags(t, got))
		})
	}
}

func TestFilterHugeCutoffKeepsEverything(t *testing.T) {
	r := builtin(t)

	got, err := r.Compute("Filter", []types.Value{filterFixture(t), types.Text("max"), types.Text("top"), types.Float(1e300)})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, filterTags(t, got))

	empty := types.NewStreamCollection("c", types.Project{}, nil)
	got, err = r.Compute("Filter", []types.Value{empty, types.Text("max"), types.Text("bottom"), types.Float(1e300)})
	require.NoError(t, err)
	assert.Empty(t, filterTags(t, got))
}

func TestFilterRejectsBadArguments(t *testing.T) {
	r := builtin(t)
	sc := filterFixture(t)

	_, err := r.Compute("Filter", []types.Value{sc, types.Text("median"), types.Text("top"), types.Int(1)})
	assert.Error(t, err)
	_, err = r.Compute("Filter", []types.Value{sc, types.Text("max"), types.Text("middle"), types.Int(1)})
	assert.Error(t, err)
	_, err = r.Compute("Filter", []types.Value{sc, types.Text("max"), types.Text("top"), types.Float(1.5)})
	assert.Error(t, err)
	_, err = r.Compute("Filter", []types.Value{types.Int(1), types.Text("max"), types.Text("top"), types.Int(1)})
	assert.ErrorIs(t, err, ErrParameterType)
}
