package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrayd/pkg/types"
)

func ok(id, label string, conf float64) types.ModelResult {
	return types.ModelResult{ModelID: id, Label: label, Confidence: conf, OK: true}
}

func failed(id string) types.ModelResult {
	return types.ModelResult{ModelID: id, OK: false, Error: "timed out"}
}

func TestAggregateMajorityWins(t *testing.T) {
	// 4 models say COVID (90, 88, 95, 70), 2 say Normal (60, 55)
	results := []types.ModelResult{
		ok("m1", "COVID", 90),
		ok("m2", "COVID", 88),
		ok("m3", "Normal", 60),
		ok("m4", "COVID", 95),
		ok("m5", "Normal", 55),
		ok("m6", "COVID", 70),
	}
	cons, err := aggregate(results)
	require.NoError(t, err)
	assert.Equal(t, "COVID", cons.Diagnosis)
	assert.Equal(t, 4, cons.AgreementCount)
	assert.Equal(t, 85.75, cons.Confidence)
	assert.Equal(t, "m4", cons.BestModelID)
	assert.Len(t, cons.Results, 6)
}

func TestAggregateExcludesFailures(t *testing.T) {
	results := []types.ModelResult{
		failed("m1"),
		ok("m2", "Normal", 80),
		failed("m3"),
	}
	cons, err := aggregate(results)
	require.NoError(t, err)
	assert.Equal(t, "Normal", cons.Diagnosis)
	assert.Equal(t, 1, cons.AgreementCount)
	assert.Equal(t, "m2", cons.BestModelID)
	// full breakdown retained, failures included
	assert.Len(t, cons.Results, 3)
}

func TestAggregateTieBrokenBySummedConfidence(t *testing.T) {
	results := []types.ModelResult{
		ok("m1", "COVID", 60),
		ok("m2", "Normal", 90),
		ok("m3", "COVID", 61),
		ok("m4", "Normal", 90),
	}
	cons, err := aggregate(results)
	require.NoError(t, err)
	// 2 vs 2, but Normal sums 180 > COVID's 121
	assert.Equal(t, "Normal", cons.Diagnosis)
	assert.Equal(t, 2, cons.AgreementCount)
	assert.Equal(t, 90.0, cons.Confidence)
}

func TestAggregateTieBrokenByRegistryOrder(t *testing.T) {
	// 3 vs 3 with equal summed confidence; the group whose
	// earliest member comes first in registry order wins.
	results := []types.ModelResult{
		ok("m1", "Pneumonia", 70),
		ok("m2", "COVID", 80),
		ok("m3", "Pneumonia", 80),
		ok("m4", "COVID", 70),
		ok("m5", "Pneumonia", 60),
		ok("m6", "COVID", 60),
	}
	cons, err := aggregate(results)
	require.NoError(t, err)
	assert.Equal(t, "Pneumonia", cons.Diagnosis)
	assert.Equal(t, 3, cons.AgreementCount)
	// deterministic across repeated runs
	for i := 0; i < 50; i++ {
		again, err := aggregate(results)
		require.NoError(t, err)
		assert.Equal(t, cons.Diagnosis, again.Diagnosis)
		assert.Equal(t, cons.BestModelID, again.BestModelID)
	}
}

func TestAggregateBestModelTieGoesToEarlierModel(t *testing.T) {
	results := []types.ModelResult{
		ok("m1", "COVID", 90),
		ok("m2", "COVID", 90),
	}
	cons, err := aggregate(results)
	require.NoError(t, err)
	assert.Equal(t, "m1", cons.BestModelID)
}

func TestAggregateAllFailed(t *testing.T) {
	_, err := aggregate([]types.ModelResult{failed("m1"), failed("m2")})
	require.Error(t, err)
	assert.True(t, IsInsufficientModels(err))
}

func TestAgreementNeverExceedsSuccesses(t *testing.T) {
	results := []types.ModelResult{
		ok("m1", "COVID", 50),
		ok("m2", "COVID", 50),
		failed("m3"),
	}
	cons, err := aggregate(results)
	require.NoError(t, err)
	successes := 0
	matching := 0
	for _, r := range cons.Results {
		if r.OK {
			successes++
			if r.Label == cons.Diagnosis {
				matching++
			}
		}
	}
	assert.LessOrEqual(t, cons.AgreementCount, successes)
	assert.Equal(t, matching, cons.AgreementCount)
}
