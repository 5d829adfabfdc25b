package markov

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPath_ExtensionAndKeywordRules(t *testing.T) {
	assert.Equal(t, StateCode, ClassifyPath("/src/main.cpp"))
	assert.Equal(t, StateDocument, ClassifyPath("/readme.md"))
	assert.Equal(t, StateConfig, ClassifyPath("/settings.json"))
	assert.Equal(t, StateScript, ClassifyPath("/tools/build.py"))
	assert.Equal(t, StateTest, ClassifyPath("/a_test.cpp"))
	assert.Equal(t, StateDocument, ClassifyPath("/doc/guide.rst"))
	assert.Equal(t, StateMisc, ClassifyPath("/data.bin"))
}

func TestUntrainedHMM_PredictsNothing(t *testing.T) {
	h := New()
	preds := h.PredictNext([]string{"/a.cpp"}, 5)
	assert.Empty(t, preds)
}

func TestTrain_RowsSumToOneOrAllZero(t *testing.T) {
	h := New()
	h.Train([][]string{
		{"/a.cpp", "/a.hpp", "/a_test.cpp"},
		{"/a.cpp", "/a.hpp", "/a_test.cpp"},
	})

	for _, s := range allStates {
		var rowSum float64
		for _, p := range h.a[s] {
			rowSum += p
		}
		assert.True(t, rowSum == 0 || (rowSum > 1-1e-9 && rowSum < 1+1e-9), "A row for %s sums to %v", s, rowSum)

		var emitSum float64
		for _, p := range h.b[s] {
			emitSum += p
		}
		assert.True(t, emitSum == 0 || (emitSum > 1-1e-9 && emitSum < 1+1e-9), "B row for %s sums to %v", s, emitSum)
	}
}

func TestPredictNext_TrainedSequenceRepeatedTenTimes(t *testing.T) {
	h := New()
	seq := []string{"/a.cpp", "/a.hpp", "/a_test.cpp"}
	var sequences [][]string
	for i := 0; i < 10; i++ {
		sequences = append(sequences, seq)
	}
	h.Train(sequences)

	preds := h.PredictNext([]string{"/a.cpp", "/a.hpp"}, 1)
	assert.NotEmpty(t, preds)
	assert.Equal(t, "/a_test.cpp", preds[0].Path)
}

func TestClassify_FallsBackToArgmaxPosteriorForUnseenPath(t *testing.T) {
	h := New()
	h.Train([][]string{{"/a.cpp", "/a.hpp"}})
	state := h.Classify("/never-seen.xyz", []string{"/a.cpp"})
	assert.Contains(t, allStates, state)
}
