package lightgbm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/survival/pkg/log"
)

func TestCallbacks(t *testing.T) {
	X, y := makeSignal(120, 31)

	t.Run("record and log evaluation", func(t *testing.T) {
		logger, buf := log.NewTestLogger(log.LevelDebug)
		history := make(map[string][]float64)

		params := smallParams()
		params.NumIterations = 12
		trainer := NewTrainer(params).WithCallbacks(RecordEvaluation(history), LogEvaluation(logger, 5))
		require.NoError(t, trainer.Fit(X, y))

		assert.Len(t, history[TrainingLossKey], 12)
		assert.Equal(t, trainer.EvalHistory()[TrainingLossKey], history[TrainingLossKey])
		entries, err := logger.GetLogEntries()
		require.NoError(t, err)
		assert.Len(t, entries, 3)
		assert.Contains(t, buf.String(), TrainingLossKey)
	})

	t.Run("time limit stops training", func(t *testing.T) {
		params := smallParams()
		params.NumIterations = 1000
		trainer := NewTrainer(params).WithCallbacks(TimeLimit(time.Nanosecond))
		require.NoError(t, trainer.Fit(X, y))
		assert.Less(t, trainer.GetModel().NumTrees(), 1000)
	})
}

func TestEarlyStopping(t *testing.T) {
	es := NewEarlyStopping(2, "binary_logloss")
	assert.True(t, es.Minimize)
	assert.False(t, es.Update(0, 0.6))
	assert.False(t, es.Update(1, 0.5))
	assert.False(t, es.Update(2, 0.55))
	assert.True(t, es.Update(3, 0.52))
	assert.Equal(t, 1, es.BestIteration)
	assert.True(t, es.ShouldStop())

	disabled := NewEarlyStopping(0, "binary_logloss")
	assert.False(t, disabled.Update(0, 1))
	assert.Equal(t, -1, disabled.BestIteration)

	assert.False(t, NewEarlyStopping(3, "auc").Minimize)
}
