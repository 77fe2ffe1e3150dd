package lightgbm

import (
	"time"

	"github.com/YuminosukeSato/survival/pkg/log"
)

// Evaluation result keys.
const (
	TrainingLossKey   = "training_loss"
	ValidationLossKey = "valid_loss"
)

// CallbackEnv contains the environment for callbacks
type CallbackEnv struct {
	Model        *Model
	Iteration    int
	BeginTime    time.Time
	EndTime      time.Time
	EvalResults  map[string]float64
	StopTraining bool
}

// Callback is a function that can be called during training
type Callback func(env *CallbackEnv) error

// LogEvaluation logs evaluation results every period iterations.
func LogEvaluation(logger log.Logger, period int) Callback {
	if period <= 0 {
		period = 1
	}
	return func(env *CallbackEnv) error {
		if env.Iteration%period != 0 || len(env.EvalResults) == 0 {
			return nil
		}
		fields := []any{log.IterationKey, env.Iteration}
		for _, name := range []string{TrainingLossKey, ValidationLossKey} {
			if v, ok := env.EvalResults[name]; ok {
				fields = append(fields, name, v)
			}
		}
		logger.Debug("Evaluation", fields...)
		return nil
	}
}

// RecordEvaluation appends every evaluation result to history.
func RecordEvaluation(history map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		for name, value := range env.EvalResults {
			history[name] = append(history[name], value)
		}
		return nil
	}
}

// TimeLimit stops training once maxDuration has elapsed since the first
// call.
func TimeLimit(maxDuration time.Duration) Callback {
	var start time.Time
	return func(env *CallbackEnv) error {
		if start.IsZero() {
			start = time.Now()
		}
		if time.Since(start) > maxDuration {
			log.GetLoggerWithName("lightgbm.callbacks").Info("Time limit reached",
				log.IterationKey, env.Iteration)
			env.StopTraining = true
		}
		return nil
	}
}

// CallbackList manages multiple callbacks
type CallbackList struct {
	callbacks []Callback
	env       *CallbackEnv
}

// NewCallbackList creates a new callback list
func NewCallbackList(callbacks ...Callback) *CallbackList {
	return &CallbackList{
		callbacks: callbacks,
		env: &CallbackEnv{
			EvalResults: make(map[string]float64),
		},
	}
}

// BeforeIteration calls callbacks before each iteration
func (cl *CallbackList) BeforeIteration(iteration int, model *Model) error {
	cl.env.Iteration = iteration
	cl.env.Model = model
	cl.env.BeginTime = time.Now()
	cl.env.EvalResults = map[string]float64{}

	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
		if cl.env.StopTraining {
			break
		}
	}
	return nil
}

// AfterIteration calls callbacks after each iteration
func (cl *CallbackList) AfterIteration(iteration int, model *Model, evalResults map[string]float64) error {
	cl.env.Iteration = iteration
	cl.env.Model = model
	cl.env.EndTime = time.Now()
	cl.env.EvalResults = evalResults

	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
	}
	return nil
}

// ShouldStop returns whether training should stop
func (cl *CallbackList) ShouldStop() bool {
	return cl.env.StopTraining
}
