package log

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/YuminosukeSato/survival/pkg/errors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Panics(t, func() { ToLogLevel("nope") })
}

func TestTestLoggerCapturesFields(t *testing.T) {
	logger, buffer := NewTestLogger(LevelDebug)

	logger.Debug("debug message", "key1", "value1", "number", 42)
	logger.Info("info message", OperationKey, OperationFit)
	logger.Error("error message", fmt.Errorf("boom"), FoldKey, 3)

	require.NotEmpty(t, buffer.String())
	assert.True(t, logger.ContainsMessage("debug message"))
	assert.True(t, logger.ContainsField("key1", "value1"))
	assert.True(t, logger.ContainsField("number", 42.0))
	assert.True(t, logger.ContainsField(OperationKey, OperationFit))
	assert.True(t, logger.ContainsField(ErrAttrKey, "boom"))
	assert.True(t, logger.ContainsField(FoldKey, 3.0))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	logger.Clear()
	assert.Empty(t, buffer.String())
}

func TestTestLoggerLevelFilter(t *testing.T) {
	logger, _ := NewTestLogger(LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown")

	assert.False(t, logger.ContainsMessage("hidden"))
	assert.True(t, logger.ContainsMessage("shown"))
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), LevelError))
}

func TestTestLoggerWithSharesBuffer(t *testing.T) {
	base, _ := NewTestLogger(LevelInfo)
	child := base.With(ComponentKey, "features", StepKey, "deck")
	child.Info("step done")

	assert.True(t, base.ContainsField(ComponentKey, "features"))
	assert.True(t, base.ContainsField(StepKey, "deck"))
}

func TestTestLoggerConcurrent(t *testing.T) {
	base, _ := NewTestLogger(LevelInfo)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(fold int) {
			defer wg.Done()
			base.With(FoldKey, fold).Info("fold finished")
		}(i)
	}
	wg.Wait()

	entries, err := base.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}

func TestZerologProviderWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo)

	p.GetLoggerWithName("lightgbm.cv").With(FoldKey, 1).Info("fold finished", AUCKey, 0.9)
	p.GetLogger().Debug("suppressed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "fold finished", rec["message"])
	assert.Equal(t, "lightgbm.cv", rec[ComponentKey])
	assert.Equal(t, 1.0, rec[FoldKey])
	assert.Equal(t, 0.9, rec[AUCKey])
	assert.Equal(t, "info", rec["level"])

	p.SetLevel(LevelDebug)
	assert.True(t, p.GetLogger().Enabled(context.Background(), LevelDebug))
}

func TestZerologProviderErrorDetail(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelDebug)

	err := errors.Wrap(perrors.NewMissingColumnError("assemble", "Deck"), "building matrix")
	p.GetLogger().Error("assembly failed", err)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Contains(t, rec[ErrAttrKey], "Deck")
	detail, ok := rec[ErrAttrKey+"_detail"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Deck", detail["column"])
}

func TestSetProviderRoutesWarnings(t *testing.T) {
	provider, _ := NewTestLoggerProvider(LevelDebug)
	SetProvider(provider)
	t.Cleanup(func() { SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo)) })

	perrors.Warn(perrors.NewUndefinedMetricWarning("auc", "only one class present", 0.5))

	assert.True(t, provider.Logger().ContainsMessage("auc"))
	assert.True(t, provider.Logger().ContainsField(ComponentKey, "warnings"))

	GetLoggerWithName("pipeline").Info("hello")
	assert.True(t, provider.Logger().ContainsField(ComponentKey, "pipeline"))
}
