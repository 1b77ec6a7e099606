package logsvc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/fpkuniversity/scorm-runtime/core"
)

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newConsoleLogger(zapcore.AddSync(&buf), "info")

	l.Debug("hidden")
	l.Error("commit failed",
		errors.New("connection refused"),
		map[string]interface{}{"session": "e1_s1", "event": "terminate"},
		core.Learner{ID: "learner-1"},
	)
	out := buf.String()

	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "commit failed")
	assert.Contains(t, out, `"error": "connection refused`)
	assert.Contains(t, out, `"session": "e1_s1"`)
	assert.Contains(t, out, `"learner": "learner-1"`)
	assert.True(t, strings.Index(out, `"event"`) < strings.Index(out, `"session"`), "map keys are sorted")

	buf.Reset()
	l.SetLevel("debug")
	l.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	buf.Reset()
	l.SetLevel("nonsense")
	l.Debug("hidden again")
	assert.Empty(t, buf.String())
}

func TestKeysAndValues(t *testing.T) {
	tests := []struct {
		name string
		args []interface{}
		want []interface{}
	}{
		{name: "empty", args: nil, want: []interface{}{}},
		{name: "nil skipped", args: []interface{}{nil}, want: []interface{}{}},
		{name: "learner", args: []interface{}{core.Learner{ID: "u1"}}, want: []interface{}{"learner", "u1"}},
		{name: "loose values", args: []interface{}{42, "x"}, want: []interface{}{"arg1", 42, "arg2", "x"}},
		{
			name: "map",
			args: []interface{}{map[string]interface{}{"b": 2, "a": 1}},
			want: []interface{}{"a", 1, "b", 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keysAndValues(tt.args))
		})
	}
}
