package logging

import (
	"encoding/json"
	"testing"

	"go.viam.com/test"
)

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"Info", INFO},
		{"WARN", WARN},
		{"warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown log level")
}

func TestLevelJSON(t *testing.T) {
	var cfg struct {
		Level Level `json:"level"`
	}
	test.That(t, json.Unmarshal([]byte(`{"level":"warn"}`), &cfg), test.ShouldBeNil)
	test.That(t, cfg.Level, test.ShouldEqual, WARN)

	out, err := json.Marshal(cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `{"level":"Warn"}`)
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Debugw("built", "nodes", 3)
	test.That(t, logs.FilterMessage("built").Len(), test.ShouldEqual, 1)
	test.That(t, logs.All()[0].ContextMap()["nodes"], test.ShouldEqual, int64(3))

	logger.SetLevel(WARN)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)
	logger.Info("dropped")
	test.That(t, logs.FilterMessage("dropped").Len(), test.ShouldEqual, 0)
	logger.Warn("kept")
	test.That(t, logs.FilterMessage("kept").Len(), test.ShouldEqual, 1)
}

func TestSublogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := logger.Sublogger("kdtree")
	sub.Infow("hello")
	entries := logs.FilterMessage("hello").All()
	test.That(t, len(entries), test.ShouldEqual, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "kdtree")

	sub.SetLevel(ERROR)
	sub.Warn("quiet")
	test.That(t, logs.FilterMessage("quiet").Len(), test.ShouldEqual, 0)
	logger.Warn("loud")
	test.That(t, logs.FilterMessage("loud").Len(), test.ShouldEqual, 1)
}

func TestNewLoggerConfig(t *testing.T) {
	cfg := NewLoggerConfig()
	test.That(t, cfg.Encoding, test.ShouldEqual, "console")
	test.That(t, cfg.Level.Level(), test.ShouldEqual, INFO.AsZap())
	test.That(t, cfg.DisableStacktrace, test.ShouldBeTrue)
	test.That(t, cfg.Development, test.ShouldBeFalse)
	test.That(t, cfg.EncoderConfig.TimeKey, test.ShouldEqual, "ts")
	test.That(t, cfg.EncoderConfig.MessageKey, test.ShouldEqual, "msg")
	test.That(t, cfg.OutputPaths, test.ShouldResemble, []string{"stderr"})

	logger, err := cfg.Build()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logger.Core().Enabled(DEBUG.AsZap()), test.ShouldBeFalse)
}
