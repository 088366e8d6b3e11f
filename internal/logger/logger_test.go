package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func jsonCore(buf *bytes.Buffer) zapcore.Core {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}

	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(buf),
		zapcore.DebugLevel,
	)
}

func TestProperty_LayerLogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("layer logs are JSON with level, message and layer", prop.ForAll(
		func(message string, layer string, level string) bool {
			var buf bytes.Buffer
			l := Layer(zap.New(jsonCore(&buf)), layer)

			switch level {
			case "debug":
				l.Debug(message)
			case "warn":
				l.Warn(message)
			case "error":
				l.Error(message)
			default:
				l.Info(message)
			}

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Logf("FAIL: log line is not JSON: %v", err)
				return false
			}

			return entry["level"] == level &&
				entry["message"] == message &&
				entry["layer"] == layer &&
				entry["logger"] == layer
		},
		gen.AnyString(),
		gen.OneConstOf("catalog", "nft", "ai", "bot"),
		gen.OneConstOf("debug", "info", "warn", "error"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_SwallowedErrorsKeepContext(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("warnings carry the error field", prop.ForAll(
		func(message string, errorMsg string) bool {
			core, logs := observer.New(zapcore.DebugLevel)
			l := Layer(zap.New(core), "store")

			l.Warn(message, zap.String("error", errorMsg))

			entries := logs.All()
			if len(entries) != 1 {
				return false
			}
			fields := entries[0].ContextMap()
			return fields["error"] == errorMsg && fields["layer"] == "store"
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNew(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		l, err := New(env, "")
		if err != nil || l == nil {
			t.Fatalf("New(%q) failed: %v", env, err)
		}
	}

	l, err := New("production", "warn")
	if err != nil {
		t.Fatalf("New with level failed: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}

	if _, err := New("development", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
