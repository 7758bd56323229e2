package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jwebster45206/story-forge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "generator.log")
	cfg := &config.Config{
		Environment:    "development",
		LogLevel:       slog.LevelInfo,
		LogFile:        logPath,
		LogFileEnabled: true,
		LogMaxSizeMB:   1,
	}

	var console bytes.Buffer
	l := SetupWithWriter(cfg, &console)
	t.Cleanup(func() { _ = Close() })

	Generate(l, "冒険: 成功1_A", "area", "A")
	Delete(l, "ログ: 成功1_A")
	l.Debug("hidden")

	out := console.String()
	assert.Contains(t, out, TagGenerate+" 冒険: 成功1_A")
	assert.Contains(t, out, "area=A")
	assert.Contains(t, out, TagDelete)
	assert.NotContains(t, out, "hidden")

	require.NoError(t, Close())
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), TagGenerate+" 冒険: 成功1_A")
}

func TestSetup_ProductionUsesJSON(t *testing.T) {
	cfg := &config.Config{Environment: "production", LogLevel: slog.LevelInfo}
	var console bytes.Buffer
	l := SetupWithWriter(cfg, &console)

	Warning(l, "未完了: A")
	line := strings.TrimSpace(console.String())
	assert.True(t, strings.HasPrefix(line, "{"), "expected JSON output, got %q", line)
	assert.Contains(t, line, `"level":"WARN"`)
}

func TestExit_ClosesLogFile(t *testing.T) {
	cfg := &config.Config{
		Environment:    "development",
		LogLevel:       slog.LevelInfo,
		LogFile:        filepath.Join(t.TempDir(), "generator.log"),
		LogFileEnabled: true,
		LogMaxSizeMB:   1,
	}
	SetupWithWriter(cfg, &bytes.Buffer{})
	t.Cleanup(func() { _ = Close() })

	var code int
	var openAtExit bool
	osExit = func(c int) {
		code = c
		openAtExit = fileWriter != nil
	}
	t.Cleanup(func() { osExit = os.Exit })

	Exit(1)
	assert.Equal(t, 1, code)
	assert.False(t, openAtExit, "log file should be closed before exit")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	Error(WithError(l, errors.New("boom")), "リトライ回数上限に達しました")
	assert.Contains(t, buf.String(), "error=boom")
	assert.Contains(t, buf.String(), TagError)
}

func TestMultiHandler_Levels(t *testing.T) {
	var infoBuf, errBuf bytes.Buffer
	h := newMultiHandler(
		slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&errBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	l := slog.New(h).With("component", "test")
	l.Info("only info")
	l.Error("both")

	assert.Contains(t, infoBuf.String(), "only info")
	assert.Contains(t, infoBuf.String(), "component=test")
	assert.NotContains(t, errBuf.String(), "only info")
	assert.Contains(t, errBuf.String(), "both")
}
