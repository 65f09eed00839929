package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace": TRACE, "DEBUG": DEBUG, "": INFO, " info ": INFO, "warning": WARN, "Error": ERROR,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestWriterLogger_Threshold(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("guard", &buf, WARN)

	l.Info("скрыто %d", 1)
	l.Warn("видно %d", 2)
	l.Error("тоже видно")

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "[WARN] [guard] видно 2")
	assert.Contains(t, out, "[ERROR] [guard] тоже видно")

	buf.Reset()
	l.SetLevels(TRACE, ERROR)
	l.Trace("trace")
	assert.Contains(t, buf.String(), "[TRACE] [guard] trace")
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Info("ничего") })
}

func TestNewLogger_WritesFile(t *testing.T) {
	old := LogDir
	LogDir = t.TempDir()
	defer func() { LogDir = old }()

	l, err := NewLogger("storage")
	require.NoError(t, err)
	l.SetLevels(ERROR, DEBUG)
	l.Debug("в файл")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "повторный Close безопасен")

	files, err := filepath.Glob(filepath.Join(LogDir, "storage_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "[DEBUG] [storage] в файл"))
}

func TestLoggerManager_ReusesComponent(t *testing.T) {
	old := LogDir
	LogDir = t.TempDir()
	defer func() { LogDir = old }()

	lm := &LoggerManager{loggers: make(map[string]*Logger), level: WARN}
	a, err := lm.GetLogger("plugin")
	require.NoError(t, err)
	b, err := lm.GetLogger("plugin")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, WARN, a.minConsoleLevel)

	lm.SetLevel(DEBUG)
	assert.Equal(t, DEBUG, a.minConsoleLevel, "уровень применён к уже созданному логгеру")
	assert.Equal(t, DEBUG, lm.MustGetLogger("rest").minConsoleLevel, "и к новому")
	require.NoError(t, lm.CloseAll())
}
