package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		"WARNING": zerolog.WarnLevel,
		"err":     zerolog.ErrorLevel,
		" trace ": zerolog.TraceLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, JSONFormat, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, ConsoleFormat, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestNewJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Config{
		Level:   zerolog.InfoLevel,
		Format:  JSONFormat,
		Outputs: []io.Writer{&buf},
		Service: "gosession",
	})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug().Msg("hidden")
	logger.Info().Str("identity", "john").Msg("issued token")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "issued token", line["message"])
	assert.Equal(t, "john", line["identity"])
	assert.Equal(t, "gosession", line["service"])
	assert.Contains(t, line, "time")
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gosession.log")
	logger, closer, err := New(Config{
		Level: zerolog.InfoLevel,
		File:  DefaultFileConfig(path),
	})
	require.NoError(t, err)

	logger.Warn().Msg("to file")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"message":"to file"`)
}
