package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct{ events []axiom.Event }

func (c *captureSink) Send(ev axiom.Event) { c.events = append(c.events, ev) }

func TestAxiomWriter(t *testing.T) {
	sink := &captureSink{}
	w := &axiomWriter{sink: sink, service: "pisoprint"}

	_, err := w.Write([]byte(`{"level":"debug","message":"noise"}`))
	require.NoError(t, err)
	assert.Empty(t, sink.events)

	_, err = w.Write([]byte(`{"level":"warn","message":"gap"}`))
	require.NoError(t, err)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "pisoprint", sink.events[0]["service"])
	assert.Contains(t, sink.events[0], ingest.TimestampField)

	n, err := w.Write([]byte("not json"))
	require.NoError(t, err)
	assert.Equal(t, len("not json"), n)
	require.Len(t, sink.events, 2)
	assert.Equal(t, "not json", sink.events[1]["message"])
}

func TestWriters_FileAndStdout(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "app.log")
	var stdout bytes.Buffer

	out, err := writers(Options{File: file, MaxSizeMB: 1}, &stdout)
	require.NoError(t, err)

	l := zerolog.New(out).With().Str("service", "pisoprint").Logger()
	l.Info().Str("base_name", "doc").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "doc", line["base_name"])

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestInit_SetsLevelAndService(t *testing.T) {
	prev := log.Logger
	defer func() { log.Logger = prev }()

	require.NoError(t, Init(Options{Service: "pisoprint", Level: "warn"}))
	assert.Equal(t, zerolog.WarnLevel, log.Logger.GetLevel())

	require.NoError(t, Init(Options{Level: "bogus"}))
	assert.Equal(t, zerolog.InfoLevel, log.Logger.GetLevel())
}
