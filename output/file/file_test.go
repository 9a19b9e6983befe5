package file

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llhlol/IWR1443-data-collection/config"
)

func testConfig(dir string) config.FileOutputConfig {
	return config.FileOutputConfig{
		Directory:     dir,
		FilePrefix:    "radar",
		Append:        true,
		BufferSize:    4,
		FlushInterval: 50 * time.Millisecond,
	}
}

func TestOutput_WritesRecordsAsLines(t *testing.T) {
	dir := t.TempDir()
	out := NewOutput(testConfig(dir), nil)
	require.NoError(t, out.Initialize())
	require.NoError(t, out.Start())

	out.Write([]byte(`{"Header": {"frameNumber": 1}}`))
	out.Write([]byte(`{"Header": {"frameNumber": 2}}`))
	require.NoError(t, out.Stop(time.Second))

	raw, err := os.ReadFile(out.Path())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"Header": {"frameNumber": 1}}`, lines[0])
	assert.Equal(t, `{"Header": {"frameNumber": 2}}`, lines[1])
}

func TestOutput_FlushesWhenBufferFills(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.FlushInterval = time.Hour // only the count trigger may fire
	out := NewOutput(cfg, nil)
	require.NoError(t, out.Initialize())
	require.NoError(t, out.Start())
	defer out.Stop(time.Second)

	for i := 0; i < cfg.BufferSize; i++ {
		out.Write([]byte(`{"n": 1}`))
	}

	raw, err := os.ReadFile(out.Path())
	require.NoError(t, err)
	assert.Equal(t, cfg.BufferSize, strings.Count(string(raw), "\n"))
}

func TestOutput_PeriodicFlush(t *testing.T) {
	dir := t.TempDir()
	out := NewOutput(testConfig(dir), nil)
	require.NoError(t, out.Initialize())
	require.NoError(t, out.Start())
	defer out.Stop(time.Second)

	out.Write([]byte(`{"n": 1}`))

	require.Eventually(t, func() bool {
		raw, err := os.ReadFile(out.Path())
		return err == nil && strings.Contains(string(raw), `{"n": 1}`)
	}, 2*time.Second, 20*time.Millisecond, "interval flush must land single records")
}

func TestOutput_AppendModePreservesExisting(t *testing.T) {
	dir := t.TempDir()

	out := NewOutput(testConfig(dir), nil)
	require.NoError(t, out.Initialize())
	require.NoError(t, out.Start())
	out.Write([]byte(`{"run": 1}`))
	require.NoError(t, out.Stop(time.Second))

	out2 := NewOutput(testConfig(dir), nil)
	require.NoError(t, out2.Initialize())
	require.NoError(t, out2.Start())
	out2.Write([]byte(`{"run": 2}`))
	require.NoError(t, out2.Stop(time.Second))

	raw, err := os.ReadFile(out2.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `{"run": 1}`)
	assert.Contains(t, string(raw), `{"run": 2}`)
}

func TestOutput_TruncateMode(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Append = false

	out := NewOutput(cfg, nil)
	require.NoError(t, out.Initialize())
	require.NoError(t, out.Start())
	out.Write([]byte(`{"run": 1}`))
	require.NoError(t, out.Stop(time.Second))

	out2 := NewOutput(cfg, nil)
	require.NoError(t, out2.Initialize())
	require.NoError(t, out2.Start())
	out2.Write([]byte(`{"run": 2}`))
	require.NoError(t, out2.Stop(time.Second))

	raw, err := os.ReadFile(out2.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `{"run": 1}`)
}

func TestOutput_InitializeRequiresDirectory(t *testing.T) {
	out := NewOutput(config.FileOutputConfig{}, nil)
	require.Error(t, out.Initialize())
}

func TestOutput_DoubleStartRejected(t *testing.T) {
	out := NewOutput(testConfig(t.TempDir()), nil)
	require.NoError(t, out.Initialize())
	require.NoError(t, out.Start())
	defer out.Stop(time.Second)

	require.Error(t, out.Start())
}

func TestOutput_WriteAfterStopIsIgnored(t *testing.T) {
	out := NewOutput(testConfig(t.TempDir()), nil)
	require.NoError(t, out.Initialize())
	require.NoError(t, out.Start())
	require.NoError(t, out.Stop(time.Second))

	out.Write([]byte(`{"late": true}`)) // must not panic

	raw, err := os.ReadFile(out.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "late")
}
