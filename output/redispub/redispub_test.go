package redispub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llhlol/IWR1443-data-collection/config"
	"github.com/llhlol/IWR1443-data-collection/errors"
)

func TestNewOutput_Defaults(t *testing.T) {
	out := NewOutput(config.RedisOutputConfig{
		Addr:    "localhost:6379",
		Channel: "radar:frames",
	}, nil)

	assert.Equal(t, "radar:frames", out.channel)
	assert.Equal(t, "iwr1443", out.keyPrefix, "key prefix falls back to the device name")
	assert.NotNil(t, out.client)
}

func TestNewOutput_CustomPrefix(t *testing.T) {
	out := NewOutput(config.RedisOutputConfig{
		Addr:      "localhost:6379",
		Channel:   "radar:frames",
		KeyPrefix: "lab42",
	}, nil)

	assert.Equal(t, "lab42", out.keyPrefix)
}

func TestStart_UnreachableServerIsTransient(t *testing.T) {
	out := NewOutput(config.RedisOutputConfig{
		Addr:    "127.0.0.1:1", // nothing listens here
		Channel: "radar:frames",
	}, nil)

	err := out.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err),
		"an unreachable Redis should be retryable, not fatal")
	require.NoError(t, out.Stop())
}

func TestWrite_FailureIsCountedNotFatal(t *testing.T) {
	out := NewOutput(config.RedisOutputConfig{
		Addr:    "127.0.0.1:1",
		Channel: "radar:frames",
	}, nil)
	defer out.Stop()

	out.Write([]byte(`{"Header": {}}`)) // must not panic

	assert.EqualValues(t, 0, out.published.Load())
	assert.EqualValues(t, 1, out.pubErrors.Load())
}
