package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-blog-client/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesToRotatingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "client.log")
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })

	logger, closer := logging.Setup(logging.Options{Level: "debug", Env: "PROD", File: file})
	logger.Debug().Str("component", "test").Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), `"component":"test"`)
	require.Contains(t, string(data), `"message":"hello"`)
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}

func TestSetupDefaultsToInfo(t *testing.T) {
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })

	logger, closer := logging.Setup(logging.Options{Level: "chatty"})
	defer closer.Close()
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
