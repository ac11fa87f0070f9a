package logutil

import (
	"testing"

	"github.com/grindlemire/go-tagquery/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	type tc struct {
		cfg     config.Log
		wantErr bool
	}

	tcs := map[string]tc{
		"json_info":      {cfg: config.Log{Level: "info", Format: "json"}},
		"console_debug":  {cfg: config.Log{Level: "debug", Format: "console"}},
		"default_format": {cfg: config.Log{Level: "warn"}},
		"bad_level":      {cfg: config.Log{Level: "loud"}, wantErr: true},
		"bad_format":     {cfg: config.Log{Level: "info", Format: "xml"}, wantErr: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			logger, err := New(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

func TestLevel(t *testing.T) {
	logger, err := New(config.Log{Level: "warn", Format: "json"})
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zap.InfoLevel))
	require.True(t, logger.Core().Enabled(zap.WarnLevel))
}
