package slave

import (
	"testing"
	"time"

	"github.com/arloliu/go-slink/frame"
	"github.com/arloliu/go-slink/logger"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig()
	require.NoError(err)
	require.Zero(cfg.PollInterval())
	require.Equal(frame.DefaultMaxFrameSize, cfg.MaxFrameSize())
	require.NotNil(cfg.GetLogger())
}

func TestNewConfig_Options(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr bool
	}{
		{name: "poll disabled", opt: WithPollInterval(0)},
		{name: "poll min", opt: WithPollInterval(MinPollInterval)},
		{name: "poll too short", opt: WithPollInterval(time.Millisecond), wantErr: true},
		{name: "poll too long", opt: WithPollInterval(2 * MaxPollInterval), wantErr: true},
		{name: "frame size", opt: WithMaxFrameSize(256)},
		{name: "frame size too small", opt: WithMaxFrameSize(MinFrameSize - 1), wantErr: true},
		{name: "frame size too large", opt: WithMaxFrameSize(MaxFrameSize + 1), wantErr: true},
		{name: "nil logger", opt: WithLogger(nil), wantErr: true},
		{name: "mock logger", opt: WithLogger(logger.NewMockLogger())},
		{name: "reset callback", opt: WithOnReset(func() {})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.opt)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
