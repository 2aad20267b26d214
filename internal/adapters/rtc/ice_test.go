package rtc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/danmaku/internal/config"
)

func TestICEServers(t *testing.T) {
	got := ICEServers([]config.ICEServer{
		{URLs: []string{"stun:stun.example.org:3478", "not a url"}},
		{URLs: []string{"turn:turn.example.org:3478?transport=udp"}, Username: "u", Credential: "p"},
		{URLs: []string{"::::"}},
	})
	require.Len(t, got, 2)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, got[0].URLs)
	assert.Equal(t, "u", got[1].Username)
	assert.Equal(t, "p", got[1].Credential)

	b, err := json.Marshal(got[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"urls":["stun:stun.example.org:3478"]`)
}

func TestICEServersDefault(t *testing.T) {
	got := ICEServers(nil)
	require.Len(t, got, 1)
	assert.Equal(t, []string{defaultSTUN}, got[0].URLs)
}
