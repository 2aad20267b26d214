package live

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewSigner(Config{
		PushKey:          "push",
		PullKey:          "pull",
		PushServer:       "rtmp://push/app/",
		PullServerRTMP:   "http://pull/app/",
		PullServerWebRTC: "webrtc://pull/app/",
	})
	s.now = func() time.Time { return now }

	tests := []struct {
		name   string
		ep     Endpoint
		server string
		prefix string
		key    string
		ttl    time.Duration
	}{
		{name: "push", ep: s.Push("ABC123"), server: "rtmp://push/app/", prefix: "ABC123?", key: "push", ttl: PushTTL},
		{name: "pull webrtc", ep: s.Pull("ABC123", StreamWebRTC), server: "webrtc://pull/app/", prefix: "ABC123?", key: "pull", ttl: PullTTL},
		{name: "pull flv", ep: s.Pull("ABC123", StreamRTMP), server: "http://pull/app/", prefix: "ABC123.flv?", key: "pull", ttl: PullTTL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.server, tt.ep.Server)
			require.True(t, strings.HasPrefix(tt.ep.Key, tt.prefix), tt.ep.Key)

			q, err := url.ParseQuery(tt.ep.Key[strings.Index(tt.ep.Key, "?")+1:])
			require.NoError(t, err)
			txTime := q.Get("txTime")
			assert.Equal(t, strings.ToUpper(txTime), txTime)
			exp, err := strconv.ParseInt(txTime, 16, 64)
			require.NoError(t, err)
			assert.Equal(t, now.Add(tt.ttl).Unix(), exp)

			sum := md5.Sum([]byte(tt.key + "ABC123" + txTime))
			assert.Equal(t, hex.EncodeToString(sum[:]), q.Get("txSecret"))
		})
	}
}

func TestSecretLowercase(t *testing.T) {
	s := Secret("k", "S", fmt.Sprintf("%X", 255))
	assert.Equal(t, strings.ToLower(s), s)
	assert.Len(t, s, 32)
}
