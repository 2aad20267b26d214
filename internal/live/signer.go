// Package live signs push and pull URLs for the external streaming CDN.
package live

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/danmaku/internal/domain"
)

const (
	PushTTL = 12 * time.Hour
	PullTTL = 3 * time.Minute
)

type StreamType int

const (
	StreamWebRTC StreamType = iota
	StreamRTMP
)

func (t StreamType) Valid() bool { return t == StreamWebRTC || t == StreamRTMP }

type Config struct {
	PushKey          string
	PullKey          string
	PushServer       string
	PullServerRTMP   string
	PullServerWebRTC string
}

// Endpoint is what a client needs to open a stream: server base plus signed key.
type Endpoint struct {
	Server string `json:"server"`
	Key    string `json:"key"`
}

type Signer struct {
	cfg Config
	now func() time.Time
}

func NewSigner(cfg Config) *Signer {
	return &Signer{cfg: cfg, now: time.Now}
}

func (s *Signer) Push(stream domain.InviteCode) Endpoint {
	return Endpoint{
		Server: s.cfg.PushServer,
		Key:    sign(string(stream), "", s.cfg.PushKey, s.now().Add(PushTTL)),
	}
}

func (s *Signer) Pull(stream domain.InviteCode, typ StreamType) Endpoint {
	exp := s.now().Add(PullTTL)
	if typ == StreamRTMP {
		return Endpoint{Server: s.cfg.PullServerRTMP, Key: sign(string(stream), ".flv", s.cfg.PullKey, exp)}
	}
	return Endpoint{Server: s.cfg.PullServerWebRTC, Key: sign(string(stream), "", s.cfg.PullKey, exp)}
}

func sign(stream, suffix, key string, exp time.Time) string {
	txTime := strings.ToUpper(fmt.Sprintf("%x", exp.Unix()))
	return fmt.Sprintf("%s%s?txSecret=%s&txTime=%s", stream, suffix, Secret(key, stream, txTime), txTime)
}

// Secret is lower hex md5(key + stream + txTime).
func Secret(key, stream, txTime string) string {
	sum := md5.Sum([]byte(key + stream + txTime))
	return hex.EncodeToString(sum[:])
}
