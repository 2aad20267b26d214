package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const MaxDanmakuLen = 128

var (
	ErrDanmakuEmpty    = errors.New("danmaku empty")
	ErrDanmakuTooLong  = errors.New("danmaku too long")
	ErrDanmakuPosition = errors.New("danmaku position")
)

type DanmakuPosition int

const (
	PositionRoll DanmakuPosition = iota
	PositionTop
	PositionBottom
)

func (p DanmakuPosition) Valid() bool {
	return p >= PositionRoll && p <= PositionBottom
}

type Danmaku struct {
	ID         string          `json:"id"`
	Content    string          `json:"content"`
	Color      string          `json:"color"`
	Position   DanmakuPosition `json:"position"`
	SenderID   UserID          `json:"senderUserID"`
	SenderName string          `json:"senderUserName"`
	Time       int64           `json:"time"`
}

var controlStripper = strings.NewReplacer("\n", "", "\r", "", "\t", "")

// SanitizeDanmaku strips line breaks and tabs, then trims.
func SanitizeDanmaku(content string) string {
	return strings.TrimSpace(controlStripper.Replace(content))
}

func ValidateDanmaku(content string, pos DanmakuPosition) error {
	if content == "" {
		return ErrDanmakuEmpty
	}
	if utf8.RuneCountInString(content) > MaxDanmakuLen {
		return ErrDanmakuTooLong
	}
	if !pos.Valid() {
		return ErrDanmakuPosition
	}
	return nil
}
