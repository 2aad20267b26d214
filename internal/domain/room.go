package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinCapacity    = 2
	MaxCapacity    = 51
	MaxTitleLen    = 64
	InviteCodeLen  = 6
	InviteAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var (
	ErrCapacityRange = errors.New("capacity out of range")
	ErrTitleEmpty    = errors.New("title empty")
	ErrTitleTooLong  = errors.New("title too long")
	ErrStreamMode    = errors.New("invalid stream mode")
)

// StreamMode is the kind of broadcast the streamer picked; clients choose their player by it.
type StreamMode int

const StreamQuickLive StreamMode = 0

// RoomID equals the owner's UserID.
type RoomID uint

type InviteCode string

func RoomOf(uid UserID) RoomID { return RoomID(uid) }

func (id RoomID) Owner() UserID { return UserID(id) }

type RoomSettings struct {
	Title    string     `json:"title"`
	IsPublic bool       `json:"isPublic"`
	Password string     `json:"password"`
	Capacity int        `json:"max"`
	Mode     StreamMode `json:"mode"`
}

func (s *RoomSettings) Normalize() error {
	s.Title = strings.TrimSpace(s.Title)
	s.Password = strings.TrimSpace(s.Password)
	if s.Title == "" {
		return ErrTitleEmpty
	}
	if utf8.RuneCountInString(s.Title) > MaxTitleLen {
		return ErrTitleTooLong
	}
	if s.Capacity < MinCapacity || s.Capacity > MaxCapacity {
		return ErrCapacityRange
	}
	if s.Mode < StreamQuickLive {
		return ErrStreamMode
	}
	return nil
}

func (s RoomSettings) PasswordNeeded() bool { return s.Password != "" }

// RoomInfo is the secret-free view of a live room.
type RoomInfo struct {
	RoomID         RoomID     `json:"roomId"`
	Title          string     `json:"title"`
	CreatorName    string     `json:"creatorName"`
	PasswordNeeded bool       `json:"passwordNeeded"`
	IsPublic       bool       `json:"isPublic"`
	Max            int        `json:"max"`
	CreateTime     time.Time  `json:"createTime"`
	ClientCount    int        `json:"clientCount"`
	Enterable      bool       `json:"enterable"`
	StreamerOnline bool       `json:"streamerOnline"`
	InviteCode     InviteCode `json:"inviteCode,omitempty"`
	Mode           StreamMode `json:"mode"`
}

// Capture is the latest cover image a streamer uploaded for the room.
type Capture struct {
	RoomID RoomID `json:"roomId"`
	Title  string `json:"title"`
	Image  string `json:"image"`
	Time   int64  `json:"time"`
}
