// Package domain holds the entities shared by every layer together with their
// field validation and small state helpers such as User.Touch.
package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinNickNameLen = 3
	MaxNickNameLen = 20
	MinPasswordLen = 6
	MaxPasswordLen = 64
)

var (
	ErrNickNameFormat = errors.New("nickname format")
	ErrEmailFormat    = errors.New("email format")
	ErrPasswordFormat = errors.New("password format")
)

// UserID is the persistent account id. Zero is reserved for the admin console.
type UserID uint

const AdminID UserID = 0

// User is the durable account record. Runtime presence (status, connection,
// current room) lives in the presence registry, never here.
type User struct {
	ID             UserID    `gorm:"primaryKey" json:"id"`
	Email          string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	NickName       string    `gorm:"uniqueIndex;size:64;not null" json:"nickName"`
	PassWord       string    `gorm:"not null" json:"-"`
	LastChange     int64     `gorm:"not null" json:"-"`
	CreateTime     time.Time `json:"createTime"`
	LastLoginTime  time.Time `json:"lastLoginTime"`
	CanStream      bool      `json:"canStream"`
	CanSendDanmaku bool      `json:"canSendDanmaku"`
	Banned         bool      `json:"banned"`
}

// NewUser builds an account with both privileges granted.
func NewUser(email, nickName, hash string, now time.Time) *User {
	return &User{
		Email:          strings.TrimSpace(email),
		NickName:       strings.TrimSpace(nickName),
		PassWord:       hash,
		LastChange:     now.UnixMilli(),
		CreateTime:     now,
		CanStream:      true,
		CanSendDanmaku: true,
	}
}

func ValidateNickName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < MinNickNameLen || n > MaxNickNameLen || strings.ContainsAny(name, "@ \t\r\n") {
		return ErrNickNameFormat
	}
	return nil
}

func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrEmailFormat
	}
	return nil
}

func ValidatePassword(pw string) error {
	if len(pw) < MinPasswordLen || len(pw) > MaxPasswordLen {
		return ErrPasswordFormat
	}
	return nil
}

// Touch moves the security stamp forward; credentials carrying the old stamp expire.
func (u *User) Touch(now time.Time) {
	stamp := now.UnixMilli()
	if stamp <= u.LastChange {
		stamp = u.LastChange + 1
	}
	u.LastChange = stamp
}

// Profile is the public view of an account.
type Profile struct {
	ID             UserID     `json:"id"`
	Email          string     `json:"email"`
	NickName       string     `json:"nickName"`
	CreateTime     time.Time  `json:"createTime"`
	LastLoginTime  time.Time  `json:"lastLoginTime"`
	CanStream      bool       `json:"canStream"`
	CanSendDanmaku bool       `json:"canSendDanmaku"`
	Status         UserStatus `json:"status"`
}

func (u User) Profile(status UserStatus) Profile {
	return Profile{
		ID:             u.ID,
		Email:          u.Email,
		NickName:       u.NickName,
		CreateTime:     u.CreateTime,
		LastLoginTime:  u.LastLoginTime,
		CanStream:      u.CanStream,
		CanSendDanmaku: u.CanSendDanmaku,
		Status:         status,
	}
}
