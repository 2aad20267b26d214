package core

import (
	"errors"
	"fmt"
)

// Code is a stable result code returned inline in responses.
// A Code is also an error so domain failures travel on the normal error path.
type Code int

const (
	OK Code = 200

	DuplicateEmail              Code = 301
	DuplicateUsername           Code = 302
	WrongUserNameOrPassword     Code = 303
	PasswordFormatError         Code = 304
	EmailFormatError            Code = 305
	UserNameFormatError         Code = 306
	InvalidUser                 Code = 307
	DuplicateRoom               Code = 308
	WrongRoomPassword           Code = 309
	RoomNotExist                Code = 310
	RoomUnenterable             Code = 311
	RoomFull                    Code = 312
	RoomNotExistOrUnenterable   Code = 313
	OldPasswordEqualNewPassword Code = 314

	ParamsFormatError     Code = 401
	CaptchaInvalidOrWrong Code = 402
	CaptchaCoolDown       Code = 403
	CaptchaInvalid        Code = 404

	TokenExpired          Code = 501
	SignInvalid           Code = 502
	TokenInvalid          Code = 503
	UserCanNotStream      Code = 504
	UserCanNotSendDanmaku Code = 505
	NoAuth                Code = 506
	PartError             Code = 507
	InvalidStatus         Code = 508
	TooFrequent           Code = 509

	UnknownError Code = -100
)

var codeText = map[Code]string{
	OK:                          "ok",
	DuplicateEmail:              "email already in use",
	DuplicateUsername:           "nickname already in use",
	WrongUserNameOrPassword:     "wrong account or password",
	PasswordFormatError:         "password format error",
	EmailFormatError:            "email format error",
	UserNameFormatError:         "nickname format error",
	InvalidUser:                 "invalid user",
	DuplicateRoom:               "user already owns a room",
	WrongRoomPassword:           "wrong room password",
	RoomNotExist:                "room does not exist",
	RoomUnenterable:             "room is not enterable",
	RoomFull:                    "room is full",
	RoomNotExistOrUnenterable:   "room does not exist or is not enterable",
	OldPasswordEqualNewPassword: "new password equals the old one",
	ParamsFormatError:           "params format error",
	CaptchaInvalidOrWrong:       "captcha is wrong",
	CaptchaCoolDown:             "captcha is cooling down",
	CaptchaInvalid:              "captcha is invalid",
	TokenExpired:                "token expired",
	SignInvalid:                 "token signature invalid",
	TokenInvalid:                "token invalid",
	UserCanNotStream:            "user can not stream",
	UserCanNotSendDanmaku:       "user can not send danmaku",
	NoAuth:                      "not authorized",
	PartError:                   "operation partially failed",
	InvalidStatus:               "operation not allowed in current status",
	TooFrequent:                 "too frequent",
	UnknownError:                "unknown error",
}

func (c Code) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return fmt.Sprintf("code %d", int(c))
}

func (c Code) Error() string { return c.String() }

// CodeOf maps err to its Code; errors that carry none become UnknownError.
func CodeOf(err error) (Code, bool) {
	if err == nil {
		return OK, true
	}
	var c Code
	if errors.As(err, &c) {
		return c, true
	}
	return UnknownError, false
}

// Result is the response body: {"code", "msg", "data"}.
type Result struct {
	Code Code   `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

func Success(data any) Result {
	return Result{Code: OK, Msg: OK.String(), Data: data}
}

func Failure(c Code, data any) Result {
	return Result{Code: c, Msg: c.String(), Data: data}
}
