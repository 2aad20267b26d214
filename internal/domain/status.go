package domain

import "encoding/json"

type UserStatus int

const (
	StatusOffline UserStatus = iota
	StatusStandBy
	StatusClient
	StatusStreaming
	StatusBanned
)

var statusNames = map[UserStatus]string{
	StatusOffline:   "Offline",
	StatusStandBy:   "StandBy",
	StatusClient:    "Client",
	StatusStreaming: "Streaming",
	StatusBanned:    "Banned",
}

func (s UserStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "Unknown"
}

func (s UserStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
