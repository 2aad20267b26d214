package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomSettingsNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   RoomSettings
		err  error
	}{
		{name: "ok", in: RoomSettings{Title: " live ", Capacity: 5}},
		{name: "mode kept", in: RoomSettings{Title: "live", Capacity: 5, Mode: 1}},
		{name: "empty title", in: RoomSettings{Title: "  ", Capacity: 5}, err: ErrTitleEmpty},
		{name: "long title", in: RoomSettings{Title: strings.Repeat("x", MaxTitleLen+1), Capacity: 5}, err: ErrTitleTooLong},
		{name: "too small", in: RoomSettings{Title: "live", Capacity: 1}, err: ErrCapacityRange},
		{name: "too large", in: RoomSettings{Title: "live", Capacity: 52}, err: ErrCapacityRange},
		{name: "negative mode", in: RoomSettings{Title: "live", Capacity: 5, Mode: -1}, err: ErrStreamMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.in
			err := s.Normalize()
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, strings.TrimSpace(tt.in.Title), s.Title)
			assert.Equal(t, tt.in.Mode, s.Mode)
		})
	}
}
