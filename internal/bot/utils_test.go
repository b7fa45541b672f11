package bot

import (
	"testing"

	"attendbot/internal/db/models"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		input  string
		window models.AttendanceWindow
		ok     bool
	}{
		{"3/14:30-15:30", models.AttendanceWindow{Day: 3, StartMinute: 14*60 + 30, EndMinute: 15*60 + 30}, true},
		{"Monday/09:00-10:00", models.AttendanceWindow{Day: 1, StartMinute: 9 * 60, EndMinute: 10 * 60}, true},
		{"sunday/00:00-23:59", models.AttendanceWindow{Day: 7, StartMinute: 0, EndMinute: 24*60 - 1}, true},
		{"  5/8:00-9:15  ", models.AttendanceWindow{Day: 5, StartMinute: 8 * 60, EndMinute: 9*60 + 15}, true},
		{"8/09:00-10:00", models.AttendanceWindow{}, false},
		{"0/09:00-10:00", models.AttendanceWindow{}, false},
		{"Funday/09:00-10:00", models.AttendanceWindow{}, false},
		{"3/10:00-09:00", models.AttendanceWindow{}, false},
		{"3/10:00-10:00", models.AttendanceWindow{}, false},
		{"3/25:00-26:00", models.AttendanceWindow{}, false},
		{"3/09:61-10:00", models.AttendanceWindow{}, false},
		{"3 09:00-10:00", models.AttendanceWindow{}, false},
		{"", models.AttendanceWindow{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			w, err := parseSchedule(tt.input)
			if !tt.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.window, w)
		})
	}
}

func TestParseOffsetMinutes(t *testing.T) {
	tests := []struct {
		input   string
		minutes int
		ok      bool
	}{
		{"+7", 420, true},
		{"7", 420, true},
		{"-5", -300, true},
		{"0", 0, true},
		{"+5:30", 330, true},
		{"-9:30", -570, true},
		{"+14", 840, true},
		{"-12", -720, true},
		{"abc", 0, false},
		{"+5:75", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, err := parseOffsetMinutes(tt.input)
			if !tt.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.minutes, m)
		})
	}
}

func TestFormatOffset(t *testing.T) {
	assert.Equal(t, "UTC+7", formatOffset(420))
	assert.Equal(t, "UTC-5", formatOffset(-300))
	assert.Equal(t, "UTC+0", formatOffset(0))
	assert.Equal(t, "UTC+5:30", formatOffset(330))
	assert.Equal(t, "UTC-9:30", formatOffset(-570))
}

func TestFormatMinute(t *testing.T) {
	assert.Equal(t, "00:00", formatMinute(0))
	assert.Equal(t, "09:05", formatMinute(9*60+5))
	assert.Equal(t, "23:59", formatMinute(24*60-1))
}

func TestWeekdayName(t *testing.T) {
	assert.Equal(t, "Monday", weekdayName(1))
	assert.Equal(t, "Sunday", weekdayName(7))
	assert.Equal(t, "Day 9", weekdayName(9))
}

func TestMemberDisplayName(t *testing.T) {
	nick := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{Nick: "Nickname", User: &discordgo.User{Username: "username"}},
	}}
	assert.Equal(t, "Nickname", memberDisplayName(nick))

	noNick := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{Username: "username"}},
	}}
	assert.Equal(t, "username", memberDisplayName(noNick))

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{Username: "dmuser"},
	}}
	assert.Equal(t, "dmuser", memberDisplayName(dm))
}
