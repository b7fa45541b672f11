package bot

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"attendbot/internal/db/models"

	"github.com/bwmarrin/discordgo"
)

var weekdays = map[string]int{
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
	"sunday":    7,
}

var weekdayNames = [8]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var schedulePattern = regexp.MustCompile(`^([A-Za-z]+|\d)/(\d{1,2}):(\d{2})-(\d{1,2}):(\d{2})$`)

// parseSchedule parses "<day>/<HH:MM>-<HH:MM>" where day is an ISO number
// (1-7) or a weekday name. Returned errors are user-facing.
func parseSchedule(schedule string) (models.AttendanceWindow, error) {
	m := schedulePattern.FindStringSubmatch(strings.TrimSpace(schedule))
	if m == nil {
		return models.AttendanceWindow{}, fmt.Errorf("invalid format! Use `day/HH:MM-HH:MM`, e.g. `3/14:30-15:30`")
	}

	var day int
	if d, err := strconv.Atoi(m[1]); err == nil {
		day = d
	} else {
		day = weekdays[strings.ToLower(m[1])]
	}
	if day < 1 || day > 7 {
		return models.AttendanceWindow{}, fmt.Errorf("day must be 1-7 or a weekday name (e.g. Monday)")
	}

	h1, _ := strconv.Atoi(m[2])
	min1, _ := strconv.Atoi(m[3])
	h2, _ := strconv.Atoi(m[4])
	min2, _ := strconv.Atoi(m[5])
	if h1 > 23 || min1 > 59 || h2 > 23 || min2 > 59 {
		return models.AttendanceWindow{}, fmt.Errorf("hours must be 0-23 and minutes 0-59")
	}

	start := h1*60 + min1
	end := h2*60 + min2
	if start >= end {
		return models.AttendanceWindow{}, fmt.Errorf("end time must be after start time")
	}

	return models.AttendanceWindow{Day: day, StartMinute: start, EndMinute: end}, nil
}

// parseOffsetMinutes parses a UTC offset like "+7", "-5", "0" or "+5:30"
// into whole minutes. Range checking is the configurator's job.
func parseOffsetMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	sign := 1
	switch {
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	}

	hourPart, minPart, hasMinutes := strings.Cut(s, ":")
	hours, err := strconv.Atoi(hourPart)
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	minutes := 0
	if hasMinutes {
		minutes, err = strconv.Atoi(minPart)
		if err != nil || minutes < 0 || minutes > 59 {
			return 0, fmt.Errorf("invalid offset %q", s)
		}
	}
	return sign * (hours*60 + minutes), nil
}

// weekdayName maps an ISO day number to its display name.
func weekdayName(day int) string {
	if day < 1 || day > 7 {
		return fmt.Sprintf("Day %d", day)
	}
	return weekdayNames[day]
}

// formatMinute renders a minute-of-day as HH:MM.
func formatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// formatOffset renders a minute offset as UTC+7 or UTC+5:30.
func formatOffset(minutes int) string {
	sign := "+"
	m := minutes
	if m < 0 {
		sign = "-"
		m = -m
	}
	if m%60 == 0 {
		return fmt.Sprintf("UTC%s%d", sign, m/60)
	}
	return fmt.Sprintf("UTC%s%d:%02d", sign, m/60, m%60)
}

// interactionUser returns the invoking user, handling both guild and DM
// interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// memberDisplayName is the name submitted into the form: the guild nickname
// when set, the username otherwise.
func memberDisplayName(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.Nick != "" {
		return i.Member.Nick
	}
	if user := interactionUser(i); user != nil {
		return user.Username
	}
	return "unknown"
}

// respondWithError sends an ephemeral error response to the user
func respondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, errMsg string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Error: " + errMsg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// respondWithSuccess sends an ephemeral response to the user
func respondWithSuccess(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// respondPublic sends a response visible to the whole channel, used for
// attendance confirmations and denials
func respondPublic(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
}

// logCommand logs command execution to the console
func logCommand(s *discordgo.Session, i *discordgo.InteractionCreate, commandName string) {
	var username string
	if i.Member != nil && i.Member.User != nil {
		username = i.Member.User.Username
	} else if i.User != nil {
		username = i.User.Username
	} else {
		username = "unknown"
	}

	var params []string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			params = append(params, fmt.Sprintf("%s:%s", opt.Name, opt.StringValue()))
		}
	}

	logMessage := fmt.Sprintf("%s executed /%s", username, commandName)
	if len(params) > 0 {
		logMessage += fmt.Sprintf(" [%s]", strings.Join(params, ", "))
	}

	log.Printf(formatLogMessage(i.GuildID, logMessage, username, getServerName(s, i.GuildID)))
}

// logError logs errors to the console
func logError(s *discordgo.Session, channelID string, errContext, errMsg string) {
	log.Printf("[%s] ERROR - %s: %s", time.Now().Format("2006-01-02 15:04:05"), errContext, errMsg)
}

// formatLogMessage builds a consistent log line with guild context
func formatLogMessage(guildID, message, username, serverName string) string {
	if guildID == "" {
		return fmt.Sprintf("[DM] %s", message)
	}
	return fmt.Sprintf("[%s (%s)] %s", serverName, guildID, message)
}

// getServerName resolves a guild ID to its name for logging
func getServerName(s *discordgo.Session, guildID string) string {
	if guildID == "" {
		return "DM"
	}
	if guild, err := s.State.Guild(guildID); err == nil {
		return guild.Name
	}
	if guild, err := s.Guild(guildID); err == nil {
		return guild.Name
	}
	return "unknown"
}
