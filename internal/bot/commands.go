package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"attendbot/internal/attendance"
	"attendbot/internal/gform"

	"github.com/bwmarrin/discordgo"
)

var (
	commands = []*discordgo.ApplicationCommand{
		{
			Name:        "hadir",
			Description: "Mark your daily attendance",
		},
		{
			Name:                     "add_gform_url",
			Description:              "Add or update the Google Form URL for this server",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "url",
					Description: "Form link (full URL or shortened forms.gle link)",
					Required:    true,
				},
			},
		},
		{
			Name:                     "delete_gform_url",
			Description:              "Remove the Google Form URL from this server",
			DefaultMemberPermissions: &adminPermission,
		},
		{
			Name:                     "list_gform_url",
			Description:              "Show the current Google Form URL for this server",
			DefaultMemberPermissions: &adminPermission,
		},
		{
			Name:                     "set_attendance_time",
			Description:              "Set the weekly attendance window. Format: <day>/<HH:MM>-<HH:MM>",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "schedule",
					Description: "e.g. Friday/08:00-09:00 or 5/14:00-15:00",
					Required:    true,
				},
			},
		},
		{
			Name:                     "show_attendance_time",
			Description:              "Show the current attendance window",
			DefaultMemberPermissions: &adminPermission,
		},
		{
			Name:                     "delete_attendance_time",
			Description:              "Delete the attendance window (marking allowed anytime)",
			DefaultMemberPermissions: &adminPermission,
		},
		{
			Name:                     "set_timezone",
			Description:              "Set the timezone offset from UTC. Range: -12 to +14",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "offset",
					Description: "e.g. +7, -5, 0, +5:30",
					Required:    true,
				},
			},
		},
		{
			Name:                     "show_timezone",
			Description:              "Show the timezone offset for this server",
			DefaultMemberPermissions: &adminPermission,
		},
		{
			Name:        "help",
			Description: "Show all available commands and setup instructions",
		},
	}

	// Admin configuration commands are hidden from regular members
	adminPermission = int64(discordgo.PermissionManageServer)
)

func (b *Bot) handleHadir(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "hadir")

	user := interactionUser(i)
	if user == nil {
		respondWithError(s, i, "Could not determine user information")
		return
	}

	res := b.marker.MarkAttendance(context.Background(), i.GuildID, user.ID, memberDisplayName(i), time.Now())

	switch res.Status {
	case attendance.StatusSuccess:
		respondPublic(s, i, fmt.Sprintf("%s Hadir recorded!", user.Mention()))
	case attendance.StatusDenied:
		switch res.Reason {
		case attendance.DenyNoFormConfigured:
			respondPublic(s, i, "No attendance form configured for this server")
		case attendance.DenyAlreadyMarked:
			respondWithError(s, i, "You've already marked attendance today")
		case attendance.DenyOutsideWindow:
			respondPublic(s, i, fmt.Sprintf("%s Attendance denied: outside the attendance window", user.Mention()))
		default:
			respondWithError(s, i, "Attendance denied")
		}
	default:
		switch res.Failure {
		case attendance.FailureTimeout:
			respondWithError(s, i, "Attendance attempt timed out. Please try again")
		case attendance.FailureSubmission:
			respondWithError(s, i, "Failed to submit attendance to the form. Please try again")
		case attendance.FailureRecording:
			respondWithError(s, i, "Attendance was submitted but could not be recorded. Please contact an admin")
		default:
			respondWithError(s, i, "An error occurred while recording attendance")
		}
	}
}

func (b *Bot) handleAddFormURL(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "add_gform_url")

	rawLink := i.ApplicationCommandData().Options[0].StringValue()

	err := b.admin.ConfigureForm(context.Background(), i.GuildID, rawLink)
	if err != nil {
		switch {
		case errors.Is(err, gform.ErrInvalidLink):
			respondWithError(s, i, "That doesn't look like a Google Form link")
		case errors.Is(err, gform.ErrResolutionFailed):
			respondWithError(s, i, "Could not find a valid Google Form at that URL. Please check the link")
		case errors.Is(err, gform.ErrMalformedPayload):
			respondWithError(s, i, "This Google Form is private, restricted, or not a valid attendance form")
		case errors.Is(err, gform.ErrNoTextField):
			respondWithError(s, i, "This form has no free-text field for the name. Please use a different form")
		case errors.Is(err, gform.ErrNetwork):
			respondWithError(s, i, "Couldn't reach the Google Form host. Please try again")
		default:
			logError(s, i.ChannelID, "ConfigureForm", err.Error())
			respondWithError(s, i, "Failed to save Google Form URL")
		}
		return
	}

	respondWithSuccess(s, i, "Google Form URL saved!")
}

func (b *Bot) handleDeleteFormURL(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "delete_gform_url")

	cfg, err := b.admin.GuildConfig(context.Background(), i.GuildID)
	if err != nil {
		logError(s, i.ChannelID, "GuildConfig", err.Error())
		respondWithError(s, i, "Error reading server configuration")
		return
	}
	if !cfg.HasForm() {
		respondWithError(s, i, "No URL set")
		return
	}

	if err := b.admin.RemoveForm(context.Background(), i.GuildID); err != nil {
		logError(s, i.ChannelID, "RemoveForm", err.Error())
		respondWithError(s, i, "Failed to delete the form URL")
		return
	}
	respondWithSuccess(s, i, "Form URL deleted")
}

func (b *Bot) handleListFormURL(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "list_gform_url")

	cfg, err := b.admin.GuildConfig(context.Background(), i.GuildID)
	if err != nil {
		logError(s, i.ChannelID, "GuildConfig", err.Error())
		respondWithError(s, i, "Error reading server configuration")
		return
	}
	if !cfg.HasForm() {
		respondWithSuccess(s, i, "No URL configured")
		return
	}
	respondWithSuccess(s, i, fmt.Sprintf("Current URL: %s", cfg.FormSubmitURL))
}

func (b *Bot) handleSetAttendanceTime(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "set_attendance_time")

	schedule := i.ApplicationCommandData().Options[0].StringValue()
	window, err := parseSchedule(schedule)
	if err != nil {
		respondWithError(s, i, err.Error())
		return
	}

	if err := b.admin.ConfigureWindow(context.Background(), i.GuildID, window); err != nil {
		if errors.Is(err, attendance.ErrInvalidWindow) {
			respondWithError(s, i, "End time must be after start time, on the same day")
			return
		}
		logError(s, i.ChannelID, "ConfigureWindow", err.Error())
		respondWithError(s, i, "Failed to save attendance time. Please try again")
		return
	}

	respondWithSuccess(s, i, fmt.Sprintf("Attendance time set for **%s** from **%s** to **%s**",
		weekdayName(window.Day), formatMinute(window.StartMinute), formatMinute(window.EndMinute)))
}

func (b *Bot) handleShowAttendanceTime(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "show_attendance_time")

	cfg, err := b.admin.GuildConfig(context.Background(), i.GuildID)
	if err != nil {
		logError(s, i.ChannelID, "GuildConfig", err.Error())
		respondWithError(s, i, "Error reading server configuration")
		return
	}
	if cfg == nil || cfg.Window == nil {
		respondWithError(s, i, "Attendance time has not been set yet")
		return
	}

	w := cfg.Window
	respondWithSuccess(s, i, fmt.Sprintf("Attendance time **%s**: %s - %s",
		weekdayName(w.Day), formatMinute(w.StartMinute), formatMinute(w.EndMinute)))
}

func (b *Bot) handleDeleteAttendanceTime(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "delete_attendance_time")

	cfg, err := b.admin.GuildConfig(context.Background(), i.GuildID)
	if err != nil {
		logError(s, i.ChannelID, "GuildConfig", err.Error())
		respondWithError(s, i, "Error reading server configuration")
		return
	}
	if cfg == nil || cfg.Window == nil {
		respondWithError(s, i, "No attendance time found")
		return
	}

	if err := b.admin.RemoveWindow(context.Background(), i.GuildID); err != nil {
		logError(s, i.ChannelID, "RemoveWindow", err.Error())
		respondWithError(s, i, "Failed to delete attendance time")
		return
	}
	respondWithSuccess(s, i, "Attendance time has been deleted")
}

func (b *Bot) handleSetTimezone(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "set_timezone")

	offset := i.ApplicationCommandData().Options[0].StringValue()
	minutes, err := parseOffsetMinutes(offset)
	if err != nil {
		respondWithError(s, i, "Invalid timezone offset. Please enter a value between -12 and +14, e.g. +7 or +5:30")
		return
	}

	if err := b.admin.ConfigureTimezone(context.Background(), i.GuildID, minutes); err != nil {
		if errors.Is(err, attendance.ErrInvalidTimezone) {
			respondWithError(s, i, "Invalid timezone offset. Please enter a value between -12 and +14")
			return
		}
		logError(s, i.ChannelID, "ConfigureTimezone", err.Error())
		respondWithError(s, i, "Failed to save timezone")
		return
	}

	respondWithSuccess(s, i, fmt.Sprintf("Timezone offset saved as %s", formatOffset(minutes)))
}

func (b *Bot) handleShowTimezone(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "show_timezone")

	cfg, err := b.admin.GuildConfig(context.Background(), i.GuildID)
	if err != nil {
		logError(s, i.ChannelID, "GuildConfig", err.Error())
		respondWithError(s, i, "Error reading server configuration")
		return
	}
	if cfg == nil {
		respondWithError(s, i, fmt.Sprintf("No timezone offset has been set for this server (default %s)",
			formatOffset(attendance.DefaultTzOffsetMinutes)))
		return
	}
	respondWithSuccess(s, i, fmt.Sprintf("Timezone offset is %s", formatOffset(cfg.TzOffsetMinutes)))
}

func (b *Bot) handleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(s, i, "help")

	helpText := "```\n" +
		"How to set up a Google Form for attendance:\n" +
		"1. Create a Google Form with one text field for the name.\n" +
		"2. Copy the form URL (full URL or shortened forms.gle link).\n" +
		"3. Run /add_gform_url with your form URL.\n" +
		"4. The bot submits names into the form when members run /hadir.\n" +
		"\n" +
		"Available commands:\n" +
		"1. /hadir\n" +
		"2. /add_gform_url <link>\n" +
		"   Example: /add_gform_url https://forms.gle/abc123def456\n" +
		"3. /delete_gform_url\n" +
		"4. /list_gform_url\n" +
		"5. /set_attendance_time <day>/<HH:MM>-<HH:MM>\n" +
		"   Example: /set_attendance_time Friday/08:00-09:00\n" +
		"   If not set, attendance can be marked anytime.\n" +
		"6. /show_attendance_time\n" +
		"7. /delete_attendance_time\n" +
		"8. /set_timezone <offset>\n" +
		"   Offset from UTC, -12 to +14. Defaults to +7 (Jakarta).\n" +
		"   Example: /set_timezone -5\n" +
		"9. /show_timezone\n" +
		"```"

	respondWithSuccess(s, i, helpText)
}

// isAdmin checks guild ownership and role permissions rather than trusting
// the client-side command gating.
func isAdmin(s *discordgo.Session, guildID string, userID string) bool {
	if guildID == "" {
		return false
	}

	member, err := s.GuildMember(guildID, userID)
	if err != nil {
		log.Printf("Error getting guild member: %v", err)
		return false
	}

	guild, err := s.Guild(guildID)
	if err != nil {
		log.Printf("Error getting guild: %v", err)
		return false
	}

	if guild.OwnerID == userID {
		return true
	}

	for _, roleID := range member.Roles {
		for _, role := range guild.Roles {
			if role.ID == roleID {
				if role.Permissions&discordgo.PermissionAdministrator != 0 || role.Permissions&discordgo.PermissionManageServer != 0 {
					return true
				}
				break
			}
		}
	}

	return false
}
