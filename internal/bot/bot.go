package bot

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"attendbot/internal/attendance"
	"attendbot/internal/config"

	"github.com/bwmarrin/discordgo"
)

var (
	dmAllowedCommands = map[string]bool{
		"help": true, // everything else needs a guild
	}

	adminCommands = map[string]bool{
		"add_gform_url":          true,
		"delete_gform_url":       true,
		"list_gform_url":         true,
		"set_attendance_time":    true,
		"show_attendance_time":   true,
		"delete_attendance_time": true,
		"set_timezone":           true,
		"show_timezone":          true,
	}
)

type Bot struct {
	config     *config.Config
	marker     *attendance.Orchestrator
	admin      *attendance.Configurator
	session    *discordgo.Session
	shutdownCh chan struct{}
	isShutdown bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

func New(cfg *config.Config, marker *attendance.Orchestrator, admin *attendance.Configurator) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	// Required permissions for visibility
	requiredPermissions := int64(
		discordgo.PermissionViewChannel |
			discordgo.PermissionSendMessages |
			discordgo.PermissionUseSlashCommands)

	cfg.Discord.Permissions = requiredPermissions

	log.Printf("Bot intents: %d", session.Identify.Intents)
	log.Printf("Bot permissions: %d", cfg.Discord.Permissions)

	return &Bot{
		config:     cfg,
		marker:     marker,
		admin:      admin,
		session:    session,
		shutdownCh: make(chan struct{}),
		isShutdown: false,
	}, nil
}

// Helper function to register commands for a guild
func (b *Bot) registerGuildCommands(guildID string) error {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := b.registerGuildCommandsOnce(guildID)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Printf("Attempt %d to register commands failed: %v", i+1, err)
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return fmt.Errorf("failed to register commands after %d attempts: %v", maxRetries, lastErr)
}

func (b *Bot) registerGuildCommandsOnce(guildID string) error {
	serverName := getServerName(b.session, guildID)

	log.Printf(formatLogMessage(guildID, "Registering commands", "BOT", serverName))

	// Clear existing commands
	existing, err := b.session.ApplicationCommands(b.config.Discord.ClientID, guildID)
	if err != nil {
		return fmt.Errorf("error getting existing commands: %w", err)
	}

	for _, v := range existing {
		err := b.session.ApplicationCommandDelete(b.config.Discord.ClientID, guildID, v.ID)
		if err != nil {
			log.Printf(formatLogMessage(
				guildID,
				fmt.Sprintf("%s: Failed to delete command (%v)", v.Name, err),
				"BOT",
				serverName,
			))
		}
	}

	// Wait a moment to ensure all deletions are processed
	time.Sleep(time.Second)

	for _, v := range commands {
		_, err := b.session.ApplicationCommandCreate(b.config.Discord.ClientID, guildID, v)
		if err != nil {
			return fmt.Errorf("error creating command %s: %w", v.Name, err)
		}
		log.Printf(formatLogMessage(
			guildID,
			fmt.Sprintf("%s: Registered command", v.Name),
			"BOT",
			serverName,
		))
	}

	return nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.Println("Starting attendbot...")

	// Keep trying to connect until successful
	for {
		log.Println("Testing Discord API connection...")
		if _, err := b.session.User("@me"); err != nil {
			log.Printf("Failed to connect to Discord API: %v. Retrying in 5 seconds...", err)
			time.Sleep(5 * time.Second)
			continue
		}
		log.Println("Successfully connected to Discord API")
		break
	}

	for {
		if err := b.session.Open(); err != nil {
			log.Printf("Error opening Discord session: %v. Retrying in 5 seconds...", err)
			time.Sleep(5 * time.Second)
			continue
		}
		log.Printf("Session opened successfully (Session ID: %s)", b.session.State.SessionID)
		break
	}

	// Register handlers
	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type == discordgo.InteractionApplicationCommand {
			b.handleCommand(s, i)
		}
	})

	log.Println("Registering commands for all guilds...")
	for _, guild := range b.session.State.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			log.Printf("Error registering commands for guild %s: %v", guild.ID, err)
		}
	}

	// Handle guilds the bot joins later
	b.session.AddHandler(b.handleGuildCreate)

	log.Println("Bot is now running. Press CTRL-C to exit.")

	<-ctx.Done()
	return b.Shutdown()
}

// Shutdown performs a graceful shutdown of the bot
func (b *Bot) Shutdown() error {
	log.Println("Initiating graceful shutdown...")

	// Ensure we only close the channel once
	b.mu.Lock()
	if b.isShutdown {
		b.mu.Unlock()
		return nil
	}
	b.isShutdown = true
	close(b.shutdownCh)
	b.mu.Unlock()

	// Wait for all handlers to complete
	log.Println("Waiting for active handlers to complete...")
	b.wg.Wait()

	for _, guild := range b.session.State.Guilds {
		serverName := getServerName(b.session, guild.ID)

		log.Printf(formatLogMessage(guild.ID, "Removing commands", "BOT", serverName))

		registeredCommands, err := b.session.ApplicationCommands(b.config.Discord.ClientID, guild.ID)
		if err != nil {
			log.Printf(formatLogMessage(guild.ID, fmt.Sprintf("Error getting commands: %v", err), "BOT", serverName))
			continue
		}
		for _, cmd := range registeredCommands {
			err := b.session.ApplicationCommandDelete(b.config.Discord.ClientID, guild.ID, cmd.ID)
			if err != nil {
				log.Printf(formatLogMessage(guild.ID, fmt.Sprintf("%s: Failed to remove command (%v)", cmd.Name, err), "BOT", serverName))
			}
		}
	}

	log.Println("Closing Discord session...")
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("error closing Discord session: %w", err)
	}

	log.Println("Shutdown completed successfully")
	return nil
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	// Guild config rows are created lazily by the first admin command, so
	// there is nothing to initialize per guild here.
	log.Printf("Bot is ready! Connected to %d guilds", len(r.Guilds))
}

func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log.Printf(formatLogMessage(g.ID, "Bot joined new guild", "BOT", g.Name))

	if err := b.registerGuildCommands(g.ID); err != nil {
		log.Printf(formatLogMessage(g.ID, fmt.Sprintf("Error registering commands: %v", err), "BOT", g.Name))
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.wg.Add(1)
	defer b.wg.Done()

	// Catch panics with a stack trace instead of taking down the session
	defer func() {
		if r := recover(); r != nil {
			var username string
			if i.Member != nil && i.Member.User != nil {
				username = i.Member.User.Username
			} else if i.User != nil {
				username = i.User.Username
			} else {
				username = "unknown"
			}

			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			log.Printf("Panic in command handler for user %s in guild %q:\nError: %v\nStack Trace:\n%s",
				username, i.GuildID, r, string(buf[:n]))

			respondWithError(s, i, "An internal error occurred")
		}
	}()

	commandName := i.ApplicationCommandData().Name

	// Strict DM check
	if i.GuildID == "" && !dmAllowedCommands[commandName] {
		respondWithError(s, i, fmt.Sprintf("The `/%s` command can only be used in a server", commandName))
		return
	}

	// Admin commands carry DefaultMemberPermissions, but verify the member's
	// roles as well rather than trusting client-side gating
	if adminCommands[commandName] && !isAdmin(s, i.GuildID, i.Member.User.ID) {
		respondWithError(s, i, "You need the Manage Server permission to use this command")
		return
	}

	switch commandName {
	case "hadir":
		b.handleHadir(s, i)
	case "add_gform_url":
		b.handleAddFormURL(s, i)
	case "delete_gform_url":
		b.handleDeleteFormURL(s, i)
	case "list_gform_url":
		b.handleListFormURL(s, i)
	case "set_attendance_time":
		b.handleSetAttendanceTime(s, i)
	case "show_attendance_time":
		b.handleShowAttendanceTime(s, i)
	case "delete_attendance_time":
		b.handleDeleteAttendanceTime(s, i)
	case "set_timezone":
		b.handleSetTimezone(s, i)
	case "show_timezone":
		b.handleShowTimezone(s, i)
	case "help":
		b.handleHelp(s, i)
	default:
		log.Printf(formatLogMessage(i.GuildID, "Unknown command: "+commandName, "", ""))
		respondWithError(s, i, "Unknown command")
	}
}
