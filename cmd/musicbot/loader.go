package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"

	"github.com/ArthesTN/discord-music-player/sys"
)

// safeGo runs a function in a new goroutine with panic recovery
func safeGo(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				sys.LogError("Recovered from panic in handler: %v", r)
				fmt.Printf("%s\n", debug.Stack())
			}
		}()
		f()
	}()
}

var commands = []discord.ApplicationCommandCreate{}
var commandHandlers = map[string]func(event *events.ApplicationCommandInteractionCreate){}
var voiceStateUpdateHandlers []func(event *events.GuildVoiceStateUpdate)

func registerCommand(cmd discord.SlashCommandCreate, handler func(event *events.ApplicationCommandInteractionCreate)) {
	commands = append(commands, cmd)
	commandHandlers[cmd.CommandName()] = handler
}

func createClient(ctx context.Context, cfg *sys.Config) (*bot.Client, error) {
	client, err := disgo.New(cfg.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildVoiceStates,
			),
			gateway.WithPresenceOpts(
				gateway.WithListeningActivity("your queue"),
				gateway.WithOnlineStatus(discord.OnlineStatusOnline),
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagChannels, cache.FlagVoiceStates, cache.FlagMembers),
		),
		bot.WithEventListenerFunc(onApplicationCommandInteraction),
		bot.WithEventListenerFunc(onVoiceStateUpdate),
		bot.WithEventListenerFunc(onReady),
		bot.WithLogger(slog.Default()),
		bot.WithRestClientConfigOpts(
			rest.WithHTTPClient(&http.Client{
				Timeout: 60 * time.Second,
			}),
		),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func registerCommands(client *bot.Client, guildIDStr string) error {
	if guildIDStr == "" {
		sys.LogInfo("Registering commands globally...")
		created, err := client.Rest.SetGlobalCommands(client.ApplicationID, commands)
		if err != nil {
			return err
		}
		for _, cmd := range created {
			sys.LogInfo("Registered global command: %s", cmd.Name())
		}
		return nil
	}

	guildID, err := snowflake.Parse(guildIDStr)
	if err != nil {
		return fmt.Errorf("invalid GUILD_ID: %w", err)
	}
	sys.LogInfo("Registering commands to guild: %s", guildIDStr)
	created, err := client.Rest.SetGuildCommands(client.ApplicationID, guildID, commands)
	if err != nil {
		return err
	}
	for _, cmd := range created {
		sys.LogInfo("Registered guild command: %s", cmd.Name())
	}
	return nil
}

func onReady(event *events.Ready) {
	sys.LogInfo("%s is ready! (ID: %s)", event.User.Username, event.User.ID.String())
}

func onApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	data := event.Data
	if h, ok := commandHandlers[data.CommandName()]; ok {
		safeGo(func() { h(event) })
	}
}

func onVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	for _, h := range voiceStateUpdateHandlers {
		safeGo(func() { h(event) })
	}
}
