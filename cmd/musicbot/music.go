package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"

	dmp "github.com/ArthesTN/discord-music-player"
	"github.com/ArthesTN/discord-music-player/providers"
	"github.com/ArthesTN/discord-music-player/sys"
)

// buildPlayer assembles the provider stack from the configuration.
func buildPlayer(ctx context.Context, cfg *sys.Config, client *bot.Client) (*dmp.Player, error) {
	var search dmp.SearchProvider
	if cfg.SearchProvider == "youtube" {
		search = providers.NewYouTubeSearch()
	} else {
		search = providers.NewYTMusicSearch()
	}

	youtube := providers.NewYouTube()
	apple := providers.NewAppleMusic()
	local := providers.NewLocal()

	resolver := &dmp.Resolver{
		Search:    search,
		Tracks:    []dmp.TrackProvider{youtube, apple, local},
		Playlists: []dmp.PlaylistProvider{youtube, apple},
	}

	if cfg.SpotifyClientID != "" {
		spotify, err := providers.NewSpotify(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)
		if err != nil {
			return nil, err
		}
		resolver.Tracks = append([]dmp.TrackProvider{spotify}, resolver.Tracks...)
		resolver.Playlists = append([]dmp.PlaylistProvider{spotify}, resolver.Playlists...)
	}

	player := dmp.NewPlayer(client, resolver, providers.NewSource(), nil)
	player.Handlers = dmp.EventHandlers{
		OnSongAdd: func(q *dmp.Queue, s *dmp.Song) {
			sys.LogPlayer("Queued in %s: %s", q.GuildID, s)
		},
		OnSongFirst: func(q *dmp.Queue, s *dmp.Song) {
			sys.LogStream("Now playing in %s: %s", q.GuildID, s)
		},
		OnSongChanged: func(q *dmp.Queue, newSong, oldSong *dmp.Song) {
			sys.LogStream("Advanced in %s: %s", q.GuildID, newSong)
		},
		OnQueueEnd: func(q *dmp.Queue) {
			sys.LogPlayer("Queue drained in %s", q.GuildID)
		},
		OnQueueDestroyed: func(q *dmp.Queue) {
			sys.LogVoice("Left voice in %s", q.GuildID)
		},
		OnPlaylistAdd: func(q *dmp.Queue, p *dmp.Playlist) {
			sys.LogPlayer("Queued playlist in %s: %s (%d songs)", q.GuildID, p.Name, len(p.Songs))
		},
		OnError: func(err error, q *dmp.Queue) {
			sys.LogError("Player error in %s: %v", q.GuildID, err)
		},
	}
	return player, nil
}

// getQueue returns the guild's queue, restoring persisted settings the
// first time it is created.
func getQueue(player *dmp.Player, event *events.ApplicationCommandInteractionCreate) *dmp.Queue {
	guildID := *event.GuildID()
	existing := player.HasQueue(guildID)
	q := player.CreateQueue(guildID)
	if !existing {
		if settings, err := sys.GetGuildSettings(context.Background(), guildID); err == nil {
			_ = q.SetVolume(settings.Volume)
			_, _ = q.SetRepeatMode(dmp.RepeatMode(settings.RepeatMode))
		}
	}
	return q
}

func persistSettings(q *dmp.Queue) {
	_ = sys.SaveGuildSettings(context.Background(), &sys.GuildSettings{
		GuildID:    q.GuildID,
		Volume:     q.Volume(),
		RepeatMode: int(q.RepeatMode()),
	})
}

func attachPlayer(player *dmp.Player) {
	registerCommand(musicCommand(), func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		if data.SubCommandName == nil {
			return
		}
		switch *data.SubCommandName {
		case "play":
			handlePlay(player, event, data)
		case "playlist":
			handlePlaylist(player, event, data)
		case "skip":
			handleSkip(player, event, data)
		case "stop":
			handleStop(player, event)
		case "seek":
			handleSeek(player, event, data)
		case "pause":
			handlePause(player, event, true)
		case "resume":
			handlePause(player, event, false)
		case "volume":
			handleVolume(player, event, data)
		case "shuffle":
			handleShuffle(player, event)
		case "loop":
			handleLoop(player, event, data)
		case "queue":
			handleQueue(player, event)
		case "nowplaying":
			handleNowPlaying(player, event)
		case "clear":
			handleClear(player, event)
		case "remove":
			handleRemove(player, event, data)
		case "leave":
			handleLeave(player, event)
		}
	})

	// Destroy the queue when the bot is disconnected from voice by hand.
	voiceStateUpdateHandlers = append(voiceStateUpdateHandlers, func(event *events.GuildVoiceStateUpdate) {
		if event.VoiceState.UserID != event.Client().ApplicationID {
			return
		}
		if event.VoiceState.ChannelID == nil {
			if q := player.GetQueue(event.VoiceState.GuildID); q != nil && !q.Destroyed() {
				q.Leave(context.Background())
			}
		}
	})
}

func musicCommand() discord.SlashCommandCreate {
	connectPerm := discord.PermissionConnect
	return discord.SlashCommandCreate{
		Name:                     "music",
		Description:              "Music playback",
		DefaultMemberPermissions: omit.New(&connectPerm),
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "play",
				Description: "Play a song by URL or search",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "query",
						Description: "The URL or song name to play",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "filters",
						Description: "Comma-separated audio filters (bassboost, nightcore, 8D, ...)",
						Required:    false,
					},
					discord.ApplicationCommandOptionBool{
						Name:        "timecode",
						Description: "Start from the t= position in the URL",
						Required:    false,
					},
					discord.ApplicationCommandOptionInt{
						Name:        "position",
						Description: "Queue position to insert at",
						Required:    false,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "playlist",
				Description: "Queue a whole playlist or album",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "url",
						Description: "The playlist or album URL",
						Required:    true,
					},
					discord.ApplicationCommandOptionInt{
						Name:        "max",
						Description: "Maximum number of songs to queue",
						Required:    false,
					},
					discord.ApplicationCommandOptionBool{
						Name:        "shuffle",
						Description: "Shuffle the playlist before queueing",
						Required:    false,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "skip",
				Description: "Skip the current song",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "count",
						Description: "Also drop this many queued songs",
						Required:    false,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "stop",
				Description: "Stop playback and clear the queue",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "seek",
				Description: "Seek within the current song",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "position",
						Description: "Target position (mm:ss or hh:mm:ss)",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "pause",
				Description: "Pause playback",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "resume",
				Description: "Resume playback",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "volume",
				Description: "Set the playback volume",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "percent",
						Description: "Volume in percent (0-200)",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "shuffle",
				Description: "Shuffle the queued songs",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "loop",
				Description: "Set the repeat mode",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "mode",
						Description: "Repeat mode",
						Required:    true,
						Choices: []discord.ApplicationCommandOptionChoiceString{
							{Name: "disabled", Value: "disabled"},
							{Name: "track", Value: "track"},
							{Name: "all", Value: "all"},
						},
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "queue",
				Description: "Show the queue",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "nowplaying",
				Description: "Show the current song and position",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "clear",
				Description: "Clear the queue, keeping the current song",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "remove",
				Description: "Remove a song from the queue",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "index",
						Description: "Queue index to remove (1 is next up)",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "leave",
				Description: "Disconnect and destroy the queue",
			},
		},
	}
}

func respond(event *events.ApplicationCommandInteractionCreate, content string) {
	_ = event.CreateMessage(discord.MessageCreate{Content: content})
}

func respondDeferred(event *events.ApplicationCommandInteractionCreate, content string) {
	_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.MessageUpdate{Content: &content})
}

// joinUserChannel connects the queue to the channel the invoking user
// sits in.
func joinUserChannel(q *dmp.Queue, event *events.ApplicationCommandInteractionCreate) error {
	voiceState, ok := event.Client().Caches.VoiceState(*event.GuildID(), event.User().ID)
	if !ok || voiceState.ChannelID == nil {
		return fmt.Errorf("you need to be in a voice channel")
	}
	return q.Join(context.Background(), *voiceState.ChannelID)
}

func handlePlay(player *dmp.Player, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	query := data.String("query")
	_ = event.DeferCreateMessage(false)

	q := getQueue(player, event)
	if err := joinUserChannel(q, event); err != nil {
		respondDeferred(event, "Failed to join voice: "+err.Error())
		return
	}

	opts := dmp.DefaultPlayOptions()
	if filters, ok := data.OptString("filters"); ok {
		opts.Filters = splitFilters(filters)
	}
	if timecode, ok := data.OptBool("timecode"); ok {
		opts.Timecode = timecode
	}
	if position, ok := data.OptInt("position"); ok {
		opts.Index = position
	}

	song, err := q.Play(context.Background(), query, opts)
	if err != nil {
		respondDeferred(event, "Failed to play: "+err.Error())
		return
	}
	respondDeferred(event, "🎶 Queued: ["+song.Name+"]("+song.URL+")")
}

func handlePlaylist(player *dmp.Player, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	url := data.String("url")
	_ = event.DeferCreateMessage(false)

	q := getQueue(player, event)
	if err := joinUserChannel(q, event); err != nil {
		respondDeferred(event, "Failed to join voice: "+err.Error())
		return
	}

	opts := dmp.DefaultPlaylistOptions()
	if max, ok := data.OptInt("max"); ok && max > 0 {
		opts.MaxSongs = max
	}
	if shuffle, ok := data.OptBool("shuffle"); ok {
		opts.Shuffle = shuffle
	}

	pl, err := q.Playlist(context.Background(), url, opts)
	if err != nil {
		respondDeferred(event, "Failed to queue playlist: "+err.Error())
		return
	}
	respondDeferred(event, fmt.Sprintf("📜 Queued **%s** (%d songs)", pl.Name, len(pl.Songs)))
}

func handleSkip(player *dmp.Player, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	q := player.GetQueue(*event.GuildID())
	if q == nil {
		respond(event, "Nothing is playing.")
		return
	}
	count, _ := data.OptInt("count")
	next, err := q.Skip(count)
	if err != nil {
		respond(event, "Failed to skip: "+err.Error())
		return
	}
	if next == nil {
		respond(event, "⏭️ Skipped. The queue is now empty.")
		return
	}
	respond(event, "⏭️ Skipped. Up next: "+next.Name)
}

func handleStop(player *dmp.Player, event *events.ApplicationCommandInteractionCreate) {
	q := player.GetQueue(*event.GuildID())
	if q == nil {
		respond(event, "Nothing is playing.")
		return
	}
	if err := q.Stop(); err != nil {
		respond(event, "Failed to stop: "+err.Error())
		return
	}
	respond(event, "🛑 Stopped.")
}

func handleSeek(player *dmp.Player, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	q := player.GetQueue(*event.GuildID())
	if q == nil {
		respond(event, "Nothing is playing.")
		return
	}
	position := data.String("position")
	ms := dmp.TimeToMs(position)
	if _, err := q.Seek(context.Background(), ms); err != nil {
		respond(event, "Failed to seek: "+err.Error())
		return
	}
	respond(event, "⏩ Seeked to "+dmp.MsToTime(ms))
}

func handlePause(player *dmp.Player, event *events.ApplicationCommandInteractionCreate, paused bool) {
	q := player.GetQueue(*event.GuildID())
	if q == nil {
		respond(event, "Nothing is playing.")
		return
	}
	if err := q.SetPaused(paused); err != nil {
		respond(event, "Failed: "+err.Error())
		return
	}
	if paused {
		respond(event, "⏸️ Paused.")
	} else {
		respond(event, "▶️ Resumed.")
	}
}

func handleVolume(player *dmp.Player, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	q := player.GetQueue(*event.GuildID())
	if q == nil {
		respond(event, "Nothing is playing.")
		return
	}
	percent := data.Int("percent")
	if percent < 0 || percent > 200 {
		respond(event, "Volume must be between 0 and 200.")
		return
	}
	if err := q.SetVolume(percent); err != nil {
		respond(event, "Failed to set volume: "+err.Error())
		return
	}
	persistSettings(q)
	respond(event, fmt.Sprintf("🔊 Volume set to %d%% (applies from the next song).", percent))
}

func handleShuffle(player *dmp.Player, event *events.ApplicationCommandInteractionCreate) {
	q := player.GetQueue(*event.GuildID())
	if q == nil {
		respond(event, "Nothing is playing.")
		return
	}
	if _, err := q.Shuffle(); err != nil {
		respond(event, "Failed to shuffle: "+err.Error())
		return
	}
	respond(event, "🔀 Shuffled the queue.")
}

func handleLoop(player *dmp.Player, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	q := player.GetQueue(*event.GuildID())
	if q == nil {
		respond(event, "Nothing is playing.")
		return
	}
	var mode dmp.RepeatMode
	switch data.String("mode") {
	case "track":
		mode = dmp.RepeatModeTrack
	case "all":
		mode = dmp.RepeatModeAll
	default:
		mode = dmp.RepeatModeDisabled
	}
	changed, err := q.SetRepeatMode(mode)
	if err != nil {
		respond(event, "Failed to set repeat mode: "+err.Error())
		return
	}
	persistSettings(q)
	if !changed {
		respond(event, "Repeat mode is already "+mode.String()+".")
		return
	}
	respond(event, "🔁 Repeat mode set to "+mode.String()+".")
}

func handleQueue(player *dmp.Player, event *events.ApplicationCommandInteractionCreate) {
	q := player.GetQueue(*event.GuildID())
	if q == nil {
		respond(event, "The queue is empty.")
		return
	}
	songs := q.Songs()
	if len(songs) == 0 {
		respond(event, "The queue is empty.")
		return
	}

	var b strings.Builder
	for i, s := range songs {
		if i == 0 {
			fmt.Fprintf(&b, "▶️ **%s** (%s)\n", s.Name, s.Duration)
			continue
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i, s.Name, s.Duration)
		if i >= 15 {
			fmt.Fprintf(&b, "... and %d more\n", len(songs)-i-1)
			break
		}
	}
	respond(event, b.String())
}

func handleNowPlaying(player *dmp.Player, event *events.ApplicationCommandInteractionCreate) {
	q := player.GetQueue(*event.GuildID())
	if q == nil {
		respond(event, "Nothing is playing.")
		return
	}
	song := q.NowPlaying()
	if song == nil {
		respond(event, "Nothing is playing.")
		return
	}
	bar, err := q.CreateProgressBar(20)
	if err != nil {
		respond(event, "🎶 "+song.String())
		return
	}
	respond(event, "🎶 "+song.String()+"\n"+bar)
}

func handleClear(player *dmp.Player, event *events.ApplicationCommandInteractionCreate) {
	q := player.GetQueue(*event.GuildID())
	if q == nil {
		respond(event, "The queue is empty.")
		return
	}
	if err := q.ClearQueue(); err != nil {
		respond(event, "Failed to clear: "+err.Error())
		return
	}
	respond(event, "🧹 Cleared the queue.")
}

func handleRemove(player *dmp.Player, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	q := player.GetQueue(*event.GuildID())
	if q == nil {
		respond(event, "The queue is empty.")
		return
	}
	index := data.Int("index")
	song, err := q.Remove(index)
	if err != nil {
		respond(event, "Failed to remove: "+err.Error())
		return
	}
	respond(event, "🗑️ Removed "+song.Name+".")
}

func handleLeave(player *dmp.Player, event *events.ApplicationCommandInteractionCreate) {
	q := player.GetQueue(*event.GuildID())
	if q == nil {
		respond(event, "Not connected.")
		return
	}
	q.Leave(context.Background())
	respond(event, "👋 Disconnected.")
}

func splitFilters(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
