package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	dmp "github.com/ArthesTN/discord-music-player"
	"github.com/ArthesTN/discord-music-player/sys"
)

func main() {
	cfg, err := sys.LoadConfig()
	if err != nil {
		sys.LogFatal("Failed to load config: %v", err)
	}

	silent := flag.Bool("silent", false, "Disable all log output")
	skipReg := flag.Bool("skip-reg", false, "Skip command registration")
	flag.Parse()

	sys.InitLogger(*silent, true)

	if err := sys.InitDatabase(context.Background(), cfg.DatabasePath); err != nil {
		sys.LogFatal("Failed to initialize database: %v", err)
	}
	defer sys.CloseDatabase()

	if cfg.FFmpegPath != "" {
		dmp.FFmpegPath = cfg.FFmpegPath
	}

	if err := run(cfg, *skipReg); err != nil {
		sys.LogFatal("%v", err)
	}
}

func run(cfg *sys.Config, skipReg bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	client, err := createClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create Discord client: %w", err)
	}
	defer client.Close(ctx)

	player, err := buildPlayer(ctx, cfg, client)
	if err != nil {
		return fmt.Errorf("failed to build player: %w", err)
	}
	attachPlayer(player)

	if !skipReg {
		if err := registerCommands(client, cfg.GuildID); err != nil {
			sys.LogError("Command registration failed: %v", err)
		}
	} else {
		sys.LogInfo("Skipping command registration as requested.")
	}

	if err := client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	<-ctx.Done()

	sys.LogInfo("Shutting down...")
	shutdownQueues(player)

	if botUser, ok := client.Caches.SelfUser(); ok {
		sys.LogInfo("Shutting down %s...", botUser.Username)
	}
	return nil
}

// shutdownQueues tears down every live queue so voice connections close
// before the gateway does.
func shutdownQueues(player *dmp.Player) {
	for _, q := range player.Queues() {
		q.Leave(context.Background())
	}
}
