package main

import (
	"context"
	"flag"
	"log"
	"os"

	"pathtiles/internal/bot"
)

func main() {
	var (
		url      = flag.String("url", "ws://127.0.0.1:7878/ws", "server websocket URL")
		name     = flag.String("name", "bot", "username")
		gameID   = flag.String("game", "", "game id to join (empty: create a new game)")
		startAt  = flag.Int("start-at", 0, "start the game once this many players are seated")
		strategy = flag.String("strategy", "", "path to a Lua strategy script defining pick(moves)")
	)
	flag.Parse()

	opts := bot.Options{URL: *url, Name: *name, GameID: *gameID, StartAt: *startAt}
	if *strategy != "" {
		script, err := os.ReadFile(*strategy)
		if err != nil {
			log.Fatal(err)
		}
		opts.Strategy, err = bot.LuaStrategy(string(script))
		if err != nil {
			log.Fatal(err)
		}
	}

	result, err := bot.Run(context.Background(), opts)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("game %s over, winners: %v", result.GameID, result.Winners)
}
