// Command playdeck is a terminal client for a networked media player.
// It keeps a live view of the server's queue and playback state over a
// reconnecting websocket and issues transport commands typed on stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"playdeck/internal/api"
	"playdeck/internal/protocol"
	"playdeck/internal/session"
	"playdeck/internal/transport"
)

func main() {
	_ = godotenv.Load()
	serverURL := envOr("PLAYDECK_SERVER", "http://localhost:3000")

	client, err := api.NewClient(serverURL)
	if err != nil {
		log.Fatalf("invalid server URL: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(client, transport.New(serverURL))
	sess.Start(ctx)
	defer sess.Close()

	log.Printf("playdeck connecting to %s", serverURL)

	// Detached reader: blocked stdin reads cannot be cancelled, and the
	// process is exiting anyway when this goroutine is abandoned.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watchSession(ctx, sess) })
	g.Go(func() error { return runCommands(ctx, lines, sess, client) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

// watchSession prints state transitions as the server pushes them.
func watchSession(ctx context.Context, sess *session.Session) error {
	connected := sess.Connected.Subscribe()
	defer sess.Connected.Unsubscribe(connected)
	track := sess.CurrentTrack.Subscribe()
	defer sess.CurrentTrack.Unsubscribe(track)
	player := sess.Player.Subscribe()
	defer sess.Player.Unsubscribe(player)
	queue := sess.Queue.Subscribe()
	defer sess.Queue.Unsubscribe(queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up := <-connected:
			if up {
				log.Println("connected")
			} else {
				log.Println("disconnected, retrying...")
			}
		case t := <-track:
			if t == nil {
				log.Println("nothing playing")
			} else {
				log.Printf("now playing: %s", trackLabel(*t))
			}
		case p := <-player:
			if p != nil {
				log.Printf("player: %s", p.State)
			}
		case <-queue:
			view := sess.View()
			log.Printf("queue: %d played, %d upcoming", len(view.History), len(view.Upcoming))
		case err := <-sess.Errors():
			log.Printf("error: %v", err)
		}
	}
}

func runCommands(ctx context.Context, lines <-chan string, sess *session.Session, client *api.Client) error {
	fmt.Println("commands: play pause stop next prev add <url> stations tune <n> queue quit")

	for {
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return context.Canceled
			}
			line = l
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "play":
			sess.Play()
		case "pause":
			sess.Pause()
		case "stop":
			sess.Stop()
		case "next":
			sess.SkipNext()
		case "prev":
			sess.SkipPrevious()
		case "add":
			if len(fields) < 2 {
				fmt.Println("usage: add <url>")
				continue
			}
			sess.Enqueue(fields[1])
		case "stations":
			printStations(ctx, client)
		case "tune":
			if len(fields) < 2 {
				fmt.Println("usage: tune <station number>")
				continue
			}
			tuneStation(ctx, sess, client, fields[1])
		case "queue":
			printQueue(sess)
		case "quit":
			return context.Canceled
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func printStations(ctx context.Context, client *api.Client) {
	stations, err := client.RadioStations(ctx)
	if err != nil {
		log.Printf("listing stations: %v", err)
		return
	}
	for i, st := range stations {
		fmt.Printf("%2d. %s\n", i+1, st.Name)
	}
}

func tuneStation(ctx context.Context, sess *session.Session, client *api.Client, arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		fmt.Println("usage: tune <station number>")
		return
	}
	stations, err := client.RadioStations(ctx)
	if err != nil {
		log.Printf("listing stations: %v", err)
		return
	}
	if n > len(stations) {
		fmt.Printf("no station %d (have %d)\n", n, len(stations))
		return
	}
	sess.TuneRadio(stations[n-1].StreamURL)
}

func printQueue(sess *session.Session) {
	view := sess.View()
	for _, item := range view.History {
		fmt.Printf("    %s\n", trackLabel(item.Track))
	}
	if now := sess.NowPlaying(); now != nil {
		fmt.Printf("  > %s\n", trackLabel(*now))
	}
	for _, item := range view.Upcoming {
		fmt.Printf("    %s\n", trackLabel(item.Track))
	}
}

func trackLabel(t protocol.TrackInfo) string {
	if t.SecondaryLabel != "" {
		return t.PrimaryLabel + " - " + t.SecondaryLabel
	}
	return t.PrimaryLabel
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
