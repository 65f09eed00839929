package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bippity/Invincible-Tiles/internal/eventbus"
	"github.com/nats-io/nats.go"
)

const (
	defaultNATSURL = nats.DefaultURL
	timeFormat     = "2006-01-02T15:04:05Z"
)

// event-cli читает историю изменений черного списка из JetStream стрима.
func main() {
	var (
		url        = flag.String("url", defaultNATSURL, "NATS server URL")
		stream     = flag.String("stream", "INVINCIBLE", "JetStream stream name")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		nodes      = flag.String("nodes", "", "Source node filter (comma-separated)")
		since      = flag.String("since", "1h", "Time duration since now (e.g., 1h, 30m) or RFC3339 time")
		limit      = flag.Int("limit", 100, "Maximum number of events (without -follow)")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
	)
	flag.Parse()

	start, err := parseSinceTime(*since, time.Now())
	if err != nil {
		log.Fatalf("❌ Invalid since time: %v", err)
	}

	nc, err := nats.Connect(*url, nats.Name("invincible-tiles-event-cli"))
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		log.Fatalf("❌ JetStream unavailable: %v", err)
	}

	filter := eventbus.Filter{Types: parseStringList(*eventTypes), Sources: parseStringList(*nodes)}
	subject := strings.ToLower(*stream) + ".events.*"

	msgs := make(chan *nats.Msg, 256)
	sub, err := js.ChanSubscribe(subject, msgs,
		nats.BindStream(*stream), nats.OrderedConsumer(), nats.StartTime(start))
	if err != nil {
		log.Fatalf("❌ Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	fmt.Printf("🎬 Tailing %s since %s (limit: %d, follow: %v)\n", subject, start.UTC().Format(timeFormat), *limit, *follow)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	count := 0
	idle := time.NewTimer(2 * time.Second)
	defer idle.Stop()
	for {
		select {
		case msg := <-msgs:
			var ev eventbus.Envelope
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				fmt.Printf("⚠️  Bad message on %s: %v\n", msg.Subject, err)
				continue
			}
			if !matches(&ev, filter) {
				continue
			}
			printEvent(&ev)
			count++
			if !*follow && count >= *limit {
				fmt.Printf("\n📊 Total events: %d\n", count)
				return
			}
			idle.Reset(2 * time.Second)
		case <-idle.C:
			// история вычитана
			if !*follow {
				fmt.Printf("\n📊 Total events: %d\n", count)
				return
			}
		case <-sigCh:
			fmt.Printf("\n📊 Total events: %d\n", count)
			return
		}
	}
}

func matches(ev *eventbus.Envelope, f eventbus.Filter) bool {
	in := func(v string, list []string) bool {
		if len(list) == 0 {
			return true
		}
		for _, item := range list {
			if strings.EqualFold(item, v) {
				return true
			}
		}
		return false
	}
	return in(ev.EventType, f.Types) && in(ev.Source, f.Sources)
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s [%s] %s\n", ev.Timestamp.Local().Format("15:04:05"), ev.Source, ev.EventType, ev.ID)

	if ev.EventType != eventbus.EventBlacklistChanged {
		return
	}
	ch, err := eventbus.DecodeChange(ev)
	if err != nil {
		fmt.Printf("  ⚠️  %v\n", err)
		return
	}
	zone := ch.Zone
	if zone == "" {
		zone = "(global)"
	}
	fmt.Printf("  %s %s %d in %s\n", ch.Op, ch.Category, ch.ID, zone)
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m" или абсолютное
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return from, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		// Пробуем парсить как абсолютное время
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
