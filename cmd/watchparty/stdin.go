package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/zmagdon/watchparty/internal/player"
	"github.com/zmagdon/watchparty/internal/session"
)

const usage = "Commands: play | pause | seek 120 | pct 50 | fwd 10 | back 10 | vol 80 | chat hello | time | quit"

// stdinLoop reads commands and enqueues intents. Intents that cannot be
// queued (not joined, queue full) are reported, not retried.
func stdinLoop(ctx context.Context, stop func(), sess *session.Session, p player.Adapter, seekStep float64) {
	fmt.Println(usage)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "quit", "exit":
			stop()
			return

		case "time":
			if pos, ok := p.Position(ctx); ok {
				fmt.Printf("local time: %.2fs\n", pos)
			} else {
				fmt.Println("local time: unavailable")
			}

		case "play":
			enqueue(sess, session.Intent{Kind: session.IntentPlay})

		case "pause":
			enqueue(sess, session.Intent{Kind: session.IntentPause})

		case "seek":
			if sec, ok := parseSeconds(parts); ok {
				enqueue(sess, session.Intent{Kind: session.IntentSeek, Seconds: sec})
			}

		case "pct", "percent":
			if pct, ok := parseSeconds(parts); ok {
				enqueue(sess, session.Intent{Kind: session.IntentSeekFraction, Seconds: pct / 100})
			}

		case "fwd", "forward":
			delta := seekStep
			if sec, ok := parseSeconds(parts); ok {
				delta = sec
			}
			enqueue(sess, session.Intent{Kind: session.IntentSeekRelative, Seconds: delta})

		case "back", "rewind":
			delta := seekStep
			if sec, ok := parseSeconds(parts); ok {
				delta = sec
			}
			enqueue(sess, session.Intent{Kind: session.IntentSeekRelative, Seconds: -delta})

		case "vol", "volume":
			if v, ok := parseSeconds(parts); ok {
				// volume is local only; it never touches the room
				if err := p.SetVolume(ctx, int(v)); err != nil {
					fmt.Println("volume:", err)
				}
			}

		case "chat":
			text := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
			if text != "" {
				enqueue(sess, session.Intent{Kind: session.IntentChat, Text: text})
			}

		default:
			fmt.Println(usage)
		}
	}
}

func parseSeconds(parts []string) (float64, bool) {
	if len(parts) < 2 {
		return 0, false
	}
	sec, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		fmt.Println("not a number:", parts[1])
		return 0, false
	}
	return sec, true
}

func enqueue(sess *session.Session, in session.Intent) {
	if !sess.Do(in) {
		fmt.Println("not connected (or busy); command dropped")
	}
}
