package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/campus-quiz-core/internal/gateway"
	"github.com/park285/campus-quiz-core/pkg/quizdto"
)

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("url", envOr("QUIZ_WS_URL", "ws://localhost:8080/ws"), "gateway websocket url")
	topic := flag.String("topic", "dsa", "match topic")
	wait := flag.Duration("wait", 10*time.Second, "observation window")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	users := []string{"quizcheck-a", "quizcheck-b"}

	ctx, cancel := context.WithTimeout(context.Background(), *wait)
	defer cancel()

	var wg sync.WaitGroup
	for i, u := range users {
		wsURL, err := dialURL(*baseURL, u, secret)
		if err != nil {
			log.Fatalf("url: %v", err)
		}
		dctx, dcancel := context.WithTimeout(ctx, 5*time.Second)
		conn, _, err := websocket.Dial(dctx, wsURL, &websocket.DialOptions{
			CompressionMode: websocket.CompressionNoContextTakeover,
		})
		dcancel()
		if err != nil {
			log.Fatalf("ws connect error (%s): %v", u, err)
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		wg.Add(1)
		go func(user string, c *websocket.Conn) {
			defer wg.Done()
			for {
				var ev struct {
					Type    string          `json:"type"`
					Payload json.RawMessage `json:"payload"`
				}
				if err := wsjson.Read(ctx, c, &ev); err != nil {
					return
				}
				fmt.Printf("%s <- %s %s\n", user, ev.Type, ev.Payload)
			}
		}(u, conn)

		payload, _ := json.Marshal(quizdto.RequestMatch{Topic: *topic, Profile: &quizdto.Profile{Name: u}})
		if err := wsjson.Write(ctx, conn, quizdto.Envelope{Type: quizdto.TypeRequestMatch, Payload: payload}); err != nil {
			log.Fatalf("request_match (%s): %v", u, err)
		}
		if i == 0 {
			time.Sleep(200 * time.Millisecond)
		}
	}

	wg.Wait()
}

func dialURL(base, userID, secret string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if strings.TrimSpace(secret) != "" {
		tok, err := gateway.IssueToken(userID, secret, time.Hour)
		if err != nil {
			return "", err
		}
		q.Set("token", tok)
	} else {
		q.Set("userId", userID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
