package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"dm-chat/internal/auth"

	"github.com/gorilla/websocket"
)

var (
	wsURL     = flag.String("url", "ws://localhost:8080/ws", "websocket endpoint")
	pairCount = flag.Int("pairs", 50, "number of user pairs (⚠️ start small)")
	msgCount  = flag.Int("messages", 20, "messages sent by each user")
	issuer    = flag.String("issuer", "go-chat-app", "JWT issuer expected by the server")
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var received atomic.Int64

func main() {
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("❌ JWT_SECRET must match the server's")
	}
	tokens := auth.NewService(secret, *issuer)

	log.Printf("🔥 STARTING STRESS TEST: %d Users, %d Messages each...", *pairCount*2, *msgCount)
	start := time.Now()
	var wg sync.WaitGroup

	// Pairs: u_0_a talks to u_0_b, u_1_a talks to u_1_b...
	for i := 0; i < *pairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(tokens, pairID)
		}(i)
	}

	wg.Wait()
	want := int64(*pairCount * 2 * *msgCount)
	log.Printf("✅ LOAD TEST COMPLETE in %s: %d/%d messages delivered live", time.Since(start).Round(time.Millisecond), received.Load(), want)
}

func runPair(tokens *auth.Service, pairID int) {
	userA := fmt.Sprintf("u_%d_a", pairID)
	userB := fmt.Sprintf("u_%d_b", pairID)

	connA := connect(tokens, userA)
	if connA == nil {
		return
	}
	defer connA.Close()
	connB := connect(tokens, userB)
	if connB == nil {
		return
	}
	defer connB.Close()

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go chat(&wsWg, connA, userA, userB)
	go chat(&wsWg, connB, userB, userA)
	wsWg.Wait()
}

func connect(tokens *auth.Service, user string) *websocket.Conn {
	token, err := tokens.Issue(user, time.Hour)
	if err != nil {
		log.Printf("❌ Token Failed [%s]: %v", user, err)
		return nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", *wsURL, token), nil)
	if err != nil {
		log.Printf("❌ WS Connect Fail [%s]: %v", user, err)
		return nil
	}
	if err := send(conn, "join", user); err != nil {
		log.Printf("❌ Join Fail [%s]: %v", user, err)
		conn.Close()
		return nil
	}
	return conn
}

// chat sends msgCount messages to peer while counting the ones peer sends back,
// then marks everything from peer as seen.
func chat(wg *sync.WaitGroup, conn *websocket.Conn, user, peer string) {
	defer wg.Done()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		got := 0
		for got < *msgCount {
			conn.SetReadDeadline(time.Now().Add(10 * time.Second))
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				log.Printf("❌ Read Fail [%s]: %v (%d/%d received)", user, err, got, *msgCount)
				return
			}
			if f.Event == "receive_message" {
				got++
				received.Add(1)
			}
		}
	}()

	for i := 0; i < *msgCount; i++ {
		err := send(conn, "private_message", map[string]string{
			"recipient": peer,
			"message":   fmt.Sprintf("LoadTest Msg %d from %s", i, user),
		})
		if err != nil {
			log.Printf("❌ Send Fail [%s]: %v", user, err)
			break
		}
		// Small sleep to prevent instant localhost bottleneck (simulate real network)
		time.Sleep(10 * time.Millisecond)
	}

	<-readDone
	if err := send(conn, "mark_as_seen", map[string]string{"senderId": peer, "recipientId": user}); err != nil {
		log.Printf("❌ Mark Seen Fail [%s]: %v", user, err)
	}
	log.Printf("✅ %s finished sending %d msgs", user, *msgCount)
}

// send writes one frame. gorilla allows a single concurrent writer, and chat
// is the only writer per conn.
func send(conn *websocket.Conn, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(frame{Event: event, Data: raw})
}
