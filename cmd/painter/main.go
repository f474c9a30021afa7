package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
)

type pixel struct {
	X int `json:"x"`
	Y int `json:"y"`
	C int `json:"c"`
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "pixelhub base URL")
	nickname := flag.String("nickname", fmt.Sprintf("painter_%d", rand.Intn(1000000)), "nickname to paint as")
	width := flag.Int("width", 2000, "canvas width")
	height := flag.Int("height", 2000, "canvas height")
	colors := flag.Int("colors", 128, "number of colors")
	interval := flag.Duration("interval", time.Second, "delay between placement attempts")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	// Register; an existing nickname is fine, we just keep painting as it.
	body, _ := json.Marshal(map[string]string{"nickname": *nickname})
	resp, err := client.Post(*addr+"/register", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("failed to register: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		log.Fatalf("unexpected register status: %s", resp.Status)
	}
	fmt.Printf("painting as %s against %s every %s\n", *nickname, *addr, *interval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	placed := 0
	for {
		select {
		case <-stop:
			fmt.Printf("\nplaced %d pixels, shutting down\n", placed)
			return
		case <-ticker.C:
			p := pixel{
				X: rand.Intn(*width),
				Y: rand.Intn(*height),
				C: rand.Intn(*colors),
			}
			data, _ := json.Marshal(p)

			req, err := http.NewRequest(http.MethodPost, *addr+"/pixel", bytes.NewReader(data))
			if err != nil {
				log.Fatalf("failed to build request: %v", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Nickname", *nickname)

			resp, err := client.Do(req)
			if err != nil {
				log.Printf("placement failed: %v", err)
				continue
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusAccepted {
				log.Printf("unexpected placement status: %s", resp.Status)
				continue
			}
			placed++
		}
	}
}
