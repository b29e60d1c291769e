package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/gorilla/websocket"
)

type SeedCmd struct {
	URL      string  `arg:"--url,required" help:"Dispatch base URL"`
	Couriers int     `arg:"--couriers" default:"10" help:"Number of couriers to register"`
	Capacity int     `arg:"--capacity" default:"5" help:"Capacity per courier"`
	Lat      float64 `arg:"--lat" default:"52.52" help:"Center latitude"`
	Lng      float64 `arg:"--lng" default:"13.405" help:"Center longitude"`
}

type SendCmd struct {
	URL   string  `arg:"--url,required" help:"Dispatch base URL"`
	Rate  int     `arg:"--rate" default:"10" help:"Orders per second"`
	Count int     `arg:"--count" default:"100" help:"Total orders to send"`
	Lat   float64 `arg:"--lat" default:"52.52" help:"Center latitude"`
	Lng   float64 `arg:"--lng" default:"13.405" help:"Center longitude"`
}

type WatchCmd struct {
	URL      string        `arg:"--url,required" help:"Dispatch base URL"`
	Duration time.Duration `arg:"--duration" default:"30s" help:"How long to watch"`
}

type args struct {
	Seed  *SeedCmd  `arg:"subcommand:seed" help:"Register a fleet of test couriers"`
	Send  *SendCmd  `arg:"subcommand:send" help:"Submit orders at a fixed rate"`
	Watch *WatchCmd `arg:"subcommand:watch" help:"Stream assignment events over the websocket"`
}

func (args) Description() string {
	return "dispatchit: load testing tool for the Dispatch assignment service"
}

func main() {
	var a args
	p := arg.MustParse(&a)

	var err error
	switch {
	case a.Seed != nil:
		err = runSeed(a.Seed)
	case a.Send != nil:
		err = runSend(a.Send)
	case a.Watch != nil:
		err = runWatch(a.Watch)
	default:
		p.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// jitter returns a coordinate offset of roughly a few kilometres.
func jitter() float64 {
	return (rand.Float64() - 0.5) * 0.08
}

func postJSON(url string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return http.Post(url, "application/json", bytes.NewReader(payload))
}

func runSeed(cmd *SeedCmd) error {
	for i := 0; i < cmd.Couriers; i++ {
		resp, err := postJSON(cmd.URL+"/api/couriers", map[string]any{
			"name":     fmt.Sprintf("courier-%02d", i+1),
			"location": map[string]float64{"lat": cmd.Lat + jitter(), "lng": cmd.Lng + jitter()},
			"capacity": cmd.Capacity,
			"rating":   3.0 + rand.Float64()*2,
		})
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("courier create returned %d", resp.StatusCode)
		}
	}
	fmt.Printf("registered %d couriers\n", cmd.Couriers)
	return nil
}

func runSend(cmd *SendCmd) error {
	priorities := []string{"Urgent", "High", "Normal", "Low"}
	interval := time.Second / time.Duration(cmd.Rate)
	sent, rejected := 0, 0

	for i := 0; i < cmd.Count; i++ {
		resp, err := postJSON(cmd.URL+"/api/orders", map[string]any{
			"pickup":   map[string]float64{"lat": cmd.Lat + jitter(), "lng": cmd.Lng + jitter()},
			"dropoff":  map[string]float64{"lat": cmd.Lat + jitter(), "lng": cmd.Lng + jitter()},
			"priority": priorities[rand.Intn(len(priorities))],
		})
		if err != nil {
			return err
		}
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			sent++
		case http.StatusServiceUnavailable:
			rejected++
		default:
			return fmt.Errorf("order create returned %d", resp.StatusCode)
		}
		time.Sleep(interval)
	}

	fmt.Printf("sent %d orders, %d rejected by backpressure\n", sent, rejected)
	return nil
}

func runWatch(cmd *WatchCmd) error {
	wsURL := strings.Replace(cmd.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", wsURL, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(cmd.Duration)
	assignments, failures, missed := 0, 0, uint64(0)

	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg["type"] {
		case "assignment":
			assignments++
		case "order_failed":
			failures++
		case "lagged":
			if n, ok := msg["missed"].(float64); ok {
				missed += uint64(n)
			}
		}
	}

	fmt.Printf("saw %d assignments, %d failures, missed %d events\n", assignments, failures, missed)
	return nil
}
