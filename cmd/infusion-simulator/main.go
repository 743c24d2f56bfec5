// Command infusion-simulator emulates the two sensor bridges over TCP so a
// full monitor stack can be exercised on a bench without hardware.
//
// It serves a load-cell feed (one gross-grams line per second) and a drip
// feed (one line per synthetic drop), draining a virtual bag at the
// configured drip rate and grams-per-drop.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"
)

type bag struct {
	mu      sync.Mutex
	liquidG float64
	tareG   float64
	wpd     float64
}

func (b *bag) drip() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.liquidG <= 0 {
		return false
	}
	b.liquidG -= b.wpd
	if b.liquidG < 0 {
		b.liquidG = 0
	}
	return true
}

func (b *bag) gross(noise float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.liquidG + b.tareG + noise
}

func main() {
	massAddr := flag.String("mass-listen", ":9101", "Listen address for the load-cell feed")
	dripAddr := flag.String("drip-listen", ":9102", "Listen address for the drip feed")
	initial := flag.Float64("initial-grams", 500, "Initial liquid mass in grams")
	tare := flag.Float64("tare-grams", 72, "Fixture plus empty bag tare in grams")
	wpd := flag.Float64("wpd", 0.05, "Grams per drop")
	dripRate := flag.Float64("drip-rate", 2.0, "Drops per second (0 to simulate a stall)")
	noise := flag.Float64("noise", 0.5, "Load-cell noise standard deviation in grams")
	flag.Parse()

	b := &bag{liquidG: *initial, tareG: *tare, wpd: *wpd}

	fmt.Printf("simulating %.0f g bag, %.2f dps at %.3f g/drop\n", *initial, *dripRate, *wpd)
	fmt.Printf("load-cell feed on %s, drip feed on %s\n", *massAddr, *dripAddr)

	go serveLines(*massAddr, time.Second, func() (string, bool) {
		return fmt.Sprintf("%.2f", b.gross(rand.NormFloat64()**noise)), true
	})

	if *dripRate > 0 {
		interval := time.Duration(float64(time.Second) / *dripRate)
		go serveLines(*dripAddr, interval, func() (string, bool) {
			if !b.drip() {
				return "", false
			}
			return "D", true
		})
	} else {
		go serveLines(*dripAddr, time.Hour, func() (string, bool) { return "", false })
	}

	select {}
}

// serveLines accepts connections and writes one generated line per interval
// to every connected client.
func serveLines(addr string, interval time.Duration, gen func() (string, bool)) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Printf("cannot listen on %s: %v\n", addr, err)
		return
	}

	var mu sync.Mutex
	conns := make(map[net.Conn]struct{})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			fmt.Printf("client connected on %s from %v\n", addr, conn.RemoteAddr())
			mu.Lock()
			conns[conn] = struct{}{}
			mu.Unlock()
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		line, ok := gen()
		if !ok {
			continue
		}
		mu.Lock()
		for conn := range conns {
			if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
				conn.Close()
				delete(conns, conn)
			}
		}
		mu.Unlock()
	}
}
