// Command loadgen fires a steady stream of requests at a backpressure-guarded
// endpoint, retrying 503 responses with jittered backoff honoring the
// server's Retry-After header. It is meant to be pointed at cmd/server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nulone/backpressure/backoff"
)

func showHelp() {
	fmt.Printf("Usage: %s [OPTIONS] URL\n", os.Args[0])
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println("\nExamples:")
	fmt.Printf("  %s -rate 20 -workers 8 http://127.0.0.1:8080/work\n", os.Args[0])
}

func main() {
	requestsPerSecond := flag.Float64("rate", 10, "target requests per second")
	workers := flag.Int("workers", 4, "number of concurrent senders")
	duration := flag.Duration("duration", 10*time.Second, "how long to run")
	maxRetries := flag.Int("max-retries", 3, "retries per request on 503 before giving up")
	help := flag.Bool("h", false, "Show help")

	flag.Parse()

	if *help || len(flag.Args()) == 0 {
		showHelp()
		return
	}
	url := flag.Arg(0)

	limiter := rate.NewLimiter(rate.Limit(*requestsPerSecond), 1)
	client := &http.Client{Timeout: 10 * time.Second}

	var sent, admitted, rejected, failed int64

	deadline := time.Now().Add(*duration)
	runCtx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				if err := limiter.Wait(runCtx); err != nil {
					return
				}
				atomic.AddInt64(&sent, 1)
				switch sendOnce(client, url, *maxRetries) {
				case outcomeAdmitted:
					atomic.AddInt64(&admitted, 1)
				case outcomeRejected:
					atomic.AddInt64(&rejected, 1)
				case outcomeFailed:
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}
	wg.Wait()

	fmt.Printf("sent=%d admitted=%d rejected=%d failed=%d\n", sent, admitted, rejected, failed)
}

type outcome int

const (
	outcomeAdmitted outcome = iota
	outcomeRejected
	outcomeFailed
)

func sendOnce(client *http.Client, url string, maxRetries int) outcome {
	b := backoff.New(50*time.Millisecond, 2*time.Second, time.Now().UnixNano())

	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return outcomeFailed
		}
		req.Header.Set("X-Request-ID", uuid.NewString())

		resp, err := client.Do(req)
		if err != nil {
			return outcomeFailed
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return outcomeAdmitted
		}
		if resp.StatusCode != http.StatusServiceUnavailable {
			return outcomeFailed
		}

		wait := b.Next()
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				wait = time.Duration(secs) * time.Second
			}
		}
		time.Sleep(wait)
	}
	return outcomeRejected
}
