package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	path := flag.String("path", "/api/v1/workshops?limit=1", "path to request")
	apiKey := flag.String("api-key", "", "API key sent in X-API-Key")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 100, "Requests per second limit")
	flag.Parse()

	target := *baseURL + *path
	log.Printf("Starting load test on %s", target)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var okCount, quotaCount, limitedCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 10)

	for range *concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 5 * time.Second}

			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					errorCount.Add(1)
					continue
				}
				req.Header.Set("X-API-Key", *apiKey)
				req.Header.Set("X-Request-ID", uuid.NewString())

				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						errorCount.Add(1)
					}
					continue
				}
				resp.Body.Close()

				switch {
				case resp.StatusCode == http.StatusOK:
					okCount.Add(1)
				case resp.StatusCode == http.StatusTooManyRequests:
					// quota exhaustion and the per-key rate limit share 429
					quotaCount.Add(1)
				case resp.StatusCode == http.StatusServiceUnavailable:
					limitedCount.Add(1)
				default:
					errorCount.Add(1)
				}
			}
		}()
	}

	wg.Wait()

	total := okCount.Load() + quotaCount.Load() + limitedCount.Load() + errorCount.Load()
	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", total)
	log.Printf("Successful (200): %d", okCount.Load())
	log.Printf("Quota or rate limited (429): %d", quotaCount.Load())
	log.Printf("Unavailable (503): %d", limitedCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	fmt.Printf("Actual RPS: %.2f\n", float64(total)/duration.Seconds())
}
