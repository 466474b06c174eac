package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	baseURL      = "http://127.0.0.1:18090"
	numWorkers   = 50
	testDuration = 10 * time.Second
	numTargets   = 50
	numVisitors  = 200
	ownerToken   = "loadtest-own"
)

var agents = []string{
	"Mozilla/5.0 (X11; Linux x86_64)",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
}

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

func main() {
	fmt.Println("=== widgetd Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s\n", numWorkers, testDuration)
	fmt.Printf("Targets: %d | Visitors: %d\n\n", numTargets, numVisitors)

	// Wait for server
	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	// Phase 0: create one widget of each type per target. 201 and 409
	// (already created on a previous run) both count as success.
	fmt.Println("\n--- Phase 0: Creating widgets ---")
	created := 0
	for i := 0; i < numTargets; i++ {
		for _, widgetType := range []string{"counter", "like", "ranking", "bbs"} {
			r := doCreate(widgetType, target(i))
			if !r.err {
				created++
			}
		}
	}
	fmt.Printf("  %d/%d widgets ready\n", created, numTargets*4)

	// Phase 1: write-only visit traffic
	fmt.Println("\n--- Phase 1: Seeding visits (POST /counter/visit) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		return doVisit(rng)
	})

	// Phase 2: Mixed read/write load
	fmt.Println("\n--- Phase 2: Mixed load (70% POST, 30% GET) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.35:
			return doVisit(rng)
		case r < 0.50:
			return doToggleLike(rng)
		case r < 0.62:
			return doSubmitScore(rng)
		case r < 0.70:
			return doPostMessage(rng)
		case r < 0.80:
			return doGetCounts(rng)
		case r < 0.88:
			return doGetLike(rng)
		case r < 0.95:
			return doGetTop(rng)
		default:
			return doGetPage(rng)
		}
	})

	// Phase 3: Read-heavy load
	fmt.Println("\n--- Phase 3: Read-heavy load (10% POST, 90% GET) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.10:
			return doVisit(rng)
		case r < 0.40:
			return doGetCounts(rng)
		case r < 0.60:
			return doGetLike(rng)
		case r < 0.80:
			return doGetTop(rng)
		default:
			return doGetPage(rng)
		}
	})
}

func target(i int) string {
	return fmt.Sprintf("https://example.com/page-%d", i)
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	var totalOps atomic.Int64
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					r := workFn(rng)
					totalOps.Add(1)
					results <- r
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-26s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + repeat("-", 92))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		avg := avgDuration(s.latencies)
		p50 := percentile(s.latencies, 0.50)
		p95 := percentile(s.latencies, 0.95)
		p99 := percentile(s.latencies, 0.99)

		fmt.Printf("  %-26s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors, fmtDur(avg), fmtDur(p50), fmtDur(p95), fmtDur(p99))
	}

	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + repeat("-", 92))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, rps)
}

func asVisitor(req *http.Request, rng *rand.Rand) {
	visitor := rng.Intn(numVisitors)
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.%d.%d", visitor/250, visitor%250+1))
	req.Header.Set("User-Agent", agents[visitor%len(agents)])
}

func postJSON(endpoint, path string, body map[string]interface{}, rng *rand.Rand, okStatus int) result {
	data, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(data))
	if err != nil {
		return result{endpoint, 0, 0, true}
	}
	req.Header.Set("Content-Type", "application/json")
	if rng != nil {
		asVisitor(req, rng)
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{endpoint, resp.StatusCode, lat, resp.StatusCode != okStatus}
}

func getJSON(endpoint, path string, rng *rand.Rand) result {
	req, err := http.NewRequest(http.MethodGet, baseURL+path, nil)
	if err != nil {
		return result{endpoint, 0, 0, true}
	}
	asVisitor(req, rng)

	start := time.Now()
	resp, err := httpClient.Do(req)
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{endpoint, resp.StatusCode, lat, resp.StatusCode != 200}
}

func doCreate(widgetType, target string) result {
	r := postJSON("POST /widget", "/widget", map[string]interface{}{
		"type":       widgetType,
		"target":     target,
		"ownerToken": ownerToken,
	}, nil, 201)
	if r.status == 409 {
		r.err = false
	}
	return r
}

func doVisit(rng *rand.Rand) result {
	return postJSON("POST /counter/visit", "/counter/visit", map[string]interface{}{
		"target": target(rng.Intn(numTargets)),
	}, rng, 200)
}

func doToggleLike(rng *rand.Rand) result {
	return postJSON("POST /like/toggle", "/like/toggle", map[string]interface{}{
		"target": target(rng.Intn(numTargets)),
	}, rng, 200)
}

func doSubmitScore(rng *rand.Rand) result {
	return postJSON("POST /ranking/score", "/ranking/score", map[string]interface{}{
		"target": target(rng.Intn(numTargets)),
		"name":   fmt.Sprintf("player_%d", rng.Intn(numVisitors)),
		"score":  float64(rng.Intn(100000)) / 10.0,
	}, rng, 200)
}

func doPostMessage(rng *rand.Rand) result {
	return postJSON("POST /bbs/message", "/bbs/message", map[string]interface{}{
		"target": target(rng.Intn(numTargets)),
		"author": fmt.Sprintf("visitor_%d", rng.Intn(numVisitors)),
		"body":   fmt.Sprintf("load test message %d", rng.Int63()),
	}, rng, 201)
}

func doGetCounts(rng *rand.Rand) result {
	return getJSON("GET /counter", fmt.Sprintf("/counter?target=%s", target(rng.Intn(numTargets))), rng)
}

func doGetLike(rng *rand.Rand) result {
	return getJSON("GET /like", fmt.Sprintf("/like?target=%s", target(rng.Intn(numTargets))), rng)
}

func doGetTop(rng *rand.Rand) result {
	return getJSON("GET /ranking", fmt.Sprintf("/ranking?target=%s&limit=%d", target(rng.Intn(numTargets)), rng.Intn(10)+1), rng)
}

func doGetPage(rng *rand.Rand) result {
	return getJSON("GET /bbs", fmt.Sprintf("/bbs?target=%s&page=%d", target(rng.Intn(numTargets)), rng.Intn(3)+1), rng)
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
