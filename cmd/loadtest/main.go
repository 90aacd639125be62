// cmd/loadtest drives a running server with concurrent random order
// submissions, polls each created order until it reaches a terminal
// status, and then reports latency percentiles per route. Adapted from
// cmd/simulation's worker-pool/routeStats shape; the auth, clearing and
// settlement HTTP round trips are gone since this domain has no auth and
// settlement happens automatically on the server's own scheduler instead
// of via a client-triggered call.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minOrders     = 15
	maxOrders     = 150
	numWorkers    = 5
	pollInterval  = 500 * time.Millisecond
	pollTimeout   = 15 * time.Second
)

var (
	assetIDs = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}
	sides    = []string{"BUY", "SELL"}
)

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}
	sort.Slice(rs.durations, func(i, j int) bool { return rs.durations[i] < rs.durations[j] })

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]
	return
}

type loadClient struct {
	baseURL string
	client  *http.Client
	stats   map[string]*routeStats
}

func newLoadClient(baseURL string) *loadClient {
	return &loadClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"create": {name: "Create Order"},
			"get":    {name: "Get Order"},
		},
	}
}

type orderRequest struct {
	InvestorID string `json:"investorId"`
	AssetID    string `json:"assetId"`
	OrderType  string `json:"orderType"`
	Quantity   string `json:"quantity"`
}

type orderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func (lc *loadClient) createOrder(investorID string, req orderRequest) (string, error) {
	start := time.Now()
	defer func() { lc.stats["create"].addDuration(time.Since(start)) }()

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest("POST", lc.baseURL+"/orders", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := lc.client.Do(httpReq)
	if err != nil {
		lc.stats["create"].failures++
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		lc.stats["create"].failures++
		return "", err
	}

	if resp.StatusCode != http.StatusAccepted {
		lc.stats["create"].failures++
		return "", fmt.Errorf("create order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result orderResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		lc.stats["create"].failures++
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return result.OrderID, nil
}

func (lc *loadClient) getOrder(orderID string) (*orderResponse, error) {
	start := time.Now()
	defer func() { lc.stats["get"].addDuration(time.Since(start)) }()

	resp, err := lc.client.Get(lc.baseURL + "/orders/" + orderID)
	if err != nil {
		lc.stats["get"].failures++
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		lc.stats["get"].failures++
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		lc.stats["get"].failures++
		return nil, fmt.Errorf("get order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result orderResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (lc *loadClient) printPerformanceStats() {
	fmt.Println()
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))
	for _, stats := range lc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name, stats.totalCalls, stats.failures,
			min.Round(time.Millisecond), max.Round(time.Millisecond),
			mean.Round(time.Millisecond), median.Round(time.Millisecond),
			p95.Round(time.Millisecond), p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

func main() {
	baseURL := os.Getenv("LOADTEST_TARGET")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	lc := newLoadClient(baseURL)

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("starting load test")

	ordersChan := make(chan string, targetOrders)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			createOrders(workerID, targetOrders/numWorkers, lc, ordersChan)
		}(i)
	}
	wg.Wait()
	close(ordersChan)

	var orderIDs []string
	for id := range ordersChan {
		orderIDs = append(orderIDs, id)
	}
	log.Info().Int("orders_created", len(orderIDs)).Msg("all orders created, polling for settlement")

	settled, rejected, cancelled, timedOut := 0, 0, 0, 0
	for _, orderID := range orderIDs {
		status := pollUntilTerminal(lc, orderID)
		switch status {
		case "SETTLED":
			settled++
		case "REJECTED":
			rejected++
		case "CANCELLED":
			cancelled++
		default:
			timedOut++
		}
	}

	log.Info().
		Int("settled", settled).
		Int("rejected", rejected).
		Int("cancelled", cancelled).
		Int("timed_out", timedOut).
		Msg("load test completed")

	lc.printPerformanceStats()
}

func createOrders(workerID, numOrders int, lc *loadClient, ordersChan chan<- string) {
	for i := 0; i < numOrders; i++ {
		req := orderRequest{
			InvestorID: fmt.Sprintf("INVESTOR_%d", workerID),
			AssetID:    assetIDs[rand.Intn(len(assetIDs))],
			OrderType:  sides[rand.Intn(len(sides))],
			Quantity:   fmt.Sprintf("%d", rand.Intn(100)+1),
		}

		orderID, err := lc.createOrder(req.InvestorID, req)
		if err != nil {
			log.Error().Err(err).Int("worker_id", workerID).Str("asset_id", req.AssetID).Msg("failed to create order")
			continue
		}

		ordersChan <- orderID
		log.Info().Int("worker_id", workerID).Str("order_id", orderID).Str("asset_id", req.AssetID).Msg("order created")
		time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)
	}
}

func pollUntilTerminal(lc *loadClient, orderID string) string {
	deadline := time.Now().Add(pollTimeout)
	for time.Now().Before(deadline) {
		order, err := lc.getOrder(orderID)
		if err == nil {
			switch order.Status {
			case "SETTLED", "REJECTED", "CANCELLED":
				return order.Status
			}
		}
		time.Sleep(pollInterval)
	}
	return "TIMEOUT"
}
