// Load generator for exercising a running Kestrel instance.
//
// Usage:
//   go run cmd/loadgen/main.go -url http://localhost:8080 -email admin@example.com -password secret
//
// This tool:
//   1. Logs in and obtains an access token
//   2. Optionally seeds a small default rule set
//   3. Posts randomized transactions from concurrent workers
//   4. Reports throughput, latency, and the flagged/clean split
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// TransactionRequest is the Kestrel ingestion request format.
type TransactionRequest struct {
	SenderAccount   string  `json:"senderAccountNumber"`
	ReceiverAccount string  `json:"receiverAccountNumber"`
	Type            string  `json:"transactionType"`
	Amount          float64 `json:"amount"`
	Location        string  `json:"location,omitempty"`
	Device          string  `json:"device,omitempty"`
	IPAddress       string  `json:"ipAddress,omitempty"`
}

// TransactionResponse is the scored transaction returned by Kestrel.
type TransactionResponse struct {
	ID        string `json:"id"`
	RiskScore int    `json:"riskScore"`
	IsFlagged bool   `json:"isFlagged"`
	Status    string `json:"status"`
}

// RuleRequest is the Kestrel rule creation request format.
type RuleRequest struct {
	Name           string `json:"name"`
	Field          string `json:"field"`
	Condition      string `json:"condition"`
	Value          string `json:"value"`
	Enabled        bool   `json:"isEnabled"`
	Severity       string `json:"severity"`
	SeverityWeight int    `json:"severityWeight"`
}

// Metrics tracks load test results.
type Metrics struct {
	Total   int64
	Flagged int64
	Clean   int64
	Errors  int64

	LatencySumMs int64
}

var (
	types     = []string{"Transfer", "Withdrawal", "Deposit", "POS"}
	locations = []string{"NG-LAGOS", "NG-ABUJA", "NG-KANO", "GB-LONDON", "US-NYC"}
	devices   = []string{"ios", "android", "web", "atm", "unknown-device"}
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	email := flag.String("email", "", "Login email")
	password := flag.String("password", "", "Login password")
	count := flag.Int("count", 1000, "Number of transactions to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seedRules := flag.Bool("seed-rules", false, "Create a default rule set before the run")
	verbose := flag.Bool("verbose", false, "Print each flagged transaction")
	flag.Parse()

	if *email == "" || *password == "" {
		fmt.Println("Usage: loadgen -url http://localhost:8080 -email admin@example.com -password secret")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║          KESTREL LOAD GENERATOR               ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
	fmt.Printf("\nKestrel URL:  %s\n", *baseURL)
	fmt.Printf("Count:        %d\n", *count)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Seed rules:   %v\n", *seedRules)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}

	token, err := login(*baseURL, *email, *password)
	if err != nil {
		fmt.Printf("ERROR: login failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Logged in.")

	if *seedRules {
		if err := createDefaultRules(*baseURL, token); err != nil {
			fmt.Printf("ERROR: rule seeding failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Default rules seeded.")
	}

	var metrics Metrics
	jobs := make(chan int)
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}
			for range jobs {
				sendOne(client, *baseURL, token, &metrics, *verbose)
			}
		}()
	}

	for i := 0; i < *count; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	printSummary(&metrics, elapsed)
}

func sendOne(client *http.Client, baseURL, token string, m *Metrics, verbose bool) {
	req := randomTransaction()

	body, _ := json.Marshal(req)
	start := time.Now()

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/api/transactions", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&m.Errors, 1)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(httpReq)
	if err != nil {
		atomic.AddInt64(&m.Errors, 1)
		return
	}
	defer resp.Body.Close()

	atomic.AddInt64(&m.LatencySumMs, time.Since(start).Milliseconds())
	atomic.AddInt64(&m.Total, 1)

	if resp.StatusCode != http.StatusCreated {
		atomic.AddInt64(&m.Errors, 1)
		io.Copy(io.Discard, resp.Body)
		return
	}

	var tx TransactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		atomic.AddInt64(&m.Errors, 1)
		return
	}

	if tx.IsFlagged {
		atomic.AddInt64(&m.Flagged, 1)
		if verbose {
			fmt.Printf("  FLAGGED %s score=%d amount=%.0f\n", tx.ID, tx.RiskScore, req.Amount)
		}
	} else {
		atomic.AddInt64(&m.Clean, 1)
	}
}

func randomTransaction() TransactionRequest {
	// Log-normal-ish spread with a heavy tail so some transactions
	// cross typical high-amount rule thresholds.
	amount := float64(rand.Intn(100000)) + 100
	if rand.Float64() < 0.1 {
		amount *= 20
	}

	return TransactionRequest{
		SenderAccount:   fmt.Sprintf("%010d", rand.Intn(500)),
		ReceiverAccount: fmt.Sprintf("%010d", rand.Intn(500)),
		Type:            types[rand.Intn(len(types))],
		Amount:          amount,
		Location:        locations[rand.Intn(len(locations))],
		Device:          devices[rand.Intn(len(devices))],
		IPAddress:       fmt.Sprintf("10.0.%d.%d", rand.Intn(256), rand.Intn(256)),
	}
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}

func login(baseURL, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})

	resp, err := http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned %d", resp.StatusCode)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", err
	}
	return loginResp.Token, nil
}

func createDefaultRules(baseURL, token string) error {
	rules := []RuleRequest{
		{Name: "Very High Amount", Field: "Amount", Condition: "GreaterThan", Value: "1000000", Enabled: true, Severity: "Critical", SeverityWeight: 90},
		{Name: "High Amount", Field: "Amount", Condition: "GreaterThan", Value: "500000", Enabled: true, Severity: "High", SeverityWeight: 60},
		{Name: "Unusual Device", Field: "Device", Condition: "NotIn", Value: "ios, android, web, atm", Enabled: true, Severity: "Medium", SeverityWeight: 30},
		{Name: "Foreign Location", Field: "Location", Condition: "NotIn", Value: "NG-LAGOS, NG-ABUJA, NG-KANO", Enabled: true, Severity: "Low", SeverityWeight: 20},
	}

	client := &http.Client{Timeout: 10 * time.Second}
	for _, rule := range rules {
		body, _ := json.Marshal(rule)
		req, err := http.NewRequest(http.MethodPost, baseURL+"/api/rules", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("rule %q returned %d", rule.Name, resp.StatusCode)
		}
	}
	return nil
}

func printSummary(m *Metrics, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("───────────────────────────────────────────────")
	fmt.Printf("  Total sent:   %d\n", m.Total)
	fmt.Printf("  Flagged:      %d (%.1f%%)\n", m.Flagged, pct(m.Flagged, m.Total))
	fmt.Printf("  Clean:        %d (%.1f%%)\n", m.Clean, pct(m.Clean, m.Total))
	fmt.Printf("  Errors:       %d\n", m.Errors)
	fmt.Printf("  Elapsed:      %s\n", elapsed.Round(time.Millisecond))
	if m.Total > 0 {
		fmt.Printf("  Throughput:   %.1f tx/s\n", float64(m.Total)/elapsed.Seconds())
		fmt.Printf("  Avg latency:  %d ms\n", m.LatencySumMs/m.Total)
	}
	fmt.Println("───────────────────────────────────────────────")
}

func pct(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}
