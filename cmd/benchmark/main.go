// Benchmark tool for testing penmatch against a labeled record set.
//
// Usage:
//
//	go run cmd/benchmark/main.go -csv /path/to/records.csv -url http://localhost:8080
//
// This tool:
//  1. Reads labeled demographic records (with expected status and PEN)
//  2. Sends each record to penmatch for resolution
//  3. Compares the returned status and best-match PEN with the labels
//  4. Reports accuracy, per-status breakdown, and latency
//
// CSV columns (header required):
//
//	surname,given_name,middle_name,dob,sex,mincode,local_id,postal_code,
//	pen,update_code,expected_status,expected_pen
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledRecord is one benchmark input row.
type LabeledRecord struct {
	Surname        string
	GivenName      string
	MiddleName     string
	DOB            string
	Sex            string
	Mincode        string
	LocalID        string
	PostalCode     string
	PEN            string
	UpdateCode     string
	ExpectedStatus string
	ExpectedPEN    string
}

// MatchRequest mirrors the POST /match body.
type MatchRequest struct {
	Surname    string `json:"surname"`
	GivenName  string `json:"givenName"`
	MiddleName string `json:"middleName,omitempty"`
	DOB        string `json:"dob"`
	Sex        string `json:"sex"`
	Mincode    string `json:"mincode,omitempty"`
	LocalID    string `json:"localId,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	PEN        string `json:"pen,omitempty"`
	UpdateCode string `json:"updateCode,omitempty"`
}

// MatchResponse is the subset of the POST /match response the tool reads.
type MatchResponse struct {
	Outcome *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		PEN    string `json:"pen"`
	} `json:"outcome"`
	Verdict string `json:"verdict"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TotalProcessed int64
	StatusCorrect  int64
	PENCorrect     int64
	Rejected       int64
	TotalErrors    int64

	ProcessingTimeMs int64

	mu        sync.Mutex
	confusion map[string]map[string]int64 // expected -> actual -> count
}

func (m *Metrics) record(expected, actual string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confusion == nil {
		m.confusion = make(map[string]map[string]int64)
	}
	if m.confusion[expected] == nil {
		m.confusion[expected] = make(map[string]int64)
	}
	m.confusion[expected][actual]++
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled records CSV")
	baseURL := flag.String("url", "http://localhost:8080", "penmatch base URL")
	limit := flag.Int("limit", 0, "Maximum records to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each record result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/records.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("penmatch benchmark")
	fmt.Printf("  CSV File:  %s\n", *csvPath)
	fmt.Printf("  URL:       %s\n", *baseURL)
	fmt.Printf("  Workers:   %d\n", *workers)
	fmt.Printf("  Limit:     %d\n", *limit)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: penmatch not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure penmatch is running:")
		fmt.Println("  go run cmd/penmatch/main.go")
		os.Exit(1)
	}
	fmt.Println("penmatch is healthy")

	records, err := readRecordsCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d records\n", len(records))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(records, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readRecordsCSV(path string, limit int) ([]LabeledRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	get := func(record []string, col string) string {
		if i, ok := colIndex[col]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	var records []LabeledRecord
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}

		records = append(records, LabeledRecord{
			Surname:        get(record, "surname"),
			GivenName:      get(record, "given_name"),
			MiddleName:     get(record, "middle_name"),
			DOB:            get(record, "dob"),
			Sex:            get(record, "sex"),
			Mincode:        get(record, "mincode"),
			LocalID:        get(record, "local_id"),
			PostalCode:     get(record, "postal_code"),
			PEN:            get(record, "pen"),
			UpdateCode:     get(record, "update_code"),
			ExpectedStatus: get(record, "expected_status"),
			ExpectedPEN:    get(record, "expected_pen"),
		})

		if limit > 0 && len(records) >= limit {
			break
		}
	}

	return records, nil
}

func runBenchmark(records []LabeledRecord, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan LabeledRecord, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for rec := range work {
				start := time.Now()
				result, err := matchRecord(client, baseURL, rec)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s %s -> %v\n", rec.Surname, rec.GivenName, err)
					}
					continue
				}

				if result.Outcome == nil {
					atomic.AddInt64(&metrics.Rejected, 1)
					metrics.record(rec.ExpectedStatus, "REJECTED")
					continue
				}

				statusOK := result.Outcome.Status == rec.ExpectedStatus
				if statusOK {
					atomic.AddInt64(&metrics.StatusCorrect, 1)
				}
				if rec.ExpectedPEN != "" && result.Outcome.PEN == rec.ExpectedPEN {
					atomic.AddInt64(&metrics.PENCorrect, 1)
				}
				metrics.record(rec.ExpectedStatus, result.Outcome.Status)

				if verbose {
					mark := "ok  "
					if !statusOK {
						mark = "MISS"
					}
					fmt.Printf("%s %-15s %-12s expected %-2s got %-2s pen %s\n",
						mark, rec.Surname, rec.GivenName,
						rec.ExpectedStatus, result.Outcome.Status, result.Outcome.PEN)
				}
			}
		}()
	}

	for _, rec := range records {
		work <- rec
	}
	close(work)
	wg.Wait()

	return metrics
}

func matchRecord(client *http.Client, baseURL string, rec LabeledRecord) (*MatchResponse, error) {
	req := MatchRequest{
		Surname:    rec.Surname,
		GivenName:  rec.GivenName,
		MiddleName: rec.MiddleName,
		DOB:        rec.DOB,
		Sex:        rec.Sex,
		Mincode:    rec.Mincode,
		LocalID:    rec.LocalID,
		PostalCode: rec.PostalCode,
		PEN:        rec.PEN,
		UpdateCode: rec.UpdateCode,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/match", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result MatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nBENCHMARK RESULTS")
	fmt.Printf("  Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("  Status Correct:   %d\n", m.StatusCorrect)
	fmt.Printf("  PEN Correct:      %d\n", m.PENCorrect)
	fmt.Printf("  Screening Reject: %d\n", m.Rejected)
	fmt.Printf("  Errors:           %d\n", m.TotalErrors)

	scored := m.TotalProcessed - m.TotalErrors
	if scored > 0 {
		fmt.Printf("  Status Accuracy:  %.4f\n", float64(m.StatusCorrect)/float64(scored))
	}

	fmt.Println("\nCONFUSION (expected -> actual)")
	m.mu.Lock()
	expectedKeys := make([]string, 0, len(m.confusion))
	for k := range m.confusion {
		expectedKeys = append(expectedKeys, k)
	}
	sort.Strings(expectedKeys)
	for _, exp := range expectedKeys {
		actuals := m.confusion[exp]
		actualKeys := make([]string, 0, len(actuals))
		for k := range actuals {
			actualKeys = append(actualKeys, k)
		}
		sort.Strings(actualKeys)
		for _, act := range actualKeys {
			fmt.Printf("  %-4s -> %-8s %d\n", exp, act, actuals[act])
		}
	}
	m.mu.Unlock()

	fmt.Println("\nPERFORMANCE")
	fmt.Printf("  Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("  Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("  Throughput:       %.2f records/sec\n", rps)
	}
	fmt.Println()
}
