// Benchmark tool for load-testing Harrier with synthetic registration cases.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -n 10000 -workers 8
//
// This tool:
//   1. Generates synthetic case fact sheets across five leakage profiles
//   2. Sends each to Harrier's POST /evaluate endpoint
//   3. Reports throughput, latency, and the risk-level distribution
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

// EvaluateRequest mirrors the Harrier API request format.
type EvaluateRequest struct {
	CaseID string    `json:"caseId,omitempty"`
	Facts  CaseFacts `json:"facts"`
}

// CaseFacts is the fact sheet payload for one registration document.
type CaseFacts struct {
	SRCode              string      `json:"SR_CODE"`
	BookNo              string      `json:"BOOK_NO"`
	DoctNo              string      `json:"DOCT_NO"`
	RegYear             int         `json:"REG_YEAR"`
	Zone                string      `json:"zone"`
	District            string      `json:"district"`
	SDPayable           float64     `json:"SD_PAYABLE"`
	RFPayable           float64     `json:"RF_PAYABLE"`
	Receipts            []Receipt   `json:"receipts"`
	DeclaredValue       float64     `json:"declared_value,omitempty"`
	ExpectedValue       float64     `json:"expected_value,omitempty"`
	Exemptions          []Exemption `json:"exemptions,omitempty"`
	ProhibitedLandMatch bool        `json:"prohibited_land_match"`
	IsUrban             bool        `json:"is_urban"`
	ScheduleDataExists  bool        `json:"schedule_data_exists"`
	HolidayRegistration bool        `json:"holiday_registration"`
	Parties             []Party     `json:"parties"`
}

type Receipt struct {
	Amount  float64 `json:"amount"`
	AccCanc string  `json:"acc_canc"`
}

type Exemption struct {
	Code             string  `json:"code"`
	Amount           float64 `json:"amount"`
	DocTypeEligible  bool    `json:"doc_type_eligible"`
	CapAmount        float64 `json:"cap_amount"`
	RepeatUsageCount int     `json:"repeat_usage_count"`
}

type Party struct {
	Code string `json:"CODE"`
	Name string `json:"NAME"`
}

// EvaluateResponse mirrors the Harrier API response format.
type EvaluateResponse struct {
	EvaluationID string `json:"evaluationId"`
	Result       struct {
		RiskLevel string `json:"risk_level"`
		RiskScore int    `json:"risk_score"`
	} `json:"result"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	Total     int64
	Errors    int64
	HighRisk  int64
	MedRisk   int64
	LowRisk   int64
	LatencyNs int64 // summed
	MaxNs     int64
}

var zones = []string{"Coastal", "Rayalaseema", "Central", "North", "South"}
var districts = []string{"Visakhapatnam", "Guntur", "NTR", "YSR Kadapa", "Kurnool", "Nellore"}

// generateFacts produces one synthetic fact sheet. Roughly half the profiles
// carry some leakage pattern.
func generateFacts(rng *rand.Rand, i int) CaseFacts {
	payable := float64(rng.Intn(90)+10) * 10000
	facts := CaseFacts{
		SRCode:             fmt.Sprintf("SR-%03d", rng.Intn(50)+100),
		BookNo:             "1",
		DoctNo:             fmt.Sprintf("%d", i),
		RegYear:            2025,
		Zone:               zones[rng.Intn(len(zones))],
		District:           districts[rng.Intn(len(districts))],
		SDPayable:          payable,
		RFPayable:          payable * 0.1,
		ScheduleDataExists: true,
		Parties:            []Party{{Code: "EX", Name: "Seller"}, {Code: "CL", Name: "Buyer"}},
	}
	total := facts.SDPayable + facts.RFPayable

	switch rng.Intn(5) {
	case 0: // clean, fully paid
		facts.Receipts = []Receipt{{Amount: total, AccCanc: "A"}}
	case 1: // short paid
		facts.Receipts = []Receipt{{Amount: total * 0.6, AccCanc: "A"}}
	case 2: // zero paid
	case 3: // prohibited land
		facts.Receipts = []Receipt{{Amount: total, AccCanc: "A"}}
		facts.ProhibitedLandMatch = true
		facts.IsUrban = rng.Intn(2) == 0
	case 4: // undervaluation with an over-cap exemption
		facts.Receipts = []Receipt{{Amount: total, AccCanc: "A"}}
		facts.ExpectedValue = payable * 10
		facts.DeclaredValue = facts.ExpectedValue * 0.7
		facts.Exemptions = []Exemption{{
			Code:            "EX-A",
			Amount:          20000,
			DocTypeEligible: true,
			CapAmount:       10000,
		}}
	}
	return facts
}

func worker(id int, url, tenant string, jobs <-chan int, m *Metrics, wg *sync.WaitGroup) {
	defer wg.Done()
	client := &http.Client{Timeout: 10 * time.Second}
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

	for i := range jobs {
		req := EvaluateRequest{Facts: generateFacts(rng, i)}
		payload, _ := json.Marshal(req)

		start := time.Now()
		httpReq, _ := http.NewRequest(http.MethodPost, url+"/evaluate", bytes.NewReader(payload))
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-Tenant-ID", tenant)

		resp, err := client.Do(httpReq)
		elapsed := time.Since(start).Nanoseconds()

		atomic.AddInt64(&m.Total, 1)
		atomic.AddInt64(&m.LatencyNs, elapsed)
		for {
			old := atomic.LoadInt64(&m.MaxNs)
			if elapsed <= old || atomic.CompareAndSwapInt64(&m.MaxNs, old, elapsed) {
				break
			}
		}

		if err != nil {
			atomic.AddInt64(&m.Errors, 1)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			atomic.AddInt64(&m.Errors, 1)
			continue
		}

		var evalResp EvaluateResponse
		if err := json.Unmarshal(body, &evalResp); err != nil {
			atomic.AddInt64(&m.Errors, 1)
			continue
		}
		switch evalResp.Result.RiskLevel {
		case "High":
			atomic.AddInt64(&m.HighRisk, 1)
		case "Medium":
			atomic.AddInt64(&m.MedRisk, 1)
		default:
			atomic.AddInt64(&m.LowRisk, 1)
		}
	}
}

func main() {
	url := flag.String("url", "http://localhost:8080", "Harrier base URL")
	n := flag.Int("n", 1000, "number of cases to evaluate")
	workers := flag.Int("workers", 4, "concurrent workers")
	tenant := flag.String("tenant", "benchmark", "tenant ID to use")
	flag.Parse()

	fmt.Printf("Benchmarking %s with %d cases across %d workers\n\n", *url, *n, *workers)

	var m Metrics
	jobs := make(chan int, *workers)
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go worker(w, *url, *tenant, jobs, &m, &wg)
	}
	for i := 0; i < *n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	if m.Total == 0 {
		fmt.Println("no cases processed")
		os.Exit(1)
	}

	avgMs := float64(m.LatencyNs) / float64(m.Total) / 1e6
	fmt.Printf("Processed:   %d cases in %s (%.0f cases/sec)\n", m.Total, elapsed.Round(time.Millisecond), float64(m.Total)/elapsed.Seconds())
	fmt.Printf("Errors:      %d\n", m.Errors)
	fmt.Printf("Latency:     avg %.2fms, max %.2fms\n", avgMs, float64(m.MaxNs)/1e6)
	fmt.Printf("Risk levels: High %d / Medium %d / Low %d\n", m.HighRisk, m.MedRisk, m.LowRisk)

	if m.Errors > 0 {
		os.Exit(1)
	}
}
