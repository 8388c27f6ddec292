package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

type LoadTestConfig struct {
	TargetURL       string
	ConcurrentUsers int
	Duration        time.Duration
	RequestsPerSec  int
	Devices         []Device
}

type DeviceMessage struct {
	APIKey       string  `json:"api_key"`
	DeviceID     string  `json:"device_id"`
	HeartRate    float64 `json:"heart_rate"`
	SpO2         float64 `json:"spo2"`
	Timestamp    string  `json:"timestamp"`
	Valid        bool    `json:"valid"`
	ReadingCount int     `json:"reading_count"`
}

type BulkDeviceMessages struct {
	Data []DeviceMessage `json:"data"`
}

// Device pairs a provisioned device with the patient it reports for.
type Device struct {
	ID        string
	APIKey    string
	SubjectID string
}

type ingestResponse struct {
	Accepted int               `json:"accepted"`
	Rejected []json.RawMessage `json:"rejected"`
}

// routeStats collects latencies and status codes for one route.
type routeStats struct {
	latencies []time.Duration
	statuses  map[int]int
	failures  int
}

// Report aggregates results per route plus reading-level ingest counts.
type Report struct {
	mu       sync.Mutex
	routes   map[string]*routeStats
	accepted int
	rejected int
	errs     []string
}

func NewReport() *Report {
	return &Report{routes: make(map[string]*routeStats)}
}

func (r *Report) Record(route string, status int, latency time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rs, ok := r.routes[route]
	if !ok {
		rs = &routeStats{statuses: make(map[int]int)}
		r.routes[route] = rs
	}
	rs.latencies = append(rs.latencies, latency)
	if err != nil {
		rs.failures++
		if len(r.errs) < 10 {
			r.errs = append(r.errs, route+": "+err.Error())
		}
		return
	}
	rs.statuses[status]++
}

func (r *Report) CountReadings(accepted, rejected int) {
	r.mu.Lock()
	r.accepted += accepted
	r.rejected += rejected
	r.mu.Unlock()
}

func (r *Report) Requests(route string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rs, ok := r.routes[route]; ok {
		return len(rs.latencies)
	}
	return 0
}

// Print writes one line per route with p50/p95/max latency.
func (r *Report) Print(elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	slices.Sort(names)

	fmt.Printf("%-22s %8s %8s %10s %10s %10s  %s\n", "route", "reqs", "req/s", "p50", "p95", "max", "statuses")
	for _, name := range names {
		rs := r.routes[name]
		sorted := slices.Clone(rs.latencies)
		slices.Sort(sorted)

		statuses := make([]string, 0, len(rs.statuses)+1)
		for code, n := range rs.statuses {
			statuses = append(statuses, fmt.Sprintf("%d=%d", code, n))
		}
		slices.Sort(statuses)
		if rs.failures > 0 {
			statuses = append(statuses, fmt.Sprintf("err=%d", rs.failures))
		}

		fmt.Printf("%-22s %8d %8.2f %10v %10v %10v  %s\n",
			name, len(sorted), float64(len(sorted))/elapsed.Seconds(),
			percentile(sorted, 50), percentile(sorted, 95), percentile(sorted, 100),
			strings.Join(statuses, " "))
	}
	fmt.Printf("readings accepted: %d, rejected: %d\n", r.accepted, r.rejected)

	if len(r.errs) > 0 {
		fmt.Println("first errors:")
		for _, e := range r.errs {
			fmt.Printf("- %s\n", e)
		}
	}
}

func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := (len(sorted)*p+99)/100 - 1
	if i < 0 {
		i = 0
	}
	return sorted[i].Round(time.Millisecond)
}

func generateMeasurements(devices []Device, count int) BulkDeviceMessages {
	data := make([]DeviceMessage, count)

	for i := 0; i < count; i++ {
		device := devices[rand.Intn(len(devices))]

		// mostly resting values, with the occasional out-of-band reading
		heartRate := 55 + rand.Float64()*45
		spo2 := 94 + rand.Float64()*6
		if rand.Intn(20) == 0 {
			heartRate = 125 + rand.Float64()*40
			spo2 = 85 + rand.Float64()*5
		}

		data[i] = DeviceMessage{
			APIKey:       device.APIKey,
			DeviceID:     device.ID,
			HeartRate:    heartRate,
			SpO2:         spo2,
			Timestamp:    time.Now().Add(-time.Duration(rand.Intn(3600)) * time.Second).Format(time.RFC3339),
			Valid:        true,
			ReadingCount: rand.Intn(5) + 3,
		}
	}

	return BulkDeviceMessages{Data: data}
}

func ingest(client *http.Client, baseURL string, data BulkDeviceMessages, report *Report) {
	body, err := json.Marshal(data)
	if err != nil {
		report.Record("ingest", 0, 0, err)
		return
	}

	start := time.Now()
	resp, err := client.Post(baseURL+"/api/v1/ingest", "application/json", bytes.NewReader(body))
	if err != nil {
		report.Record("ingest", 0, time.Since(start), err)
		return
	}
	defer resp.Body.Close()

	var result ingestResponse
	_ = json.NewDecoder(resp.Body).Decode(&result)
	report.Record("ingest", resp.StatusCode, time.Since(start), nil)
	report.CountReadings(result.Accepted, len(result.Rejected))
}

// query issues an authenticated read as the subject itself.
func query(client *http.Client, baseURL, route, subjectID string, report *Report) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/subjects/"+subjectID+"/"+route, nil)
	if err != nil {
		report.Record(route, 0, 0, err)
		return
	}
	req.Header.Set("X-User-ID", subjectID)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		report.Record(route, 0, time.Since(start), err)
		return
	}
	resp.Body.Close()
	report.Record(route, resp.StatusCode, time.Since(start), nil)
}

var readRoutes = []string{"summary/daily", "summary/weekly", "summary/monthly", "chart/weekly"}

func worker(ctx context.Context, workerID int, config LoadTestConfig, report *Report, wg *sync.WaitGroup) {
	defer wg.Done()

	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ticker := time.NewTicker(time.Second / time.Duration(config.RequestsPerSec))
	defer ticker.Stop()

	log.Printf("Worker %d started", workerID)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Worker %d stopped", workerID)
			return
		case <-ticker.C:
			// one in five ticks is a patient opening the dashboard
			if rand.Intn(5) == 0 {
				device := config.Devices[rand.Intn(len(config.Devices))]
				query(client, config.TargetURL, readRoutes[rand.Intn(len(readRoutes))], device.SubjectID, report)
				continue
			}

			// devices usually upload one reading, sometimes a backlog
			batchSize := 1
			if rand.Intn(10) == 0 {
				batchSize = rand.Intn(20) + 2
			}
			ingest(client, config.TargetURL, generateMeasurements(config.Devices, batchSize), report)
		}
	}
}

func printProgress(ctx context.Context, report *Report) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			fmt.Printf("[%v] ingest requests: %d\n", elapsed.Round(time.Second), report.Requests("ingest"))
		}
	}
}

func parseDevices(list string) []Device {
	var devices []Device
	for _, entry := range strings.Split(list, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			continue
		}
		devices = append(devices, Device{ID: parts[0], APIKey: parts[1], SubjectID: parts[2]})
	}
	return devices
}

func waitReady(baseURL string) {
	client := &http.Client{Timeout: 5 * time.Second}
	for i := 0; i < 30; i++ {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		fmt.Printf("waiting for service (%d/30)\n", i+1)
		time.Sleep(2 * time.Second)
	}
}

func main() {
	config := LoadTestConfig{
		TargetURL:       getEnv("TARGET_URL", "http://localhost:8080"),
		ConcurrentUsers: getEnvInt("CONCURRENT_USERS", 10),
		Duration:        getEnvDuration("DURATION", time.Minute),
		RequestsPerSec:  getEnvInt("REQUESTS_PER_SEC", 5),
		// DEVICES is a comma separated list of deviceId:apiKey:subjectId
		Devices: parseDevices(getEnv("DEVICES", "device_001:test-key-001:patient_001")),
	}

	if len(config.Devices) == 0 {
		log.Fatal("no devices configured, set DEVICES=deviceId:apiKey:subjectId,...")
	}

	fmt.Printf("target %s, %d users x %d req/s for %v, %d devices\n",
		config.TargetURL, config.ConcurrentUsers, config.RequestsPerSec, config.Duration, len(config.Devices))

	waitReady(config.TargetURL)

	report := NewReport()
	ctx, cancel := context.WithTimeout(context.Background(), config.Duration)
	defer cancel()

	go printProgress(ctx, report)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < config.ConcurrentUsers; i++ {
		wg.Add(1)
		go worker(ctx, i+1, config, report, &wg)
	}
	wg.Wait()

	// after the write load, read every route once per subject so each
	// summary reflects what was just ingested
	client := &http.Client{Timeout: 30 * time.Second}
	seen := make(map[string]bool)
	for _, d := range config.Devices {
		if seen[d.SubjectID] {
			continue
		}
		seen[d.SubjectID] = true
		for _, route := range readRoutes {
			query(client, config.TargetURL, route, d.SubjectID, report)
		}
	}

	report.Print(time.Since(start))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if parsed, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return parsed
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if parsed, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return parsed
	}
	return defaultValue
}
