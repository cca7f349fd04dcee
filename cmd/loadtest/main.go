package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	sessionHeader       = "X-Session-ID"
	defaultPollInterval = 100 * time.Millisecond
	statusTransportErr  = "transport_error"
	statusUnexpected    = "unexpected"
)

type loadMode string

const (
	modeBrowse      loadMode = "browse"
	modeCheckout    loadMode = "checkout"
	modeCheckoutNew loadMode = "checkout-new"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	orderWait   time.Duration
	mode        loadMode
	skus        []string
	cardNumber  string
	expiry      string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type stepReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time             `json:"started_at"`
	DurationSeconds   float64               `json:"duration_seconds"`
	TotalScenarios    int64                 `json:"total_scenarios"`
	SuccessScenarios  int64                 `json:"success_scenarios"`
	FailedScenarios   int64                 `json:"failed_scenarios"`
	OrdersCreated     int64                 `json:"orders_created"`
	ErrorRate         float64               `json:"error_rate"`
	RPS               float64               `json:"rps"`
	ScenarioLatencyMs latencySummary        `json:"scenario_latency_ms"`
	Steps             map[string]stepReport `json:"steps"`
}

type stepStats struct {
	calls     int64
	success   int64
	failed    int64
	statuses  map[string]int64
	latencies []float64
}

type collector struct {
	mu     sync.Mutex
	steps  map[string]*stepStats
	orders int64
}

func newCollector() *collector {
	return &collector{steps: make(map[string]*stepStats)}
}

func (c *collector) record(step string, latency time.Duration, status string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, found := c.steps[step]
	if !found {
		stats = &stepStats{statuses: make(map[string]int64)}
		c.steps[step] = stats
	}

	stats.calls++
	if ok {
		stats.success++
	} else {
		stats.failed++
	}
	stats.statuses[status]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) orderCreated() {
	c.mu.Lock()
	c.orders++
	c.mu.Unlock()
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		OrdersCreated:   c.orders,
		Steps:           make(map[string]stepReport, len(c.steps)),
	}

	if scenario := c.steps["scenario"]; scenario != nil {
		result.TotalScenarios = scenario.calls
		result.SuccessScenarios = scenario.success
		result.FailedScenarios = scenario.failed
		result.ErrorRate = ratio(scenario.failed, scenario.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenario.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.steps {
		statuses := make(map[string]int64, len(stats.statuses))
		for status, count := range stats.statuses {
			statuses[status] = count
		}
		result.Steps[name] = stepReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Statuses:  statuses,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func parseConfig() (config, error) {
	var (
		cfg           config
		modeValue     string
		skusValue     string
		timeoutValue  string
		durationValue string
		waitValue     string
	)

	flag.StringVar(&cfg.baseURL, "base-url", "http://localhost:8080", "storefront HTTP API base URL")
	flag.IntVar(&cfg.total, "total", 200, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 20, "number of concurrent shoppers")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.StringVar(&waitValue, "order-wait", "10s", "how long to wait for a submitted checkout to produce an order")
	flag.StringVar(&modeValue, "mode", string(modeCheckout), "load mode: browse | checkout | checkout-new")
	flag.StringVar(&skusValue, "skus", "laptop-001,mouse-001", "comma-separated SKUs added to every cart")
	flag.StringVar(&cfg.cardNumber, "card", "4242424242424242", "card number used at checkout")
	flag.StringVar(&cfg.expiry, "expiry", "12/30", "card expiry used at checkout (MM/YY)")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	orderWait, err := time.ParseDuration(strings.TrimSpace(waitValue))
	if err != nil {
		return cfg, fmt.Errorf("parse order-wait: %w", err)
	}
	cfg.orderWait = orderWait

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	cfg.skus = splitList(skusValue)

	switch {
	case cfg.baseURL == "":
		return cfg, errors.New("base-url is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.orderWait <= 0:
		return cfg, errors.New("order-wait must be > 0")
	case len(cfg.skus) == 0:
		return cfg, errors.New("at least one sku is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeBrowse:
		return modeBrowse, nil
	case modeCheckout:
		return modeCheckout, nil
	case modeCheckoutNew:
		return modeCheckoutNew, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, chunk := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(chunk); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	result := runLoad(&http.Client{}, cfg)

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func runLoad(httpClient *http.Client, cfg config) report {
	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()
	shopper := &shopperClient{http: httpClient, baseURL: cfg.baseURL, timeout: cfg.timeout, col: col}

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for range cfg.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(shopper, cfg, fmt.Sprintf("lt-%s-%d", runID, id), col)
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	return col.buildReport(startedAt, time.Since(startedAt))
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// sessionView — поля ответа /api/session, нужные сценарию.
type sessionView struct {
	View      string `json:"view"`
	CartCount int    `json:"cart_count"`
	Checkout  struct {
		State string `json:"state"`
	} `json:"checkout"`
	Order *struct {
		OrderNumber string `json:"order_number"`
	} `json:"order"`
}

type shopperClient struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
	col     *collector
}

type stepError struct {
	step   string
	status string
}

func (e *stepError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.step, e.status)
}

// call выполняет шаг сценария и записывает его латентность. Ответ с кодом,
// отличным от want, считается ошибкой шага.
func (c *shopperClient) call(step, method, path, sessionID string, body any, want int) (sessionView, error) {
	var view sessionView

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return view, err
		}
		reader = bytes.NewReader(encoded)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return view, err
	}
	req.Header.Set(sessionHeader, sessionID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.col.record(step, time.Since(start), statusTransportErr, false)
		return view, &stepError{step: step, status: statusTransportErr}
	}
	defer resp.Body.Close()

	status := fmt.Sprintf("%d", resp.StatusCode)
	if resp.StatusCode != want {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.col.record(step, time.Since(start), status, false)
		return view, &stepError{step: step, status: status}
	}
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
			c.col.record(step, time.Since(start), statusUnexpected, false)
			return view, fmt.Errorf("%s: decode response: %w", step, err)
		}
	}
	c.col.record(step, time.Since(start), status, true)
	return view, nil
}

func runScenario(c *shopperClient, cfg config, sessionID string, col *collector) (err error) {
	scenarioStart := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "failed"
		}
		col.record("scenario", time.Since(scenarioStart), status, err == nil)
	}()

	for _, sku := range cfg.skus {
		if _, err := c.call("AddItem", http.MethodPost, "/api/cart/items", sessionID, map[string]string{"sku": sku}, http.StatusCreated); err != nil {
			return err
		}
	}
	view, err := c.call("OpenCart", http.MethodPost, "/api/view/cart", sessionID, nil, http.StatusOK)
	if err != nil {
		return err
	}
	if view.CartCount < len(cfg.skus) {
		return fmt.Errorf("cart has %d items, expected at least %d", view.CartCount, len(cfg.skus))
	}
	if cfg.mode == modeBrowse {
		_, err = c.call("ClearCart", http.MethodDelete, "/api/cart", sessionID, nil, http.StatusOK)
		return err
	}

	if _, err := c.call("ProceedToCheckout", http.MethodPost, "/api/view/checkout", sessionID, nil, http.StatusOK); err != nil {
		return err
	}
	form := map[string]string{"card_number": cfg.cardNumber, "expiry": cfg.expiry}
	if _, err := c.call("SubmitCheckout", http.MethodPost, "/api/checkout", sessionID, form, http.StatusAccepted); err != nil {
		return err
	}

	orderNumber, err := waitForOrder(c, sessionID, cfg.orderWait)
	if err != nil {
		return err
	}
	col.orderCreated()

	if cfg.mode == modeCheckoutNew {
		view, err := c.call("StartNewOrder", http.MethodPost, "/api/orders/new", sessionID, nil, http.StatusOK)
		if err != nil {
			return err
		}
		if view.CartCount != 0 {
			return fmt.Errorf("order %s: cart not reset after new order", orderNumber)
		}
	}
	return nil
}

// waitForOrder опрашивает сессию, пока обработка оплаты не выдаст номер заказа.
func waitForOrder(c *shopperClient, sessionID string, wait time.Duration) (string, error) {
	deadline := time.Now().Add(wait)
	for {
		view, err := c.call("GetSession", http.MethodGet, "/api/session", sessionID, nil, http.StatusOK)
		if err != nil {
			return "", err
		}
		if view.Order != nil && view.Order.OrderNumber != "" {
			return view.Order.OrderNumber, nil
		}
		if view.Checkout.State != "processing" {
			return "", fmt.Errorf("checkout ended in state %q without order", view.Checkout.State)
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("no order after %s", wait)
		}
		time.Sleep(defaultPollInterval)
	}
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "mode=%s run=%s total=%d success=%d failed=%d orders=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.OrdersCreated,
		result.ErrorRate,
	)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	names := make([]string, 0, len(result.Steps))
	for name := range result.Steps {
		if name != "scenario" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Steps[name]
		_, _ = fmt.Fprintf(w, "%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
