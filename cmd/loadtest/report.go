package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
)

// scenarioMethod: имя, под которым коллектор хранит время целого сценария.
const scenarioMethod = "scenario"

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	Rejected  int64            `json:"rejected"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
	Stock             *stockReport            `json:"stock,omitempty"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	rejected  int64
	byCode    map[codes.Code]int64
	latencies []float64
}

func (s *methodStats) report() methodReport {
	byName := make(map[string]int64, len(s.byCode))
	for code, count := range s.byCode {
		byName[code.String()] = count
	}
	return methodReport{
		Calls:     s.calls,
		Success:   s.success,
		Failed:    s.failed,
		Rejected:  s.rejected,
		ErrorRate: ratio(s.failed, s.calls),
		Codes:     byName,
		LatencyMs: buildLatencySummary(s.latencies),
	}
}

// collector копит результаты вызовов по имени метода из всех воркеров.
type collector struct {
	mu    sync.Mutex
	stats map[string]*methodStats
}

func newCollector() *collector {
	return &collector{stats: make(map[string]*methodStats)}
}

// record учитывает один вызов. Отказ бизнес-правила (нет остатка, пустая
// корзина) под конкуренцией ожидаем и не считается ошибкой.
func (c *collector) record(method string, latency time.Duration, code codes.Code, rejected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.stats[method]
	if entry == nil {
		entry = &methodStats{byCode: make(map[codes.Code]int64)}
		c.stats[method] = entry
	}

	entry.calls++
	entry.byCode[code]++
	entry.latencies = append(entry.latencies, float64(latency)/float64(time.Millisecond))
	switch {
	case code == codes.OK:
		entry.success++
	case rejected:
		entry.rejected++
	default:
		entry.failed++
	}
}

func (c *collector) snapshot(method string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry := c.stats[method]; entry != nil {
		return entry.report(), true
	}
	return methodReport{}, false
}

// buildReport сводит статистику прогона. Сценарий с ожидаемым отказом
// засчитывается как успешный.
func (c *collector) buildReport(startedAt time.Time, elapsed time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: elapsed.Seconds(),
		Methods:         make(map[string]methodReport, len(c.stats)),
	}
	for method, entry := range c.stats {
		result.Methods[method] = entry.report()
	}

	scenarios := c.stats[scenarioMethod]
	if scenarios == nil {
		return result
	}
	result.TotalScenarios = scenarios.calls
	result.SuccessScenarios = scenarios.success + scenarios.rejected
	result.FailedScenarios = scenarios.failed
	result.ErrorRate = ratio(scenarios.failed, scenarios.calls)
	result.ScenarioLatencyMs = buildLatencySummary(scenarios.latencies)
	if elapsed > 0 {
		result.RPS = float64(scenarios.calls) / elapsed.Seconds()
	}
	return result
}

// writeJSONReport пишет отчёт в файл. Пути выше рабочего каталога запрещены.
func writeJSONReport(path string, result report) error {
	clean := filepath.Clean(path)
	switch {
	case clean == "." || clean == string(filepath.Separator):
		return errors.New("output path must point to a file")
	case clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)):
		return fmt.Errorf("output path escapes working directory: %s", path)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	// #nosec G306 -- отчёт не содержит секретов.
	return os.WriteFile(clean, append(data, '\n'), 0o644)
}

func printReport(out io.Writer, result report, cfg config) {
	fmt.Fprintln(out, "Load test summary")
	fmt.Fprintf(out, "mode=%s run=%s customers=%d products=%d total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		cfg.customers,
		cfg.products,
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Fprintf(out, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Fprintf(out, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methods := make([]string, 0, len(result.Methods))
	for method := range result.Methods {
		if method != scenarioMethod {
			methods = append(methods, method)
		}
	}
	slices.Sort(methods)
	for _, method := range methods {
		stats := result.Methods[method]
		fmt.Fprintf(out, "%s: calls=%d success=%d rejected=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			method, stats.Calls, stats.Success, stats.Rejected, stats.Failed, stats.ErrorRate, stats.LatencyMs.P95)
	}

	if result.Stock != nil {
		printStockReport(out, *result.Stock)
	}
}

func runTarget(cfg config) string {
	switch {
	case cfg.duration <= 0:
		return fmt.Sprintf("count:%d", cfg.total)
	case cfg.totalSet:
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	default:
		return fmt.Sprintf("duration:%s", cfg.duration)
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	total := 0.0
	for _, v := range sorted {
		total += v
	}
	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: total / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile интерполирует между соседними значениями отсортированного среза.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	pos := p / 100 * float64(n-1)
	i := int(pos)
	if i+1 >= n {
		return sorted[n-1]
	}
	frac := pos - float64(i)
	return sorted[i]*(1-frac) + sorted[i+1]*frac
}

func ratio(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}
