// 本文件用于 Prometheus 指标聚合与导出 将模板规则与接口调用指标统一收口便于监控接入

package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector 聚合运行期指标，并以 Prometheus 文本格式输出。
type Collector struct {
	templatesAppliedTotal   atomic.Uint64
	templatesRetractedTotal atomic.Uint64
	templatesSkippedTotal   atomic.Uint64
	retractMissTotal        atomic.Uint64
	charsRemovedTotal       atomic.Uint64
	templateUpsertTotal     atomic.Uint64
	templateRemoveTotal     atomic.Uint64

	mu               sync.RWMutex
	ruleRunsByKind   map[string]uint64
	guardSkipsByKind map[string]uint64
	manualByOutcome  map[string]uint64
	bundleByOutcome  map[string]uint64
	ruleDurationSec  *histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64 // 累计桶计数
	count   uint64
	sum     float64
}

var ruleDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

var (
	globalCollector = NewCollector()
)

// Global 返回进程级全局指标收集器。
func Global() *Collector {
	return globalCollector
}

// NewCollector 创建指标收集器。
func NewCollector() *Collector {
	return &Collector{
		ruleRunsByKind:   make(map[string]uint64),
		guardSkipsByKind: make(map[string]uint64),
		manualByOutcome:  make(map[string]uint64),
		bundleByOutcome:  make(map[string]uint64),
		ruleDurationSec:  newHistogram(ruleDurationBuckets),
	}
}

func newHistogram(buckets []float64) *histogram {
	clean := make([]float64, 0, len(buckets))
	for _, bucket := range buckets {
		if bucket <= 0 {
			continue
		}
		clean = append(clean, bucket)
	}
	sort.Float64s(clean)
	return &histogram{
		buckets: clean,
		counts:  make([]uint64, len(clean)),
	}
}

func (h *histogram) observe(v float64) {
	if h == nil {
		return
	}
	for idx, bound := range h.buckets {
		if v <= bound {
			h.counts[idx]++
		}
	}
	h.count++
	h.sum += v
}

func (h *histogram) writePrometheus(builder *strings.Builder, metric string, labels map[string]string) {
	if h == nil {
		return
	}
	for idx, bound := range h.buckets {
		bucketLabels := mergeLabels(labels, map[string]string{
			"le": trimFloat(bound),
		})
		builder.WriteString(metric)
		builder.WriteString("_bucket")
		writeLabels(builder, bucketLabels)
		builder.WriteByte(' ')
		builder.WriteString(strconv.FormatUint(h.counts[idx], 10))
		builder.WriteByte('\n')
	}
	infLabels := mergeLabels(labels, map[string]string{
		"le": "+Inf",
	})
	builder.WriteString(metric)
	builder.WriteString("_bucket")
	writeLabels(builder, infLabels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(h.count, 10))
	builder.WriteByte('\n')

	builder.WriteString(metric)
	builder.WriteString("_sum")
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(trimFloat(h.sum))
	builder.WriteByte('\n')

	builder.WriteString(metric)
	builder.WriteString("_count")
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(h.count, 10))
	builder.WriteByte('\n')
}

// ObserveRule 记录一次变更规则执行 ran=false 表示被前置判断跳过
func (c *Collector) ObserveRule(kind string, ran bool, latency time.Duration) {
	if c == nil {
		return
	}
	label := normalizeMetricLabel(kind)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ran {
		c.guardSkipsByKind[label]++
		return
	}
	c.ruleRunsByKind[label]++
	c.ruleDurationSec.observe(latency.Seconds())
}

// ObserveMerge 记录一次合并批次的结果。
func (c *Collector) ObserveMerge(applied, skipped int, removedChars []int) {
	if c == nil {
		return
	}
	c.templatesAppliedTotal.Add(uint64(applied))
	c.templatesSkippedTotal.Add(uint64(skipped))
	for _, n := range removedChars {
		c.templatesRetractedTotal.Add(1)
		if n == 0 {
			c.retractMissTotal.Add(1)
			continue
		}
		c.charsRemovedTotal.Add(uint64(n))
	}
}

// ObserveManual 记录手动添加或移除模板的结果。
func (c *Collector) ObserveManual(op, outcome string) {
	if c == nil {
		return
	}
	key := normalizeMetricLabel(op) + "|" + normalizeMetricLabel(outcome)
	c.mu.Lock()
	c.manualByOutcome[key]++
	c.mu.Unlock()
}

// IncTemplateUpsert 记录项目模板新增或更新。
func (c *Collector) IncTemplateUpsert() {
	if c == nil {
		return
	}
	c.templateUpsertTotal.Add(1)
}

// IncTemplateRemove 记录项目模板删除。
func (c *Collector) IncTemplateRemove() {
	if c == nil {
		return
	}
	c.templateRemoveTotal.Add(1)
}

// ObserveBundleImport 记录模板包导入结果。
func (c *Collector) ObserveBundleImport(outcome string) {
	if c == nil {
		return
	}
	label := normalizeMetricLabel(outcome)
	c.mu.Lock()
	c.bundleByOutcome[label]++
	c.mu.Unlock()
}

// RenderPrometheus 以 text exposition 格式导出指标。
func (c *Collector) RenderPrometheus() string {
	if c == nil {
		return ""
	}
	builder := strings.Builder{}
	builder.Grow(4096)

	ruleRuns := make(map[string]uint64)
	guardSkips := make(map[string]uint64)
	manual := make(map[string]uint64)
	bundle := make(map[string]uint64)
	c.mu.RLock()
	for k, v := range c.ruleRunsByKind {
		ruleRuns[k] = v
	}
	for k, v := range c.guardSkipsByKind {
		guardSkips[k] = v
	}
	for k, v := range c.manualByOutcome {
		manual[k] = v
	}
	for k, v := range c.bundleByOutcome {
		bundle[k] = v
	}
	durationCopy := cloneHistogram(c.ruleDurationSec)
	c.mu.RUnlock()

	// 始终输出 issue/article 两个 kind，避免零流量时缺失时序
	for _, kind := range []string{"issue", "article"} {
		if _, ok := ruleRuns[kind]; !ok {
			ruleRuns[kind] = 0
		}
		if _, ok := guardSkips[kind]; !ok {
			guardSkips[kind] = 0
		}
	}

	writeMetricHeader(&builder, "tt_rule_runs_total", "counter", "Change rule executions that passed the guard, by entity kind.")
	for _, kind := range sortedStringKeysFromUintMap(ruleRuns) {
		writeCounter(&builder, "tt_rule_runs_total", ruleRuns[kind], map[string]string{"kind": kind})
	}

	writeMetricHeader(&builder, "tt_rule_guard_skips_total", "counter", "Changes skipped by the rule guard, by entity kind.")
	for _, kind := range sortedStringKeysFromUintMap(guardSkips) {
		writeCounter(&builder, "tt_rule_guard_skips_total", guardSkips[kind], map[string]string{"kind": kind})
	}

	writeMetricHeader(&builder, "tt_rule_duration_seconds", "histogram", "Change rule latency distribution in seconds.")
	durationCopy.writePrometheus(&builder, "tt_rule_duration_seconds", nil)

	writeMetricHeader(&builder, "tt_templates_applied_total", "counter", "Template blocks appended to entity content.")
	writeCounter(&builder, "tt_templates_applied_total", c.templatesAppliedTotal.Load(), nil)

	writeMetricHeader(&builder, "tt_templates_retracted_total", "counter", "Template retractions processed.")
	writeCounter(&builder, "tt_templates_retracted_total", c.templatesRetractedTotal.Load(), nil)

	writeMetricHeader(&builder, "tt_templates_skipped_total", "counter", "Automatic applications skipped because the article was missing or empty.")
	writeCounter(&builder, "tt_templates_skipped_total", c.templatesSkippedTotal.Load(), nil)

	writeMetricHeader(&builder, "tt_retract_miss_total", "counter", "Retractions that found no matching block in the content.")
	writeCounter(&builder, "tt_retract_miss_total", c.retractMissTotal.Load(), nil)

	writeMetricHeader(&builder, "tt_chars_removed_total", "counter", "Characters removed from entity content by retractions.")
	writeCounter(&builder, "tt_chars_removed_total", c.charsRemovedTotal.Load(), nil)

	misses := c.retractMissTotal.Load()
	retracted := c.templatesRetractedTotal.Load()
	writeMetricHeader(&builder, "tt_retract_hit_ratio", "gauge", "Share of retractions that removed a block.")
	writeGaugeFloat(&builder, "tt_retract_hit_ratio", safeRatio(retracted-misses, retracted), nil)

	writeMetricHeader(&builder, "tt_manual_operations_total", "counter", "Manual template operations grouped by operation and outcome.")
	for _, key := range sortedStringKeysFromUintMap(manual) {
		op, outcome, _ := strings.Cut(key, "|")
		writeCounter(&builder, "tt_manual_operations_total", manual[key], map[string]string{
			"op":      op,
			"outcome": outcome,
		})
	}

	writeMetricHeader(&builder, "tt_template_upserts_total", "counter", "Project template definitions added or updated.")
	writeCounter(&builder, "tt_template_upserts_total", c.templateUpsertTotal.Load(), nil)

	writeMetricHeader(&builder, "tt_template_removals_total", "counter", "Project template definitions removed.")
	writeCounter(&builder, "tt_template_removals_total", c.templateRemoveTotal.Load(), nil)

	writeMetricHeader(&builder, "tt_bundle_imports_total", "counter", "Template bundle imports grouped by outcome.")
	for _, outcome := range sortedStringKeysFromUintMap(bundle) {
		writeCounter(&builder, "tt_bundle_imports_total", bundle[outcome], map[string]string{"outcome": outcome})
	}

	return builder.String()
}

func cloneHistogram(h *histogram) histogram {
	if h == nil {
		return histogram{}
	}
	copyHist := histogram{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		count:   h.count,
		sum:     h.sum,
	}
	return copyHist
}

func writeMetricHeader(builder *strings.Builder, metric, metricType, help string) {
	builder.WriteString("# HELP ")
	builder.WriteString(metric)
	builder.WriteByte(' ')
	builder.WriteString(help)
	builder.WriteByte('\n')
	builder.WriteString("# TYPE ")
	builder.WriteString(metric)
	builder.WriteByte(' ')
	builder.WriteString(metricType)
	builder.WriteByte('\n')
}

func writeCounter(builder *strings.Builder, metric string, value uint64, labels map[string]string) {
	builder.WriteString(metric)
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(value, 10))
	builder.WriteByte('\n')
}

func writeGaugeFloat(builder *strings.Builder, metric string, value float64, labels map[string]string) {
	builder.WriteString(metric)
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(trimFloat(value))
	builder.WriteByte('\n')
}

func writeLabels(builder *strings.Builder, labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	builder.WriteByte('{')
	for idx, key := range keys {
		if idx > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(key)
		builder.WriteString("=\"")
		builder.WriteString(escapeLabelValue(labels[key]))
		builder.WriteByte('"')
	}
	builder.WriteByte('}')
}

func mergeLabels(base, ext map[string]string) map[string]string {
	if len(base) == 0 && len(ext) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(ext))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range ext {
		merged[key] = value
	}
	return merged
}

func normalizeMetricLabel(value string) string {
	clean := strings.TrimSpace(strings.ToLower(value))
	if clean == "" {
		return "unknown"
	}
	clean = strings.ReplaceAll(clean, "\n", " ")
	clean = strings.ReplaceAll(clean, "\r", " ")
	clean = strings.ReplaceAll(clean, "\t", " ")
	clean = strings.Join(strings.Fields(clean), " ")
	if len(clean) > 120 {
		clean = clean[:120]
	}
	return clean
}

func escapeLabelValue(value string) string {
	replacer := strings.NewReplacer(
		`\\`, `\\\\`,
		`"`, `\"`,
		"\n", `\n`,
	)
	return replacer.Replace(value)
}

func sortedStringKeysFromUintMap(items map[string]uint64) []string {
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func trimFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func safeRatio(hit, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(hit) / float64(total)
}

// ResetForTest 仅用于测试，避免跨用例污染。
func (c *Collector) ResetForTest() {
	if c == nil {
		return
	}
	c.templatesAppliedTotal.Store(0)
	c.templatesRetractedTotal.Store(0)
	c.templatesSkippedTotal.Store(0)
	c.retractMissTotal.Store(0)
	c.charsRemovedTotal.Store(0)
	c.templateUpsertTotal.Store(0)
	c.templateRemoveTotal.Store(0)

	c.mu.Lock()
	c.ruleRunsByKind = make(map[string]uint64)
	c.guardSkipsByKind = make(map[string]uint64)
	c.manualByOutcome = make(map[string]uint64)
	c.bundleByOutcome = make(map[string]uint64)
	c.ruleDurationSec = newHistogram(ruleDurationBuckets)
	c.mu.Unlock()
}

// SnapshotString 仅用于本地调试。
func (c *Collector) SnapshotString() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf(
		"applied=%d retracted=%d skipped=%d misses=%d chars_removed=%d",
		c.templatesAppliedTotal.Load(),
		c.templatesRetractedTotal.Load(),
		c.templatesSkippedTotal.Load(),
		c.retractMissTotal.Load(),
		c.charsRemovedTotal.Load(),
	)
}
