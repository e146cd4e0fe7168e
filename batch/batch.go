// Package batch partitions CSV rows into bounded batches, translates them
// on a worker pool, and reassembles the results in original row order.
//
// Completion order of batches is unconstrained: workers finish whenever
// they finish, and the scheduler places every translated row by its
// retained original index. Failures are contained at the smallest unit
// that can absorb them — a failed field keeps its original text and marks
// the row partial, a crashed batch keeps all its original rows and marks
// the batch failed, and only a missing language pair kills the job.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/localekit/csvtrans/columns"
	"github.com/localekit/csvtrans/csvfile"
	"github.com/localekit/csvtrans/engine"
	"github.com/localekit/csvtrans/htmltrans"
)

// maxWorkers caps the pool regardless of core count.
const maxWorkers = 8

// minBatchRows is the smallest adaptive batch size.
const minBatchRows = 10

// defaultMaxBatchBytes bounds the estimated serialized size of one batch,
// so a file of huge description fields still yields small batches.
const defaultMaxBatchBytes = 64 * 1024

// Job is one (file, language pair) translation run.
type Job struct {
	FileID string
	Source string
	Target string
	Header []string
	Rows   []csvfile.Row
	Spec   *columns.Spec
}

// TranslatedRow is a row after processing: translate fields hold engine
// output (or the original text on row-level failure), skip fields are
// verbatim copies. Index is the original row index.
type TranslatedRow struct {
	Index  int
	Fields map[string]string
	// Partial is set when at least one field kept its original text
	// because translation of that field failed.
	Partial bool
	// Degraded is set when at least one field went through a lossy path
	// (markup fallback).
	Degraded bool
}

// Options configures a scheduler run.
type Options struct {
	// Workers is the pool size; 0 means min(NumCPU, 8).
	Workers int
	// MaxRows bounds rows per batch; 0 means adaptive:
	// max(10, len(rows)/(workers*4)).
	MaxRows int
	// MaxBytes bounds the estimated batch payload; 0 means 64 KiB.
	MaxBytes int
	// NewEngine builds the engine capability. Called lazily, once per
	// worker; the instance is cached across that worker's batches.
	NewEngine engine.Factory
	// OnProgress observes the monotone count of completed rows. Called
	// from worker goroutines; must be safe for concurrent use.
	OnProgress func(done, total int)
	// Logf receives non-fatal notices. Nil disables logging.
	Logf func(format string, args ...any)
}

func (o *Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	n := runtime.NumCPU()
	if n > maxWorkers {
		n = maxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (o *Options) logf(format string, args ...any) {
	if o.Logf != nil {
		o.Logf(format, args...)
	}
}

// Result is the aggregated outcome of a job.
type Result struct {
	// Rows holds every input row in original order.
	Rows []TranslatedRow
	// FailedBatches lists batch indices whose worker crashed; their rows
	// are present in Rows as untranslated originals.
	FailedBatches []int
	// PartialRows counts rows that kept original text for some field.
	PartialRows int
	// DegradedRows counts rows that used a lossy path.
	DegradedRows int
}

// Err returns the job-level error summarizing failed batches, or nil.
func (r *Result) Err() error {
	if len(r.FailedBatches) == 0 {
		return nil
	}
	parts := make([]string, len(r.FailedBatches))
	for i, idx := range r.FailedBatches {
		parts[i] = fmt.Sprint(idx)
	}
	return fmt.Errorf("%d batch(es) failed: %s", len(r.FailedBatches), strings.Join(parts, ", "))
}

// Partition splits rows into batches bounded by both row count and
// estimated payload size, whichever binds first. Rows are never split and
// batches preserve input order.
func Partition(rows []csvfile.Row, spec *columns.Spec, maxRows, maxBytes int) [][]csvfile.Row {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBatchBytes
	}
	if maxRows <= 0 {
		maxRows = len(rows)
	}

	var batches [][]csvfile.Row
	var cur []csvfile.Row
	curBytes := 0

	for _, row := range rows {
		size := 0
		for field := range spec.Translate {
			size += len(row.Fields[field])
		}

		if len(cur) > 0 && (len(cur) >= maxRows || curBytes+size > maxBytes) {
			batches = append(batches, cur)
			cur = nil
			curBytes = 0
		}
		cur = append(cur, row)
		curBytes += size
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

// AdaptiveBatchRows picks a batch row bound for the given job size and
// worker count: enough batches to keep the pool busy, but never tiny.
func AdaptiveBatchRows(totalRows, workers int) int {
	n := totalRows / (workers * 4)
	if n < minBatchRows {
		n = minBatchRows
	}
	return n
}

// batchTask is one unit of worker work.
type batchTask struct {
	index int
	rows  []csvfile.Row
}

// batchResult is what a worker hands back.
type batchResult struct {
	index  int
	rows   []TranslatedRow
	failed bool
}

// Run executes a job: partition, dispatch, translate, reassemble.
//
// The engine capability is verified once up front — a missing language
// pair is fatal before any batch is dispatched. On cancellation the
// scheduler stops dispatching, waits for in-flight batches, and returns
// what completed together with ctx.Err().
func Run(ctx context.Context, job *Job, opts Options) (*Result, error) {
	total := len(job.Rows)
	res := &Result{Rows: make([]TranslatedRow, total)}

	// Nothing routed to the engine: copy everything through.
	if len(job.Spec.Translate) == 0 {
		for i, row := range job.Rows {
			res.Rows[i] = passthroughRow(row)
		}
		return res, nil
	}

	if opts.NewEngine == nil {
		return nil, fmt.Errorf("no engine factory configured")
	}
	// Preflight so a missing language pair aborts the job, not a batch.
	if _, err := opts.NewEngine(); err != nil {
		return nil, err
	}

	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = AdaptiveBatchRows(total, opts.workers())
	}
	batches := Partition(job.Rows, job.Spec, maxRows, opts.MaxBytes)
	opts.logf("dispatching %d rows in %d batches to %d workers", total, len(batches), opts.workers())

	tasks := make(chan batchTask)
	results := make(chan batchResult, len(batches))
	var done int64

	var wg sync.WaitGroup
	for w := 0; w < opts.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, job, opts, tasks, results, &done, total)
		}()
	}

	// Dispatch until done or cancelled; cancellation stops new batches
	// but lets in-flight ones drain.
	go func() {
		defer close(tasks)
		for i, rows := range batches {
			select {
			case tasks <- batchTask{index: i, rows: rows}:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	seen := make([]bool, total)
	for br := range results {
		if br.failed {
			res.FailedBatches = append(res.FailedBatches, br.index)
		}
		for _, row := range br.rows {
			res.Rows[row.Index] = row
			seen[row.Index] = true
			if row.Partial {
				res.PartialRows++
			}
			if row.Degraded {
				res.DegradedRows++
			}
		}
	}
	sort.Ints(res.FailedBatches)

	// Rows from batches never dispatched (cancellation) degrade to
	// passthrough so output order and count still match input.
	for i, row := range job.Rows {
		if !seen[i] {
			res.Rows[i] = passthroughRow(row)
		}
	}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	return res, res.Err()
}

// worker consumes batches until the task channel closes. The engine is
// created lazily on the first batch and cached for the worker's lifetime.
func worker(ctx context.Context, job *Job, opts Options, tasks <-chan batchTask, results chan<- batchResult, done *int64, total int) {
	var tr *htmltrans.Translator

	for task := range tasks {
		if tr == nil {
			eng, err := opts.NewEngine()
			if err != nil {
				opts.logf("worker engine init failed: %v", err)
				results <- failedBatch(task)
				continue
			}
			tr = &htmltrans.Translator{Engine: eng, Logf: opts.Logf}
		}
		results <- runBatch(ctx, job, opts, tr, task, done, total)
	}
}

// runBatch translates one batch. A panic anywhere inside is a worker
// crash: fatal to this batch only, reported as failed with original rows.
func runBatch(ctx context.Context, job *Job, opts Options, tr *htmltrans.Translator, task batchTask, done *int64, total int) (br batchResult) {
	defer func() {
		if r := recover(); r != nil {
			opts.logf("batch %d crashed: %v", task.index, r)
			br = failedBatch(task)
		}
	}()

	br = batchResult{index: task.index}
	for _, row := range task.rows {
		br.rows = append(br.rows, translateRow(ctx, job, tr, row))

		newDone := atomic.AddInt64(done, 1)
		if opts.OnProgress != nil {
			opts.OnProgress(int(newDone), total)
		}
	}
	return br
}

// translateRow translates every routed field of one row. A field-level
// engine failure keeps the original text and flags the row partial.
func translateRow(ctx context.Context, job *Job, tr *htmltrans.Translator, row csvfile.Row) TranslatedRow {
	out := TranslatedRow{Index: row.Index, Fields: make(map[string]string, len(row.Fields))}

	for _, field := range job.Header {
		value, ok := row.Fields[field]
		if !ok {
			continue
		}
		if !job.Spec.ShouldTranslate(field) || value == "" {
			out.Fields[field] = value
			continue
		}

		translated, degraded, err := tr.TranslateField(ctx, value, job.Source, job.Target)
		if err != nil {
			out.Fields[field] = value
			out.Partial = true
			continue
		}
		out.Fields[field] = translated
		if degraded {
			out.Degraded = true
		}
	}
	return out
}

// failedBatch builds the crash result: original rows, failed flag.
func failedBatch(task batchTask) batchResult {
	br := batchResult{index: task.index, failed: true}
	for _, row := range task.rows {
		br.rows = append(br.rows, passthroughRow(row))
	}
	return br
}

// passthroughRow copies a row verbatim.
func passthroughRow(row csvfile.Row) TranslatedRow {
	fields := make(map[string]string, len(row.Fields))
	for k, v := range row.Fields {
		fields[k] = v
	}
	return TranslatedRow{Index: row.Index, Fields: fields}
}
