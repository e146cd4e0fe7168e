package batch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/localekit/csvtrans/columns"
	"github.com/localekit/csvtrans/csvfile"
	"github.com/localekit/csvtrans/engine"
)

// jitterEngine upper-cases text after a random delay, so batch completion
// order differs from dispatch order.
type jitterEngine struct{}

func (jitterEngine) Translate(_ context.Context, text, _, _ string) (string, error) {
	time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
	return strings.ToUpper(text), nil
}

// failOnEngine errors for one specific source text.
type failOnEngine struct {
	needle string
}

func (f failOnEngine) Translate(_ context.Context, text, _, _ string) (string, error) {
	if strings.Contains(text, f.needle) {
		return "", errors.New("simulated engine failure")
	}
	return strings.ToUpper(text), nil
}

// panicEngine panics for one specific source text, simulating a worker
// crash rather than a translation-library error.
type panicEngine struct {
	needle string
}

func (p panicEngine) Translate(_ context.Context, text, _, _ string) (string, error) {
	if strings.Contains(text, p.needle) {
		panic("worker crash")
	}
	return strings.ToUpper(text), nil
}

func factoryFor(e engine.Engine) engine.Factory {
	return func() (engine.Engine, error) { return e, nil }
}

func makeJob(t *testing.T, n int) *Job {
	t.Helper()
	cfg, err := columns.Parse([]byte(`{"test.csv": {"translate": ["name"], "skip": ["id"]}}`))
	if err != nil {
		t.Fatal(err)
	}
	spec, err := cfg.Resolve("test.csv")
	if err != nil {
		t.Fatal(err)
	}

	rows := make([]csvfile.Row, n)
	for i := range rows {
		rows[i] = csvfile.Row{
			Index: i,
			Fields: map[string]string{
				"id":   fmt.Sprint(i),
				"name": fmt.Sprintf("item %d", i),
			},
		}
	}
	return &Job{
		FileID: "test.csv",
		Source: "en",
		Target: "id",
		Header: []string{"id", "name"},
		Rows:   rows,
		Spec:   spec,
	}
}

func TestRun_OrderAndCountPreserved(t *testing.T) {
	job := makeJob(t, 137)
	res, err := Run(context.Background(), job, Options{
		Workers:   4,
		MaxRows:   10,
		NewEngine: factoryFor(jitterEngine{}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Rows) != 137 {
		t.Fatalf("got %d rows, want 137", len(res.Rows))
	}
	for i, row := range res.Rows {
		if row.Index != i {
			t.Fatalf("row at position %d has Index %d", i, row.Index)
		}
		if want := fmt.Sprintf("ITEM %d", i); row.Fields["name"] != want {
			t.Errorf("row %d name = %q, want %q", i, row.Fields["name"], want)
		}
	}
}

func TestRun_SkipFieldsByteIdentical(t *testing.T) {
	job := makeJob(t, 25)
	res, err := Run(context.Background(), job, Options{
		Workers:   3,
		MaxRows:   4,
		NewEngine: factoryFor(jitterEngine{}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, row := range res.Rows {
		if row.Fields["id"] != fmt.Sprint(i) {
			t.Errorf("skip field mutated: row %d id = %q", i, row.Fields["id"])
		}
	}
}

func TestRun_RowLevelFailureIsPartial(t *testing.T) {
	job := makeJob(t, 100)
	res, err := Run(context.Background(), job, Options{
		Workers:   4,
		MaxRows:   10,
		NewEngine: factoryFor(failOnEngine{needle: "item 42"}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Rows) != 100 {
		t.Fatalf("got %d rows, want 100", len(res.Rows))
	}
	if res.PartialRows != 1 {
		t.Errorf("PartialRows = %d, want 1", res.PartialRows)
	}
	for i, row := range res.Rows {
		if i == 42 {
			if !row.Partial {
				t.Error("row 42 must be partial")
			}
			if row.Fields["name"] != "item 42" {
				t.Errorf("failed row must keep original text, got %q", row.Fields["name"])
			}
			continue
		}
		if row.Partial {
			t.Errorf("row %d unexpectedly partial", i)
		}
		if row.Fields["name"] != strings.ToUpper(fmt.Sprintf("item %d", i)) {
			t.Errorf("row %d not translated: %q", i, row.Fields["name"])
		}
	}
}

func TestRun_WorkerCrashFailsOnlyItsBatch(t *testing.T) {
	job := makeJob(t, 60)
	res, err := Run(context.Background(), job, Options{
		Workers:   2,
		MaxRows:   10,
		NewEngine: factoryFor(panicEngine{needle: "item 25"}),
	})

	if err == nil {
		t.Fatal("job with a crashed batch must end with non-zero status")
	}
	if len(res.FailedBatches) != 1 || res.FailedBatches[0] != 2 {
		t.Errorf("FailedBatches = %v, want [2]", res.FailedBatches)
	}

	// Every row is still present, in order.
	if len(res.Rows) != 60 {
		t.Fatalf("got %d rows, want 60", len(res.Rows))
	}
	for i, row := range res.Rows {
		if row.Index != i {
			t.Fatalf("row order broken at %d", i)
		}
	}
	// Crashed batch rows keep original text; other batches are translated.
	if res.Rows[25].Fields["name"] != "item 25" {
		t.Errorf("crashed batch row not passthrough: %q", res.Rows[25].Fields["name"])
	}
	if res.Rows[0].Fields["name"] != "ITEM 0" {
		t.Errorf("other batches must still translate: %q", res.Rows[0].Fields["name"])
	}
}

func TestRun_PairUnavailableIsFatal(t *testing.T) {
	job := makeJob(t, 5)
	_, err := Run(context.Background(), job, Options{
		NewEngine: func() (engine.Engine, error) {
			return nil, &engine.PairError{Src: "en", Tgt: "xx"}
		},
	})
	var pe *engine.PairError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *engine.PairError", err)
	}
}

func TestRun_EmptyTranslateSetIsPassthrough(t *testing.T) {
	job := makeJob(t, 10)
	job.Spec = &columns.Spec{
		File:      "test.csv",
		Translate: map[string]bool{},
		Skip:      map[string]bool{},
	}

	// No engine factory needed when nothing is routed to the engine.
	res, err := Run(context.Background(), job, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, row := range res.Rows {
		if row.Fields["name"] != fmt.Sprintf("item %d", i) {
			t.Errorf("passthrough row %d mutated: %q", i, row.Fields["name"])
		}
	}
}

func TestRun_ProgressMonotoneAndComplete(t *testing.T) {
	job := makeJob(t, 50)

	var mu sync.Mutex
	var observed []int
	res, err := Run(context.Background(), job, Options{
		Workers:   4,
		MaxRows:   7,
		NewEngine: factoryFor(jitterEngine{}),
		OnProgress: func(done, total int) {
			mu.Lock()
			observed = append(observed, done)
			mu.Unlock()
			if total != 50 {
				t.Errorf("total = %d, want 50", total)
			}
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	_ = res

	mu.Lock()
	defer mu.Unlock()
	if len(observed) != 50 {
		t.Fatalf("observed %d progress ticks, want 50", len(observed))
	}
	// Each done value appears exactly once: the counter is monotone.
	seen := make(map[int]bool)
	for _, d := range observed {
		if seen[d] {
			t.Errorf("done value %d reported twice", d)
		}
		seen[d] = true
	}
	if !seen[50] {
		t.Error("final progress tick missing")
	}
}

func TestRun_CancelledContextStillOrdered(t *testing.T) {
	job := makeJob(t, 200)
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	res, err := Run(ctx, job, Options{
		Workers: 2,
		MaxRows: 5,
		NewEngine: factoryFor(jitterEngine{}),
		OnProgress: func(done, total int) {
			if done > 20 {
				once.Do(cancel)
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}

	// Whatever completed is ordered and the untouched rest is passthrough.
	if len(res.Rows) != 200 {
		t.Fatalf("got %d rows, want 200", len(res.Rows))
	}
	for i, row := range res.Rows {
		if row.Index != i {
			t.Fatalf("row order broken at %d after cancel", i)
		}
		if row.Fields["name"] == "" {
			t.Fatalf("row %d lost its content after cancel", i)
		}
	}
}

func TestPartition_RowBound(t *testing.T) {
	job := makeJob(t, 25)
	batches := Partition(job.Rows, job.Spec, 10, 0)
	want := []int{10, 10, 5}
	var got []int
	for _, b := range batches {
		got = append(got, len(b))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("batch sizes (-want +got):\n%s", diff)
	}
}

func TestPartition_ByteBoundBindsFirst(t *testing.T) {
	spec := &columns.Spec{
		File:      "big.csv",
		Translate: map[string]bool{"text": true},
		Skip:      map[string]bool{},
	}
	rows := make([]csvfile.Row, 6)
	for i := range rows {
		rows[i] = csvfile.Row{
			Index:  i,
			Fields: map[string]string{"text": strings.Repeat("x", 400)},
		}
	}

	// 1000-byte bound: two 400-byte rows fit, a third does not.
	batches := Partition(rows, spec, 100, 1000)
	for i, b := range batches {
		if len(b) > 2 {
			t.Errorf("batch %d has %d rows, byte bound should cap at 2", i, len(b))
		}
	}
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	if total != 6 {
		t.Errorf("partitioning lost rows: %d != 6", total)
	}
}

func TestPartition_NeverSplitsRow(t *testing.T) {
	spec := &columns.Spec{
		File:      "big.csv",
		Translate: map[string]bool{"text": true},
		Skip:      map[string]bool{},
	}
	// One row far over the byte bound still lands in a batch of its own.
	rows := []csvfile.Row{{Index: 0, Fields: map[string]string{"text": strings.Repeat("y", 5000)}}}
	batches := Partition(rows, spec, 10, 1000)
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Errorf("oversized row must form a singleton batch, got %d batches", len(batches))
	}
}

func TestAdaptiveBatchRows(t *testing.T) {
	if got := AdaptiveBatchRows(1000, 4); got != 62 {
		t.Errorf("AdaptiveBatchRows(1000, 4) = %d, want 62", got)
	}
	if got := AdaptiveBatchRows(20, 8); got != minBatchRows {
		t.Errorf("small jobs must use the minimum, got %d", got)
	}
}
