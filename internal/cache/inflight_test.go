package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emberalert/risk-service/internal/models"
)

// TestInflightTable_SingleCaller verifies the trivial path: one caller runs
// the compute and gets its result with started=true.
func TestInflightTable_SingleCaller(t *testing.T) {
	table := newInflightTable(time.Second)
	want := testAssessment(0.7)

	got, started, err := table.do(context.Background(), "k", func(ctx context.Context) (models.RiskAssessment, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !started {
		t.Error("started = false, want true for the first caller")
	}
	if got.RiskScore != want.RiskScore {
		t.Errorf("result = %+v, want %+v", got, want)
	}
}

// TestInflightTable_CollapsesConcurrentCalls verifies that N concurrent
// callers for the same key produce exactly one compute execution, with
// exactly one caller reporting started=true and everyone sharing the result.
func TestInflightTable_CollapsesConcurrentCalls(t *testing.T) {
	table := newInflightTable(5 * time.Second)
	const callers = 20

	var calls atomic.Int64
	release := make(chan struct{})
	compute := func(ctx context.Context) (models.RiskAssessment, error) {
		calls.Add(1)
		<-release
		return testAssessment(0.55), nil
	}

	var wg sync.WaitGroup
	var startedCount atomic.Int64
	results := make([]models.RiskAssessment, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, started, err := table.do(context.Background(), "k", compute)
			if started {
				startedCount.Add(1)
			}
			results[i] = res
			errs[i] = err
		}()
	}

	// Let all goroutines reach the table before releasing the compute.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("compute executed %d times, want 1", got)
	}
	if got := startedCount.Load(); got != 1 {
		t.Errorf("started=true reported by %d callers, want 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d: err = %v", i, errs[i])
		}
		if results[i].RiskScore != 0.55 {
			t.Errorf("caller %d: result = %+v, want score 0.55", i, results[i])
		}
	}
}

// TestInflightTable_ErrorSharedByWaiters verifies that a failed compute
// relays the same failure to every waiter.
func TestInflightTable_ErrorSharedByWaiters(t *testing.T) {
	table := newInflightTable(5 * time.Second)
	wantErr := errors.New("upstream down")

	release := make(chan struct{})
	compute := func(ctx context.Context) (models.RiskAssessment, error) {
		<-release
		return models.RiskAssessment{}, wantErr
	}

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = table.do(context.Background(), "k", compute)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, wantErr) {
			t.Errorf("caller %d: err = %v, want %v", i, err, wantErr)
		}
	}
}

// TestInflightTable_KeyReleasedAfterCompletion verifies that a key is
// recomputable after its computation finishes, success or failure.
func TestInflightTable_KeyReleasedAfterCompletion(t *testing.T) {
	table := newInflightTable(time.Second)

	_, _, err := table.do(context.Background(), "k", func(ctx context.Context) (models.RiskAssessment, error) {
		return models.RiskAssessment{}, errors.New("first attempt fails")
	})
	if err == nil {
		t.Fatal("first do: want error")
	}

	// Entry removal happens in the compute goroutine; give it a moment.
	deadline := time.Now().Add(time.Second)
	for {
		table.mu.Lock()
		_, pending := table.inFlight["k"]
		table.mu.Unlock()
		if !pending {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("in-flight entry for key never removed")
		}
		time.Sleep(time.Millisecond)
	}

	got, started, err := table.do(context.Background(), "k", func(ctx context.Context) (models.RiskAssessment, error) {
		return testAssessment(0.25), nil
	})
	if err != nil || !started {
		t.Fatalf("second do = started=%v err=%v, want fresh computation", started, err)
	}
	if got.RiskScore != 0.25 {
		t.Errorf("second result = %+v, want score 0.25", got)
	}
}

// TestInflightTable_WaiterTimeout verifies that a waiter's bounded wait
// expires while the computation itself keeps running for others.
func TestInflightTable_WaiterTimeout(t *testing.T) {
	table := newInflightTable(50 * time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	go func() {
		_, _, _ = table.do(context.Background(), "k", func(ctx context.Context) (models.RiskAssessment, error) {
			close(started)
			<-release
			return testAssessment(0.5), nil
		})
	}()
	<-started

	_, joined, err := table.do(context.Background(), "k", func(ctx context.Context) (models.RiskAssessment, error) {
		t.Error("joining caller must not run the compute")
		return models.RiskAssessment{}, nil
	})
	if joined {
		t.Error("second caller reported started=true, want joined wait")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded from bounded wait", err)
	}
}

// TestInflightTable_CallerContextCancelled verifies that a departing
// caller's cancellation aborts only its own wait.
func TestInflightTable_CallerContextCancelled(t *testing.T) {
	table := newInflightTable(5 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	firstDone := make(chan models.RiskAssessment, 1)
	go func() {
		res, _, _ := table.do(context.Background(), "k", func(ctx context.Context) (models.RiskAssessment, error) {
			close(started)
			<-release
			return testAssessment(0.6), nil
		})
		firstDone <- res
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, _, err := table.do(ctx, "k", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled waiter err = %v, want context.Canceled", err)
	}

	// The computation still completes for the remaining caller.
	close(release)
	select {
	case res := <-firstDone:
		if res.RiskScore != 0.6 {
			t.Errorf("surviving caller result = %+v, want score 0.6", res)
		}
	case <-time.After(time.Second):
		t.Fatal("surviving caller never completed")
	}
}
