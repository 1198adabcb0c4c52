package dedup

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestConcurrentCallsCollapse(t *testing.T) {
	d := New[int]()
	var calls int32
	release := make(chan struct{})

	const waiters = 8
	var wg sync.WaitGroup
	sharedCount := int32(0)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, shared, err := d.Do("balance", func() (int, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return 80, nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if v != 80 {
				t.Errorf("expected shared result 80, got %d", v)
			}
			if shared {
				atomic.AddInt32(&sharedCount, 1)
			}
		}()
	}

	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single underlying call, got %d", got)
	}
	if sharedCount == 0 {
		t.Fatal("expected at least one caller to observe a shared result")
	}
}

func TestForgetDetachesInFlightCall(t *testing.T) {
	d := New[int]()
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, _, _ := d.Do("k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		if v != 1 {
			t.Errorf("first caller expected its own result 1, got %d", v)
		}
	}()

	<-started
	d.Forget("k")

	// After Forget, a new caller runs its own fn instead of joining
	// the still-running first call.
	done := make(chan int, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, _, _ := d.Do("k", func() (int, error) {
			return 2, nil
		})
		done <- v
	}()

	if v := <-done; v != 2 {
		t.Fatalf("caller after Forget expected fresh result 2, got %d", v)
	}
	close(release)
	wg.Wait()
}

func TestSequentialCallsDoNotShare(t *testing.T) {
	d := New[int]()
	calls := 0
	for i := 0; i < 2; i++ {
		v, _, err := d.Do("k", func() (int, error) {
			calls++
			return calls, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != i+1 {
			t.Fatalf("expected fresh call %d, got %d", i+1, v)
		}
	}
}
