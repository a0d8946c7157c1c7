package tasks

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunnerSuccess(t *testing.T) {
	r := NewRunner(nil)
	task := r.Go(context.Background(), "ok", func(context.Context) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := task.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestRunnerCapturesError(t *testing.T) {
	r := NewRunner(nil)
	boom := errors.New("boom")
	task := r.Go(context.Background(), "failing", func(context.Context) error { return boom })

	<-task.Done()
	if !errors.Is(task.Err(), boom) {
		t.Fatalf("Err = %v, want boom", task.Err())
	}
}

func TestRunnerRecoversPanic(t *testing.T) {
	r := NewRunner(nil)
	task := r.Go(context.Background(), "panicking", func(context.Context) error {
		panic("unexpected")
	})

	<-task.Done()
	if task.Err() == nil {
		t.Fatal("panic did not surface as a task error")
	}
}

func TestRunnerDrain(t *testing.T) {
	r := NewRunner(nil)
	release := make(chan struct{})
	r.Go(context.Background(), "slow", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.Drain(ctx); err == nil {
		t.Fatal("Drain returned before the task finished")
	}

	close(release)
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := r.Drain(ctx2); err != nil {
		t.Fatalf("Drain after release: %v", err)
	}
}
