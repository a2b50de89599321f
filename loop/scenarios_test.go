package loop

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// Scenario 1 (spec.md §8.1): a task whose body returns an error completes
// Err, and Wait surfaces that same error with a traceback naming the site.
func TestScenario_BodyErrorCompletesErr(t *testing.T) {
	h := newTestHost(t)
	task := Run(h, "scenario1", func(_ *Task, _ ...any) (any, error) {
		return nil, errors.New("X")
	})

	_, err := task.Wait(context.Background())
	if err == nil || !strings.Contains(err.Error(), "X") {
		t.Fatalf("expected error containing X, got %v", err)
	}
	tb := task.Traceback("scenario1 failed")
	if !strings.Contains(tb, "scenario1") {
		t.Fatalf("traceback missing task name: %q", tb)
	}
}

// Scenario 2 (spec.md §8.2): closing a parent that is awaiting an eternal
// child cascades the close to the child; both complete Err("closed").
func TestScenario_CloseCascadesToAwaitedChild(t *testing.T) {
	h := newTestHost(t)
	var child *Task
	parent := Run(h, "parent", func(_ *Task, _ ...any) (any, error) {
		child = Run(nil, "child", eternity)
		return Await(child)
	})

	parent.Close(nil)

	_, err := parent.Wait(context.Background())
	assertIs(t, err, ErrClosed)

	_, err = child.Wait(context.Background())
	assertIs(t, err, ErrClosed)
}

// Scenario 3 (spec.md §8.3): a non-awaited child that errors (here during
// its synchronous first step, before the parent's body returns) fails the
// parent once that body returns Ok, framed as a child error.
func TestScenario_UnawaitedChildErrorFailsParent(t *testing.T) {
	h := newTestHost(t)
	parent := Run(h, "parent", func(_ *Task, _ ...any) (any, error) {
		Run(nil, "child", func(_ *Task, _ ...any) (any, error) {
			time.Sleep(5 * time.Millisecond)
			return nil, errors.New("CHILD")
		})
		return nil, nil
	})

	_, err := parent.Wait(context.Background())
	if err == nil {
		t.Fatal("expected parent to fail from unawaited child error")
	}
	var childErr *ChildError
	if !errors.As(err, &childErr) {
		t.Fatalf("expected a *ChildError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "CHILD") {
		t.Fatalf("expected framed error to mention CHILD, got %v", err)
	}
}

// Scenario 7 (spec.md §8.7): two children race to externally complete
// their parent; the second complete loses and fails with ErrAlreadyDone,
// and its own Task completes Err("closed") once closed by the race's
// loser-cleanup.
func TestScenario_CompleteRaceBetweenChildren(t *testing.T) {
	h := newTestHost(t)
	var parent *Task
	var c2 *Task
	var c2Err error

	parent = Run(h, "parent", func(self *Task, _ ...any) (any, error) {
		Run(nil, "c1", func(_ *Task, _ ...any) (any, error) {
			return nil, self.Complete("child 1 won")
		})
		c2 = Run(nil, "c2", func(_ *Task, _ ...any) (any, error) {
			time.Sleep(5 * time.Millisecond)
			c2Err = self.Complete("child 2 won")
			return eternity(nil)
		})
		return eternity(nil)
	})

	value, err := parent.Wait(context.Background())
	assertNoError(t, err)
	assertEqual(t, value, "child 1 won")

	_, err = c2.Wait(context.Background())
	assertIs(t, err, ErrClosed)
	assertIs(t, c2Err, ErrAlreadyDone)
}

// Scenario 4 (spec.md §8.4): a parent catches two children's errors one at
// a time (a pcall-equivalent loop), and still completes Ok once both have
// been individually handled — the pending-child-error slot is edge-
// triggered, so a handled error never resurfaces at final completion.
func TestScenario_PcallHandlesBothChildErrors(t *testing.T) {
	h := newTestHost(t)
	caught := 0

	parent := Run(h, "parent", func(_ *Task, _ ...any) (any, error) {
		a := Run(nil, "a", func(_ *Task, _ ...any) (any, error) {
			time.Sleep(2 * time.Millisecond)
			return nil, errors.New("A")
		})
		b := Run(nil, "b", func(_ *Task, _ ...any) (any, error) {
			time.Sleep(4 * time.Millisecond)
			return nil, errors.New("B")
		})

		for i := 0; i < 2; i++ {
			_, err := AwaitCallback(func(resume ResumeFunc) (Closable, error) {
				go func() {
					time.Sleep(3 * time.Millisecond)
					resume(nil, nil)
				}()
				return nil, nil
			})
			if err != nil {
				caught++
			}
		}
		_ = a
		_ = b
		return "both handled", nil
	})

	value, err := parent.Wait(context.Background())
	assertNoError(t, err)
	assertEqual(t, value, "both handled")
	if caught != 2 {
		t.Fatalf("expected both child errors caught via pending-child-error, got %d", caught)
	}
}

// Scenario 5 (spec.md §8.5): ten Tasks are started one after another and
// the one at index 3 errors;
// iterating them with iter.All surfaces that failure framed as
// "iter error[index:3]: ...". Exercised here against loop.Await directly
// (iter's own package test exercises the iterator itself) to confirm the
// framing shape independent of iteration order.
func TestScenario_TenTasksThirdErrors(t *testing.T) {
	h := newTestHost(t)
	var tasks []*Task
	var awaitErr error

	runner := Run(h, "runner", func(_ *Task, _ ...any) (any, error) {
		tasks = make([]*Task, 10)
		for i := 0; i < 10; i++ {
			i := i
			if i == 3 {
				tasks[i] = Run(nil, "t3", func(_ *Task, _ ...any) (any, error) {
					return nil, errors.New("ERROR IN TASK 3")
				})
				continue
			}
			tasks[i] = Run(nil, "t", sleepingFunc(time.Millisecond, i))
		}
		_, awaitErr = Await(tasks[3])
		return nil, nil
	})
	_, err := runner.Wait(context.Background())
	assertNoError(t, err)

	if awaitErr == nil || !strings.Contains(awaitErr.Error(), "ERROR IN TASK 3") {
		t.Fatalf("expected task 3's own error, got %v", awaitErr)
	}
	framed := (&IterError{Index: 3, Err: awaitErr}).Error()
	if !strings.Contains(framed, "iter error[index:3]") || !strings.Contains(framed, "ERROR IN TASK 3") {
		t.Fatalf("unexpected framing: %q", framed)
	}

	for i, tk := range tasks {
		if i == 3 {
			continue
		}
		v, err := tk.Wait(context.Background())
		assertNoError(t, err)
		assertEqual(t, v, i)
	}
}
