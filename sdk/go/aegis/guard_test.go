package aegis

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestWrapAllowsApproved(t *testing.T) {
	srv := fakeDaemon(t, Verdict{TxID: "0xabc", Decision: Approved}, nil)
	defer srv.Close()

	guarded := newClient(t, srv.URL).Wrap(func(ctx context.Context, tx Tx) (string, error) {
		return "0xhash", nil
	})

	hash, err := guarded(context.Background(), cleanSwap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "0xhash" {
		t.Errorf("hash = %q", hash)
	}
}

func TestWrapBlocksDenied(t *testing.T) {
	srv := fakeDaemon(t, Verdict{Decision: Blocked, BlockReason: "Target address is blacklisted"}, nil)
	defer srv.Close()

	called := false
	guarded := newClient(t, srv.URL).Wrap(func(ctx context.Context, tx Tx) (string, error) {
		called = true
		return "", nil
	})

	_, err := guarded(context.Background(), cleanSwap())
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedError, got %v", err)
	}
	if blocked.Verdict.Decision != Blocked {
		t.Errorf("verdict = %+v", blocked.Verdict)
	}
	if called {
		t.Error("inner function should not be called on a blocked verdict")
	}
}

func TestWrapBlocksPending(t *testing.T) {
	srv := fakeDaemon(t, Verdict{Decision: Pending, BlockReason: "High risk + high value requires manual approval"}, nil)
	defer srv.Close()

	guarded := newClient(t, srv.URL).Wrap(func(ctx context.Context, tx Tx) (string, error) {
		t.Fatal("inner should not be called")
		return "", nil
	})

	_, err := guarded(context.Background(), cleanSwap())
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedError, got %v", err)
	}
	if blocked.Verdict.Decision != Pending {
		t.Errorf("verdict = %+v", blocked.Verdict)
	}
}

func TestWrapBlocksWhenUnreachable(t *testing.T) {
	srv := fakeDaemon(t, Verdict{}, nil)
	srv.Close()

	guarded := newClient(t, srv.URL).Wrap(func(ctx context.Context, tx Tx) (string, error) {
		t.Fatal("inner should not be called")
		return "", nil
	})

	_, err := guarded(context.Background(), cleanSwap())
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedError, got %v", err)
	}
}

func TestWrapConcurrentSafe(t *testing.T) {
	srv := fakeDaemon(t, Verdict{Decision: Approved}, nil)
	defer srv.Close()

	guarded := newClient(t, srv.URL).Wrap(func(ctx context.Context, tx Tx) (string, error) {
		return "ok", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guarded(context.Background(), cleanSwap())
		}()
	}
	wg.Wait()
}
