package manager

import (
	"errors"
	"testing"
	"time"
)

func TestClassifyStartErrorRetryable(t *testing.T) {
	cases := []string{
		"gateway: connect failed: dial tcp: connection refused",
		"runtime: connect failed: websocket disconnected",
		"context deadline exceeded: timeout",
	}
	for _, msg := range cases {
		retryable, _ := classifyStartError(errors.New(msg))
		if !retryable {
			t.Errorf("classifyStartError(%q) = non-retryable, want retryable", msg)
		}
	}
}

func TestClassifyStartErrorPermanent(t *testing.T) {
	cases := []string{
		"runtime: login failed: userservice.login error=账号不存在",
		"gateway: invalid response status 400",
		"runtime: login failed: code 不能为空",
	}
	for _, msg := range cases {
		retryable, _ := classifyStartError(errors.New(msg))
		if retryable {
			t.Errorf("classifyStartError(%q) = retryable, want non-retryable", msg)
		}
	}
}

func TestClassifyStartErrorUnclassifiedDefaultsNonRetryable(t *testing.T) {
	retryable, _ := classifyStartError(errors.New("something entirely unexpected happened"))
	if retryable {
		t.Fatal("unclassified error should default to non-retryable")
	}
}

func TestNormalizeStartErrorPreservesClassifiableSubstring(t *testing.T) {
	normalized := normalizeStartError(errors.New("userservice.login error=账号不存在"))
	retryable, reclassified := classifyStartError(errors.New(normalized))
	if retryable {
		t.Fatalf("normalized message %q lost its non-retryable substring", normalized)
	}
	if reclassified != normalized {
		t.Fatalf("classifying an already-normalized message should be stable, got %q then %q", normalized, reclassified)
	}
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	base := 100 * time.Millisecond
	max := 1 * time.Second

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		max, // 1600ms would exceed max
		max,
	}
	for attempt, w := range want {
		got := backoffDelay(base, max, attempt+1)
		if got != w {
			t.Errorf("backoffDelay(attempt=%d) = %v, want %v", attempt+1, got, w)
		}
	}
}
