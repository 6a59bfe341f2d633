package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bindery/internal/logs"
)

func writeLog(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bindery.log")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.log")
	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthree\nfour\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "three" || result.Lines[1] != "four" {
		t.Fatalf("lines = %v", result.Lines)
	}
	if result.Offset == 0 {
		t.Fatal("offset must point past the read lines")
	}
}

func TestTailLastLinesShortFile(t *testing.T) {
	path := writeLog(t, "only\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 100})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 1 || result.Lines[0] != "only" {
		t.Fatalf("lines = %v", result.Lines)
	}
}

func TestTailResumeFromOffset(t *testing.T) {
	path := writeLog(t, "one\ntwo\n")
	ctx := context.Background()

	first, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := f.WriteString("three\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	second, err := logs.Tail(ctx, path, logs.TailOptions{Offset: first.Offset, Limit: 10})
	if err != nil {
		t.Fatalf("resumed tail: %v", err)
	}
	if len(second.Lines) != 1 || second.Lines[0] != "three" {
		t.Fatalf("resumed lines = %v", second.Lines)
	}
}

func TestTailOffsetBeyondTruncatedFile(t *testing.T) {
	path := writeLog(t, "short\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 10_000, Limit: 10})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 0 {
		t.Fatalf("no lines expected past end of file, got %v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("offset must clamp to file size, got %d", result.Offset)
	}
}

func TestTailFollowPicksUpAppendedLines(t *testing.T) {
	path := writeLog(t, "one\n")
	ctx := context.Background()

	initial, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	go func() {
		time.Sleep(300 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		f.WriteString("two\n")
	}()

	result, err := logs.Tail(ctx, path, logs.TailOptions{
		Offset: initial.Offset,
		Limit:  10,
		Follow: true,
		Wait:   3 * time.Second,
	})
	if err != nil {
		t.Fatalf("follow tail: %v", err)
	}
	if len(result.Lines) != 1 || result.Lines[0] != "two" {
		t.Fatalf("followed lines = %v", result.Lines)
	}
}

func TestTailFollowHonorsContext(t *testing.T) {
	path := writeLog(t, "one\n")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	initial, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	_, err = logs.Tail(ctx, path, logs.TailOptions{
		Offset: initial.Offset,
		Limit:  10,
		Follow: true,
		Wait:   10 * time.Second,
	})
	if err == nil {
		t.Fatal("cancelled follow must surface the context error")
	}
}
