package query

import (
	"testing"

	"github.com/danmuck/framelink/internal/testutil/testlog"
)

func TestParamsQueryAndPath(t *testing.T) {
	testlog.Start(t)
	got := Params("https://ads.example.com/ad;sz=300x250;ord=123;slot=top/frame.html?ord=999&click=https%3A%2F%2Fx.example&flag")
	want := map[string]string{
		"sz":    "300x250",
		"ord":   "999",
		"slot":  "top",
		"click": "https://x.example",
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected params: %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("param %s got=%q want=%q", k, got[k], v)
		}
	}
}

func TestParamsEarlierWins(t *testing.T) {
	testlog.Start(t)
	got := Params("https://h.example/?a=1&a=2")
	if got["a"] != "1" {
		t.Fatalf("earlier pair should win, got %q", got["a"])
	}
}

func TestParamsSanitizesValues(t *testing.T) {
	testlog.Start(t)
	got := Params(`https://h.example/?x=%3Cscript%3E&y=%22q%27%5C%00`)
	if got["x"] != "\uFFFDscript>" {
		t.Fatalf("unexpected x %q", got["x"])
	}
	if got["y"] != "\uFFFDq\uFFFD\uFFFD\uFFFD" {
		t.Fatalf("unexpected y %q", got["y"])
	}
}

func TestParamsBadInput(t *testing.T) {
	testlog.Start(t)
	if got := Params("://bad url"); len(got) != 0 {
		t.Fatalf("expected no params, got %v", got)
	}
	if got := Params(""); len(got) != 0 {
		t.Fatalf("expected no params, got %v", got)
	}
}
