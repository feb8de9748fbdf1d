package browser

import (
	"strings"
	"testing"
)

func TestCall_EncodesArguments(t *testing.T) {
	got, err := call(badgeFunc, `html > body:nth-child(2) > li[data-x="1"]`, "data-jobradar-badge", `<details data-jobradar-badge="a&b"></details>`)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.HasPrefix(got, "((path, attr, markup) =>") {
		t.Errorf("script should invoke the function, got prefix %q", got[:20])
	}
	for _, want := range []string{
		`"html \u003e body:nth-child(2) \u003e li[data-x=\"1\"]"`,
		`"data-jobradar-badge"`,
		`"\u003cdetails data-jobradar-badge=\"a\u0026b\"\u003e\u003c/details\u003e"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("script missing %s:\n%s", want, got)
		}
	}
	if !strings.HasSuffix(got, ")") {
		t.Errorf("script not closed: %q", got)
	}
}

func TestTracker_Changed(t *testing.T) {
	var tr tracker
	steps := []struct {
		state pageState
		want  bool
	}{
		{pageState{Mutations: 0, Href: "https://x.test/a"}, false}, // first poll primes
		{pageState{Mutations: 0, Href: "https://x.test/a"}, false},
		{pageState{Mutations: 3, Href: "https://x.test/a"}, true},
		{pageState{Mutations: 3, Href: "https://x.test/b"}, true},
		{pageState{Mutations: 0, Href: "https://x.test/b"}, true}, // reload reset the counter
		{pageState{Mutations: 0, Href: "https://x.test/b"}, false},
	}
	for i, s := range steps {
		if got := tr.changed(s.state); got != s.want {
			t.Errorf("step %d: changed(%+v) = %v, want %v", i, s.state, got, s.want)
		}
	}
}
