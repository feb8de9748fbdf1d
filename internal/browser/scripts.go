package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Counter under window that the mutation observer bumps. A full navigation
// drops it, which is how the poller notices it must reinstall the observer.
const mutationCounter = "__jobradarMutations"

const observeScript = `(() => {
	if (window.` + mutationCounter + ` === undefined) {
		window.` + mutationCounter + ` = 0;
		new MutationObserver(() => { window.` + mutationCounter + `++; })
			.observe(document.documentElement, {childList: true, subtree: true, attributes: true, characterData: true});
	}
	return {mutations: window.` + mutationCounter + `, href: location.href};
})()`

const clickFunc = `(path) => {
	const el = document.querySelector(path);
	if (!el) return false;
	el.scrollIntoView({block: "center"});
	el.click();
	return true;
}`

const scrollFunc = `(path) => {
	const el = document.querySelector(path);
	if (!el) return false;
	el.scrollIntoView({block: "center"});
	return true;
}`

const badgeFunc = `(path, attr, markup) => {
	const el = document.querySelector(path);
	if (!el) return false;
	el.querySelectorAll("[" + attr + "]").forEach((n) => n.remove());
	el.insertAdjacentHTML("beforeend", markup);
	return true;
}`

// pageState is what observeScript reports.
type pageState struct {
	Mutations int    `json:"mutations"`
	Href      string `json:"href"`
}

// call renders an immediately invoked call of fn with JSON-encoded args.
func call(fn string, args ...any) (string, error) {
	encoded := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encoding script argument %d: %w", i, err)
		}
		encoded[i] = string(b)
	}
	return "(" + fn + ")(" + strings.Join(encoded, ", ") + ")", nil
}

// tracker decides whether a polled state differs from the last one seen.
type tracker struct {
	last   pageState
	primed bool
}

func (t *tracker) changed(s pageState) bool {
	if !t.primed {
		t.last, t.primed = s, true
		return false
	}
	if s == t.last {
		return false
	}
	t.last = s
	return true
}
