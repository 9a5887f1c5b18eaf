package markdown

import (
	"errors"
	"strings"
	"testing"
)

type panicRenderer struct{}

func (panicRenderer) Render(string) (string, error) {
	panic("boom")
}

type failingRenderer struct{}

func (failingRenderer) Render(string) (string, error) {
	return "", errors.New("nope")
}

func withRenderer(t *testing.T, width int, r renderer) {
	t.Helper()
	rendererMu.Lock()
	prev, hadPrev := renderers[width]
	renderers[width] = r
	rendererMu.Unlock()

	t.Cleanup(func() {
		rendererMu.Lock()
		if hadPrev {
			renderers[width] = prev
		} else {
			delete(renderers, width)
		}
		rendererMu.Unlock()
	})
}

func TestSafeRender_RecoversFromRendererPanic(t *testing.T) {
	withRenderer(t, 20, panicRenderer{})

	out := SafeRender(20, 0, []byte("hello\n"))
	if string(out) != "hello" {
		t.Fatalf("expected fallback to original markdown, got %q", string(out))
	}
}

func TestRender_FallsBackOnError(t *testing.T) {
	withRenderer(t, 18, failingRenderer{})

	out := Render(20, 2, []byte("line one\r\nline two\n\n"))
	if string(out) != "  line one\n  line two" {
		t.Fatalf("unexpected fallback %q", string(out))
	}
}

func TestRender_BlankInput(t *testing.T) {
	if out := Render(40, 0, []byte(" \n\n")); out != nil {
		t.Fatalf("expected nil, got %q", string(out))
	}
}

func TestRender_FormatsList(t *testing.T) {
	out := string(Render(40, 0, []byte("Steps:\n\n* first\n* second\n")))
	if !strings.Contains(out, "- first") || !strings.Contains(out, "- second") {
		t.Fatalf("expected list items, got %q", out)
	}
}
