// Package htmltrans implements markup-aware field translation.
//
// Fields that carry markup are parsed and only their text nodes are sent
// to the engine; tag names and attributes pass through untouched. When the
// markup path fails — unparseable input, engine damage to the structure —
// the field falls back to tag stripping plus plain translation. The markup
// is lost in that fallback, which is reported to the caller as a degraded
// result, never swallowed.
package htmltrans

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/localekit/csvtrans/emoji"
	"github.com/localekit/csvtrans/engine"
)

// Translator translates individual field values through an engine,
// routing markup-bearing text down the tag-preserving path. Safe for use
// by a single worker; workers hold their own Translator.
type Translator struct {
	Engine engine.Engine
	// Logf receives non-fatal degradation notices (emoji loss, markup
	// fallback). Nil disables logging.
	Logf func(format string, args ...any)
}

// MarkupError reports a failure of the markup-preserving path. Callers
// inside this package catch it and fall back to plain translation.
type MarkupError struct {
	Err error
}

func (e *MarkupError) Error() string { return fmt.Sprintf("markup translation: %v", e.Err) }
func (e *MarkupError) Unwrap() error { return e.Err }

// IsMarkup reports whether text is markup-bearing: it contains a '<' with
// a '>' somewhere after it.
func IsMarkup(text string) bool {
	i := strings.IndexByte(text, '<')
	if i < 0 {
		return false
	}
	return strings.IndexByte(text[i+1:], '>') >= 0
}

// TranslateField translates one field value. Emoji are protected before
// the engine sees the text and restored afterward. The degraded flag is
// set when the markup-preserving path failed and the tag-stripping
// fallback produced the result.
func (t *Translator) TranslateField(ctx context.Context, text, src, tgt string) (out string, degraded bool, err error) {
	if strings.TrimSpace(text) == "" {
		return text, false, nil
	}

	guarded, em := emoji.Protect(text)

	var translated string
	if IsMarkup(guarded) {
		translated, err = t.translateMarkup(ctx, guarded, src, tgt)
		if err != nil {
			var me *MarkupError
			if !errors.As(err, &me) {
				return "", false, err
			}
			// Markup path failed: strip tags, translate plain, degrade.
			t.logf("markup translation failed (%v), falling back to plain text", me.Err)
			translated, err = t.Engine.Translate(ctx, StripTags(guarded), src, tgt)
			if err != nil {
				return "", false, err
			}
			degraded = true
		}
	} else {
		translated, err = t.Engine.Translate(ctx, guarded, src, tgt)
		if err != nil {
			return "", false, err
		}
	}

	restored, missing := emoji.Restore(translated, em)
	if missing > 0 {
		t.logf("%d emoji lost in translation of %q", missing, truncate(text, 40))
	}
	return restored, degraded, nil
}

// translateMarkup parses text as an HTML fragment, translates text nodes
// in place, and renders the fragment back. Structural damage in the
// rendered output surfaces as a *MarkupError.
func (t *Translator) translateMarkup(ctx context.Context, text, src, tgt string) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(text), body)
	if err != nil {
		return "", &MarkupError{Err: err}
	}

	for _, n := range nodes {
		if err := t.translateTextNodes(ctx, n, src, tgt); err != nil {
			return "", err
		}
	}

	var b strings.Builder
	for _, n := range nodes {
		if err := html.Render(&b, n); err != nil {
			return "", &MarkupError{Err: err}
		}
	}
	out := b.String()

	if !balancedTags(out) {
		return "", &MarkupError{Err: fmt.Errorf("mismatched tags in translated output")}
	}
	return out, nil
}

// translateTextNodes walks a node tree, translating text node content.
// Tag names and attributes are never touched. Engine failures abort the
// walk and are wrapped so the caller falls back.
func (t *Translator) translateTextNodes(ctx context.Context, n *html.Node, src, tgt string) error {
	if n.Type == html.TextNode {
		core := strings.TrimSpace(n.Data)
		if core != "" {
			translated, err := t.Engine.Translate(ctx, core, src, tgt)
			if err != nil {
				var pe *engine.PairError
				if errors.As(err, &pe) || ctx.Err() != nil {
					return err
				}
				return &MarkupError{Err: err}
			}
			lead := n.Data[:len(n.Data)-len(strings.TrimLeft(n.Data, " \t\n"))]
			trail := n.Data[len(strings.TrimRight(n.Data, " \t\n")):]
			n.Data = lead + translated + trail
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := t.translateTextNodes(ctx, c, src, tgt); err != nil {
			return err
		}
	}
	return nil
}

// StripTags removes markup and returns the concatenated text content.
func StripTags(text string) string {
	z := html.NewTokenizer(strings.NewReader(text))
	var b strings.Builder
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.WriteString(string(z.Text()))
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// voidElements never take a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// balancedTags reports whether every open tag in s has a matching close
// tag in the right nesting order.
func balancedTags(s string) bool {
	z := html.NewTokenizer(strings.NewReader(s))
	var stack []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return len(stack) == 0
			}
			return false
		case html.StartTagToken:
			name, _ := z.TagName()
			if !voidElements[string(name)] {
				stack = append(stack, string(name))
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if len(stack) == 0 || stack[len(stack)-1] != string(name) {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
}

func (t *Translator) logf(format string, args ...any) {
	if t.Logf != nil {
		t.Logf(format, args...)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
