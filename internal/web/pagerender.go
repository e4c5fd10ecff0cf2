package web

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mtanaka/courseforge/internal/headtag"
	"github.com/mtanaka/courseforge/internal/web/templates"
)

//go:embed shell.html
var shellHTML []byte

// PageMeta describes the head metadata for one rendered page. The shell
// head is reconciled declaratively, so tags missing from the shell are
// created and repeated renders never duplicate them.
type PageMeta struct {
	Title       string
	Description string
	Canonical   string
	Lang        string
}

// renderPage renders the body component inside the page shell, with the
// head managed from the page metadata.
func renderPage(ctx context.Context, w http.ResponseWriter, statusCode int, meta PageMeta, body templ.Component) error {
	doc, err := headtag.ParseDocument(bytes.NewReader(shellHTML))
	if err != nil {
		return fmt.Errorf("parse page shell: %w", err)
	}
	if err := applyHeadMeta(doc, meta); err != nil {
		return fmt.Errorf("apply head metadata: %w", err)
	}
	setDocumentLanguage(doc.Root(), meta.Lang)
	if err := injectBody(ctx, doc, body); err != nil {
		return fmt.Errorf("render page body: %w", err)
	}

	var rendered bytes.Buffer
	if err := doc.Render(&rendered); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if statusCode <= 0 {
		statusCode = http.StatusOK
	}
	w.WriteHeader(statusCode)
	_, _ = w.Write(rendered.Bytes())
	return nil
}

func applyHeadMeta(doc *headtag.Document, meta PageMeta) error {
	title := templates.ComposePageTitle(meta.Title)
	specs := []headtag.TagSpec{
		{
			TagName:   "title",
			Selector:  "title",
			InnerText: title,
		},
		{
			TagName:  "meta",
			Selector: `meta[property="og:title"]`,
			Attributes: []headtag.Attribute{
				{Name: "property", Value: "og:title"},
				{Name: "content", Value: title},
			},
		},
		{
			TagName:  "meta",
			Selector: `meta[property="og:type"]`,
			Attributes: []headtag.Attribute{
				{Name: "property", Value: "og:type"},
				{Name: "content", Value: "website"},
			},
		},
	}
	if desc := strings.TrimSpace(meta.Description); desc != "" {
		specs = append(specs,
			headtag.TagSpec{
				TagName:  "meta",
				Selector: `meta[name="description"]`,
				Attributes: []headtag.Attribute{
					{Name: "name", Value: "description"},
					{Name: "content", Value: desc},
				},
			},
			headtag.TagSpec{
				TagName:  "meta",
				Selector: `meta[property="og:description"]`,
				Attributes: []headtag.Attribute{
					{Name: "property", Value: "og:description"},
					{Name: "content", Value: desc},
				},
			},
		)
	}
	if canonical := strings.TrimSpace(meta.Canonical); canonical != "" {
		specs = append(specs, headtag.TagSpec{
			TagName:  "link",
			Selector: `link[rel="canonical"]`,
			Attributes: []headtag.Attribute{
				{Name: "rel", Value: "canonical"},
				{Name: "href", Value: canonical},
			},
		})
	}
	for _, spec := range specs {
		if err := doc.Manager().Apply(spec); err != nil {
			return err
		}
	}
	return nil
}

func setDocumentLanguage(root *html.Node, lang string) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return
	}
	htmlNode := findElement(root, atom.Html)
	if htmlNode == nil {
		return
	}
	for i, attr := range htmlNode.Attr {
		if attr.Key == "lang" {
			htmlNode.Attr[i].Val = lang
			return
		}
	}
	htmlNode.Attr = append(htmlNode.Attr, html.Attribute{Key: "lang", Val: lang})
}

func injectBody(ctx context.Context, doc *headtag.Document, body templ.Component) error {
	if body == nil {
		return nil
	}
	main := findElement(doc.Root(), atom.Main)
	if main == nil {
		return errors.New("page shell has no main element")
	}
	var buf bytes.Buffer
	if err := body.Render(ctx, &buf); err != nil {
		return err
	}
	nodes, err := html.ParseFragment(&buf, main)
	if err != nil {
		return fmt.Errorf("parse body fragment: %w", err)
	}
	for _, node := range nodes {
		main.AppendChild(node)
	}
	return nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, a); found != nil {
			return found
		}
	}
	return nil
}
