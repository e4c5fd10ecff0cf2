// Package templates renders the HTML body fragments for the web service.
// Head metadata is not rendered here; handlers manage it declaratively on
// the page shell.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/mtanaka/courseforge/internal/platform/branding"
)

// Localizer resolves message keys for the active request language.
type Localizer interface {
	Sprintf(key string, args ...any) string
}

// GatheringView is one gathering prepared for rendering.
type GatheringView struct {
	ID       string
	Title    string
	BodyHTML string
	Starts   string
	Ends     string
	IsDraft  bool
}

// DashboardView carries the dashboard listing and its signed form tokens.
type DashboardView struct {
	Items       []GatheringView
	AddToken    string
	DeleteToken string
	StatusToken string
}

// EditorView carries one gathering being edited and its signed form token.
type EditorView struct {
	Item       GatheringView
	StartValue string
	EndValue   string
	PutToken   string
}

// ComposePageTitle appends the brand suffix unless the title already
// carries it.
func ComposePageTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return branding.AppName
	}
	if strings.HasSuffix(title, "| "+branding.AppName) {
		return title
	}
	return title + " | " + branding.AppName
}

// StudentGatherings renders the published gatherings students see.
func StudentGatherings(loc Localizer, items []GatheringView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<section class="gatherings"><h1>%s</h1>`, esc(loc.Sprintf("gatherings.title"))); err != nil {
			return err
		}
		if len(items) == 0 {
			if _, err := fmt.Fprintf(w, `<p class="empty">%s</p></section>`, esc(loc.Sprintf("gatherings.empty"))); err != nil {
				return err
			}
			return nil
		}
		for _, item := range items {
			if err := writeGatheringArticle(ctx, w, loc, item); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}

func writeGatheringArticle(ctx context.Context, w io.Writer, loc Localizer, item GatheringView) error {
	if _, err := fmt.Fprintf(w, `<article class="gathering"><h2>%s</h2><p class="schedule">%s %s · %s %s</p>`,
		esc(item.Title),
		esc(loc.Sprintf("gatherings.starts")), esc(item.Starts),
		esc(loc.Sprintf("gatherings.ends")), esc(item.Ends),
	); err != nil {
		return err
	}
	if item.BodyHTML != "" {
		if err := templ.Raw(item.BodyHTML).Render(ctx, w); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, `</article>`)
	return err
}

// DashboardGatherings renders the admin listing with add/delete/status
// forms.
func DashboardGatherings(loc Localizer, view DashboardView) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<section class="dashboard"><h1>%s</h1>`, esc(loc.Sprintf("dashboard.title"))); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w,
			`<form method="post" action="/dashboard/gatherings/add"><input type="hidden" name="xsrf_token" value="%s"/><button type="submit">%s</button></form>`,
			esc(view.AddToken), esc(loc.Sprintf("dashboard.add")),
		); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<table><tbody>`); err != nil {
			return err
		}
		for _, item := range view.Items {
			if err := writeDashboardRow(w, loc, view, item); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table></section>`)
		return err
	})
}

func writeDashboardRow(w io.Writer, loc Localizer, view DashboardView, item GatheringView) error {
	status := loc.Sprintf("gatherings.published")
	toggleLabel := loc.Sprintf("dashboard.unpublish")
	toggleValue := "1"
	if item.IsDraft {
		status = loc.Sprintf("gatherings.draft")
		toggleLabel = loc.Sprintf("dashboard.publish")
		toggleValue = "0"
	}
	_, err := fmt.Fprintf(w,
		`<tr><td>%s</td><td>%s</td><td>%s</td><td>`+
			`<a href="/dashboard/gatherings/edit?key=%s">%s</a>`+
			`<form method="post" action="/dashboard/gatherings/status"><input type="hidden" name="key" value="%s"/><input type="hidden" name="set_draft" value="%s"/><input type="hidden" name="xsrf_token" value="%s"/><button type="submit">%s</button></form>`+
			`<form method="post" action="/dashboard/gatherings/delete"><input type="hidden" name="key" value="%s"/><input type="hidden" name="xsrf_token" value="%s"/><button type="submit">%s</button></form>`+
			`</td></tr>`,
		esc(item.Title), esc(item.Starts), esc(status),
		esc(item.ID), esc(loc.Sprintf("dashboard.edit")),
		esc(item.ID), toggleValue, esc(view.StatusToken), esc(toggleLabel),
		esc(item.ID), esc(view.DeleteToken), esc(loc.Sprintf("dashboard.delete")),
	)
	return err
}

// GatheringEditor renders the edit form for one gathering.
func GatheringEditor(loc Localizer, view EditorView) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<section class="editor"><h1>%s</h1>`+
				`<form method="post" action="/dashboard/gatherings/edit">`+
				`<input type="hidden" name="key" value="%s"/>`+
				`<input type="hidden" name="xsrf_token" value="%s"/>`+
				`<label>%s<input type="text" name="title" value="%s"/></label>`+
				`<label>%s<textarea name="html">%s</textarea></label>`+
				`<label>%s<input type="datetime-local" name="start_time" value="%s"/></label>`+
				`<label>%s<input type="datetime-local" name="end_time" value="%s"/></label>`+
				`<button type="submit">%s</button>`+
				`</form></section>`,
			esc(loc.Sprintf("editor.title")),
			esc(view.Item.ID),
			esc(view.PutToken),
			esc(loc.Sprintf("editor.field_title")), esc(view.Item.Title),
			esc(loc.Sprintf("editor.field_body")), esc(view.Item.BodyHTML),
			esc(loc.Sprintf("editor.field_start")), esc(view.StartValue),
			esc(loc.Sprintf("editor.field_end")), esc(view.EndValue),
			esc(loc.Sprintf("editor.save")),
		)
		return err
	})
}

// ErrorMessage renders a localized error body.
func ErrorMessage(loc Localizer, key string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<section class="error"><p>%s</p></section>`, esc(loc.Sprintf(key)))
		return err
	})
}

func esc(value string) string {
	return templ.EscapeString(value)
}
