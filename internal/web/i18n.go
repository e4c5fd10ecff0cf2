package web

import (
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mtanaka/courseforge/internal/platform/i18n/catalog"
	"github.com/mtanaka/courseforge/internal/web/templates"
)

var supportedTags = catalog.Default().Tags()

var languageMatcher = language.NewMatcher(supportedTags)

// printerLocalizer adapts a message printer to the template Localizer.
type printerLocalizer struct {
	printer *message.Printer
}

func (l printerLocalizer) Sprintf(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}

// resolveLocalizer picks the best supported language for the request and
// returns a localizer plus the matched language tag for the html element.
func resolveLocalizer(r *http.Request) (templates.Localizer, string) {
	accept := ""
	if r != nil {
		accept = r.Header.Get("Accept-Language")
	}
	requested, _, _ := language.ParseAcceptLanguage(accept)
	_, index, _ := languageMatcher.Match(requested...)
	tag := supportedTags[index]
	return printerLocalizer{printer: message.NewPrinter(tag)}, tag.String()
}
