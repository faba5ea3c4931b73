package alerting

import (
	"fmt"
	"strings"

	"github.com/glucoguard/glucoguard/internal/i18n"
)

// Generic placeholder content used when neither the patient's locale nor the
// fallback locale has a template for the rule type.
const (
	genericTitle = "Notification"
	genericBody  = "You have a new notification"
)

// Content is the rendered notification payload.
type Content struct {
	Title string
	Body  string
}

// ContentResolver renders localized notification content from an immutable
// template catalog. Rendering is deterministic: identical inputs always
// yield identical output.
type ContentResolver struct {
	catalog        *i18n.Catalog
	fallbackLocale string
}

// NewContentResolver creates a resolver over the given catalog. The fallback
// locale is tried when the patient's locale has no templates.
func NewContentResolver(catalog *i18n.Catalog, fallbackLocale string) *ContentResolver {
	return &ContentResolver{catalog: catalog, fallbackLocale: fallbackLocale}
}

// Render resolves the template for the rule type in the requested locale,
// falling back to the configured fallback locale and finally a generic
// placeholder, then substitutes {{key}} tokens from params. Tokens without a
// matching param are passed through literally.
func (r *ContentResolver) Render(ruleType, locale string, params map[string]any) Content {
	tmpl, ok := i18n.Template{}, false
	if locale != "" {
		tmpl, ok = r.catalog.Lookup(locale, ruleType)
	}
	if !ok {
		tmpl, ok = r.catalog.Lookup(r.fallbackLocale, ruleType)
	}
	if !ok {
		return Content{Title: genericTitle, Body: genericBody}
	}
	return Content{
		Title: substitute(tmpl.Title, params),
		Body:  substitute(tmpl.Body, params),
	}
}

// substitute replaces every {{key}} token with the matching param value.
func substitute(tmpl string, params map[string]any) string {
	if len(params) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, fmt.Sprintf("{{%s}}", k), fmt.Sprintf("%v", v))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
