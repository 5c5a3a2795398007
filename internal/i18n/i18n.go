// Package i18n holds the message-rendering collaborator. The orchestration
// core treats rendering as a pure function of (key, locale, params); the
// catalog here is a small built-in implementation of that contract so events
// reaching a client always carry readable text alongside the raw key.
package i18n

import (
	"sort"
	"strings"
)

// Renderer resolves a template key for a locale with named parameters.
type Renderer interface {
	Render(key, locale string, params map[string]string) string
}

// Catalog is a locale -> key -> template map. Templates reference parameters
// as {name}. Lookup falls back to "en", then to a key+params dump so a missing
// translation never drops information.
type Catalog struct {
	locales map[string]map[string]string
}

// NewCatalog builds a Catalog from locale template maps.
func NewCatalog(locales map[string]map[string]string) *Catalog {
	if locales == nil {
		locales = map[string]map[string]string{}
	}
	return &Catalog{locales: locales}
}

func (c *Catalog) Render(key, locale string, params map[string]string) string {
	tmpl, ok := c.lookup(key, locale)
	if !ok {
		return fallback(key, params)
	}
	out := tmpl
	for name, val := range params {
		out = strings.ReplaceAll(out, "{"+name+"}", val)
	}
	return out
}

func (c *Catalog) lookup(key, locale string) (string, bool) {
	if m, ok := c.locales[locale]; ok {
		if tmpl, ok := m[key]; ok {
			return tmpl, true
		}
	}
	if locale != "en" {
		if m, ok := c.locales["en"]; ok {
			if tmpl, ok := m[key]; ok {
				return tmpl, true
			}
		}
	}
	return "", false
}

func fallback(key string, params map[string]string) string {
	if len(params) == 0 {
		return key
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(key)
	for _, name := range names {
		b.WriteString(" ")
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(params[name])
	}
	return b.String()
}
