package reel

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// DefaultTemplate files movies into "<Title> (<Year>)/<Title> (<Year>)<ext>".
const DefaultTemplate = "%title=Unknown (%year=0000)/%title=Unknown (%year=0000)%ext"

// segmentReplacer replaces characters that are unsafe inside a single path
// segment.
var segmentReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeSegment makes value safe to use as (part of) one path segment.
func SanitizeSegment(value string) string {
	value = strings.TrimSpace(segmentReplacer.Replace(value))
	if value == "." || value == ".." {
		return strings.ReplaceAll(value, ".", "_")
	}
	return value
}

// builtinValue returns file attributes available to templates and source
// parameters.
func builtinValue(r *MediaRecord, key string) (any, bool) {
	name := r.Filename()
	ext := filepath.Ext(name)
	switch strings.ToLower(key) {
	case "path":
		return r.Path(), true
	case "dir":
		return r.Dir(), true
	case "filename":
		return name, true
	case "stem":
		return strings.TrimSuffix(name, ext), true
	case "ext":
		return ext, true
	case "fingerprint":
		return string(r.Fingerprint()), true
	}
	return nil, false
}

// RenderTemplate substitutes tokens in tmpl from the record.
//
//	%token          value of token, error when unresolved
//	%token=default  value of token, or the literal default
//	%%              a literal percent sign
//
// A default is the run of characters up to whitespace, a path separator, a
// percent sign or a bracket.
func RenderTemplate(tmpl string, r *MediaRecord) (string, error) {
	var b strings.Builder
	runes := []rune(tmpl)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '%' {
			b.WriteRune(c)
			continue
		}
		if i+1 < len(runes) && runes[i+1] == '%' {
			b.WriteRune('%')
			i++
			continue
		}

		j := i + 1
		for j < len(runes) && isTokenRune(runes[j]) {
			j++
		}
		token := string(runes[i+1 : j])
		if token == "" {
			b.WriteRune('%')
			continue
		}

		def, hasDefault := "", false
		if j < len(runes) && runes[j] == '=' {
			k := j + 1
			for k < len(runes) && isDefaultRune(runes[k]) {
				k++
			}
			def, hasDefault = string(runes[j+1:k]), true
			j = k
		}

		value, ok := templateValue(r, token)
		switch {
		case ok:
			b.WriteString(value)
		case hasDefault:
			b.WriteString(def)
		default:
			return "", &TemplateError{Template: tmpl, Token: token}
		}
		i = j - 1
	}
	return b.String(), nil
}

// ResolveDestination renders tmpl and anchors a relative result at root.
func ResolveDestination(tmpl, root string, r *MediaRecord) (string, error) {
	rendered, err := RenderTemplate(tmpl, r)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(rendered) == "" {
		return "", fmt.Errorf("template %q rendered an empty path", tmpl)
	}
	if !filepath.IsAbs(rendered) {
		if root == "" {
			root = r.Dir()
		}
		rendered = filepath.Join(root, rendered)
	}
	return filepath.Clean(rendered), nil
}

func templateValue(r *MediaRecord, token string) (string, bool) {
	if v, ok := builtinValue(r, token); ok {
		s := FormatValue(v)
		if strings.EqualFold(token, "ext") {
			return s, true
		}
		s = SanitizeSegment(s)
		return s, s != ""
	}
	s, ok := r.ResolveString(token)
	if !ok {
		return "", false
	}
	s = SanitizeSegment(s)
	return s, s != ""
}

func isTokenRune(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

func isDefaultRune(c rune) bool {
	if unicode.IsSpace(c) {
		return false
	}
	switch c {
	case '/', '\\', '%', '(', ')', '[', ']', '{', '}':
		return false
	}
	return true
}
