package generation

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"unicode"
)

var componentTemplate = template.Must(template.New("component").Parse(`// {{ .Description }}
export default function {{ .Name }}() {
  return (
    <div className="{{ .ClassName }}">
      <p>{{ .Description }}</p>
    </div>
  );
}
`))

var componentSuffixes = []struct {
	keyword string
	suffix  string
}{
	{"page", "Page"},
	{"button", "Button"},
	{"card", "Card"},
	{"input", "Input"},
	{"form", "Form"},
}

var fillerWords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "for": true, "of": true,
	"add": true, "create": true, "make": true, "new": true, "please": true,
	"with": true, "and": true, "on": true, "in": true,
}

// TemplateGenerator produces a placeholder React component without calling
// any external service. The component name is derived from the task
// description.
type TemplateGenerator struct{}

// NewTemplateGenerator creates a TemplateGenerator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// GenerateCode implements CodeGenerator.
func (g *TemplateGenerator) GenerateCode(ctx context.Context, req GenerationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return "", ErrEmptyDescription
	}

	name := ComponentName(description)
	data := struct {
		Name        string
		ClassName   string
		Description string
	}{
		Name:        name,
		ClassName:   kebab(name),
		Description: strings.NewReplacer("{", "", "}", "", "<", "", ">", "").Replace(description),
	}

	var buf bytes.Buffer
	if err := componentTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return buf.String(), nil
}

// ComponentName derives a PascalCase component name from free text, e.g.
// "add a settings page" becomes "SettingsPage".
func ComponentName(description string) string {
	words := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder
	suffix := ""
	for _, word := range words {
		if fillerWords[word] {
			continue
		}
		if s := suffixFor(word); s != "" {
			suffix = s
			continue
		}
		if b.Len() >= 24 {
			continue
		}
		b.WriteString(strings.ToUpper(word[:1]) + word[1:])
	}

	name := b.String() + suffix
	if name == "" {
		return "Component"
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "C" + name
	}
	return name
}

func suffixFor(word string) string {
	for _, s := range componentSuffixes {
		if word == s.keyword || word == s.keyword+"s" {
			return s.suffix
		}
	}
	return ""
}

func kebab(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
