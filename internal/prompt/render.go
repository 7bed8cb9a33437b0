package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// Render renders a version's template with variables.
// Supports both Go template syntax ({{.VarName}}) and Mustache-style
// ({{VAR_NAME}}) placeholders.
func Render(v *Version, vars map[string]any) (string, error) {
	if v == nil {
		return "", errors.New("prompt: nil version")
	}
	data, err := resolveVars(v, vars)
	if err != nil {
		return "", err
	}
	return renderText(v.Template, data)
}

// RenderSystem renders a version's system text with the same variable
// rules as Render.
func RenderSystem(v *Version, vars map[string]any) (string, error) {
	if v == nil {
		return "", errors.New("prompt: nil version")
	}
	if strings.TrimSpace(v.System) == "" {
		return "", nil
	}
	data, err := resolveVars(v, vars)
	if err != nil {
		return "", err
	}
	return renderText(v.System, data)
}

// resolveVars merges row variables with declared defaults, failing on
// missing required variables.
func resolveVars(v *Version, vars map[string]any) (map[string]any, error) {
	data := make(map[string]any, len(vars)+len(v.Variables))
	for k, val := range vars {
		data[k] = val
	}

	for _, decl := range v.Variables {
		if decl.Name == "" {
			continue
		}
		if _, ok := data[decl.Name]; ok {
			continue
		}
		if decl.Required {
			return nil, fmt.Errorf("prompt: missing required variable %q", decl.Name)
		}
		if decl.Default != "" {
			data[decl.Name] = decl.Default
		}
	}
	return data, nil
}

func renderText(text string, data map[string]any) (string, error) {
	// Simple string replacement for Mustache-style {{VAR}} placeholders.
	rendered := text
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		if strings.Contains(rendered, placeholder) {
			rendered = strings.ReplaceAll(rendered, placeholder, fmt.Sprintf("%v", v))
		}
	}

	// Anything left that looks like a Go template construct goes
	// through text/template.
	if strings.Contains(rendered, "{{.") || strings.Contains(rendered, "{{range") || strings.Contains(rendered, "{{if") {
		tmpl, err := template.New("prompt").Option("missingkey=error").Parse(rendered)
		if err != nil {
			return "", fmt.Errorf("prompt: parse template: %w", err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("prompt: render template: %w", err)
		}
		return buf.String(), nil
	}

	if err := validateTemplateDelimiters(rendered); err != nil {
		return "", err
	}
	return rendered, nil
}

func validateTemplateDelimiters(s string) error {
	open := 0
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '{' && s[i+1] == '{' {
			open++
			i++
			continue
		}
		if s[i] == '}' && s[i+1] == '}' {
			if open == 0 {
				return errors.New("prompt: unmatched \"}}\"")
			}
			open--
			i++
		}
	}
	if open != 0 {
		return errors.New("prompt: unmatched \"{{\"")
	}
	return nil
}
