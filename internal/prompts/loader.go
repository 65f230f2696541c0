// Package prompts provides a loader for externalized LLM prompt templates.
// Prompts are stored as JSON files, embedded at compile time and rendered with
// text/template.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

//go:embed *.json
var promptFiles embed.FS

// cache stores parsed templates keyed by "file/key"
var (
	cache   = make(map[string]*template.Template)
	cacheMu sync.RWMutex
)

// Get retrieves the raw template text of a prompt by filename and key.
// The filename should not include the path (e.g., "matching.json").
func Get(filename, key string) (string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return "", err
	}

	prompt, exists := prompts[key]
	if !exists {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// Render executes a prompt against data. Values are inserted verbatim, so text
// that looks like template syntax stays literal. A placeholder with no value
// in data is an error.
func Render(filename, key string, data map[string]string) (string, error) {
	tmpl, err := parsed(filename, key)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("prompt %s/%s: %w", filename, key, err)
	}
	return sb.String(), nil
}

func parsed(filename, key string) (*template.Template, error) {
	name := filename + "/" + key

	cacheMu.RLock()
	tmpl, ok := cache[name]
	cacheMu.RUnlock()
	if ok {
		return tmpl, nil
	}

	text, err := Get(filename, key)
	if err != nil {
		return nil, err
	}
	tmpl, err = template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s: %w", name, err)
	}

	cacheMu.Lock()
	cache[name] = tmpl
	cacheMu.Unlock()
	return tmpl, nil
}

func loadFile(filename string) (map[string]string, error) {
	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var prompts map[string]string
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}
	return prompts, nil
}
