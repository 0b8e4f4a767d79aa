package generate

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/joestump/templatesmith/internal/llm"
)

//go:embed prompts/*.tmpl
var defaultPrompts embed.FS

// Pass names one generator call of the pipeline. Each pass has a prompt file
// prompts/<pass>.tmpl defining a "system" and a "user" template.
type Pass string

const (
	PassCreate   Pass = "create"
	PassModify   Pass = "modify"
	PassValidate Pass = "validate"
	PassDummy    Pass = "dummy"
)

var allPasses = []Pass{PassCreate, PassModify, PassValidate, PassDummy}

// PromptData holds the variables available in the prompt templates.
type PromptData struct {
	UserPrompt       string
	Variables        []string
	VariableList     string
	Structure        string
	SampleJSON       string
	ExistingTemplate string
	Draft            string
	DetailLevel      DetailLevel
}

// Prompts renders the per-pass prompt templates.
type Prompts struct {
	templates map[Pass]*template.Template
}

// LoadPrompts parses the embedded prompt templates. When dir is non-empty, a
// file <dir>/<pass>.tmpl replaces the embedded default for that pass.
func LoadPrompts(dir string) (*Prompts, error) {
	p := &Prompts{templates: make(map[Pass]*template.Template, len(allPasses))}
	for _, pass := range allPasses {
		src, err := promptSource(dir, pass)
		if err != nil {
			return nil, err
		}
		tmpl, err := template.New(string(pass)).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s prompt: %w", pass, err)
		}
		for _, name := range []string{"system", "user"} {
			if tmpl.Lookup(name) == nil {
				return nil, fmt.Errorf("%s prompt does not define %q", pass, name)
			}
		}
		p.templates[pass] = tmpl
	}
	return p, nil
}

func promptSource(dir string, pass Pass) (string, error) {
	name := string(pass) + ".tmpl"
	if dir != "" {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return string(b), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read %s prompt: %w", pass, err)
		}
	}
	b, err := defaultPrompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("read embedded %s prompt: %w", pass, err)
	}
	return string(b), nil
}

// Render executes the system and user templates of pass.
func (p *Prompts) Render(pass Pass, data PromptData) (llm.Prompt, error) {
	tmpl, ok := p.templates[pass]
	if !ok {
		return llm.Prompt{}, fmt.Errorf("unknown prompt pass %q", pass)
	}
	data.VariableList = strings.Join(data.Variables, ", ")

	system, err := execute(tmpl, "system", data)
	if err != nil {
		return llm.Prompt{}, err
	}
	user, err := execute(tmpl, "user", data)
	if err != nil {
		return llm.Prompt{}, err
	}
	return llm.Prompt{System: system, User: user}, nil
}

func execute(tmpl *template.Template, name string, data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s/%s prompt: %w", tmpl.Name(), name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
