// Package ingest turns skill source documents into Skill records.
//
// A source is either a directory holding a SKILL.md file or a standalone
// markdown file directly under the skills root. Each document carries YAML
// front-matter followed by markdown sections:
//
//	---
//	name: email-integration
//	description: Send and search email through an IMAP/SMTP bridge.
//	status: production
//	version: 1.2.0
//	dependencies: [memory-search]
//	tags: [domain:email, action:send]
//	---
//
//	## Capabilities
//	- send email
//	- search inbox
//
// Parsing is a swappable adapter (Parser); the rest of the system only sees
// the resulting models.Skill values.
package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/skillroute/pkg/models"
)

var (
	// ErrNoFrontMatter indicates the document does not start with a --- block.
	ErrNoFrontMatter = errors.New("missing front-matter")
	// ErrMissingField indicates a required front-matter field is empty.
	ErrMissingField = errors.New("missing required field")
)

// Record is the structured form of a source document before indexing.
type Record struct {
	Name         string
	Description  string
	Status       string
	Version      string
	Dependencies []string
	Tags         []string
	Capabilities []string
	Sections     []models.Section
}

// Parser converts raw document bytes into a Record.
type Parser interface {
	Parse(data []byte) (*Record, error)
}

// frontMatter is the YAML header of a skill document.
type frontMatter struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Status       string   `yaml:"status"`
	Version      string   `yaml:"version"`
	Dependencies flexList `yaml:"dependencies"`
	Tags         flexList `yaml:"tags"`
	Capabilities flexList `yaml:"capabilities"`
}

// flexList accepts either a YAML sequence or a comma separated string.
type flexList []string

func (f *flexList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*f = cleanList(items)
	case yaml.ScalarNode:
		*f = cleanList(strings.Split(strings.Trim(node.Value, "[]"), ","))
	default:
		return fmt.Errorf("line %d: expected list or string", node.Line)
	}
	return nil
}

func cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// MarkdownParser parses markdown documents with YAML front-matter.
type MarkdownParser struct{}

// Parse implements Parser.
func (MarkdownParser) Parse(data []byte) (*Record, error) {
	header, body, err := splitFrontMatter(string(data))
	if err != nil {
		return nil, err
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, fmt.Errorf("parse front-matter: %w", err)
	}

	if strings.TrimSpace(fm.Description) == "" {
		return nil, fmt.Errorf("%w: description", ErrMissingField)
	}

	return &Record{
		Name:         strings.TrimSpace(fm.Name),
		Description:  strings.TrimSpace(fm.Description),
		Status:       fm.Status,
		Version:      fm.Version,
		Dependencies: fm.Dependencies,
		Tags:         fm.Tags,
		Capabilities: fm.Capabilities,
		Sections:     splitSections(body),
	}, nil
}

// splitFrontMatter separates the --- delimited header from the body.
func splitFrontMatter(content string) (string, string, error) {
	content = strings.TrimLeft(content, "\ufeff \t\r\n")
	if !strings.HasPrefix(content, "---") {
		return "", "", ErrNoFrontMatter
	}

	rest := content[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", "", fmt.Errorf("%w: no closing delimiter", ErrNoFrontMatter)
	}

	header := rest[:end]
	body := rest[end+4:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	return header, body, nil
}

// splitSections breaks a markdown body into headed sections. Text before the
// first heading becomes a section with an empty heading.
func splitSections(body string) []models.Section {
	var sections []models.Section
	var current models.Section
	var buf strings.Builder

	flush := func() {
		current.Content = strings.TrimSpace(buf.String())
		if current.Heading != "" || current.Content != "" {
			sections = append(sections, current)
		}
		buf.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), maxSourceSize)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			current = models.Section{Heading: strings.TrimSpace(strings.TrimLeft(trimmed, "#"))}
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	flush()

	return sections
}
