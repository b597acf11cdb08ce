package frontmatter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

var (
	frontmatterPattern = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n?(.*)`)
	headingPattern     = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t#]*$`)
)

const summaryRunes = 80

// Frontmatter is the optional YAML header of a note
type Frontmatter struct {
	Title       string   `yaml:"title"`
	Aliases     []string `yaml:"aliases,flow"`
	Tags        []string `yaml:"tags,flow"`
	Created     string   `yaml:"created"`
	Modified    string   `yaml:"modified,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Draft       bool     `yaml:"draft,omitempty"`
}

// Parse extracts frontmatter from content and returns the parsed data and body
func Parse(content string) (*Frontmatter, string, error) {
	matches := frontmatterPattern.FindStringSubmatch(content)
	if len(matches) != 3 {
		return nil, content, nil
	}

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(matches[1]), &fm); err != nil {
		return nil, content, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	// Ensure arrays are never nil
	if fm.Aliases == nil {
		fm.Aliases = []string{}
	}
	if fm.Tags == nil {
		fm.Tags = []string{}
	}

	return &fm, matches[2], nil
}

// Build creates the YAML frontmatter string from a Frontmatter struct
func Build(fm *Frontmatter) string {
	var sb strings.Builder

	sb.WriteString("---\n")
	sb.WriteString(fmt.Sprintf("title: %s\n", fm.Title))
	sb.WriteString(fmt.Sprintf("aliases: %s\n", formatYAMLArray(fm.Aliases)))
	sb.WriteString(fmt.Sprintf("tags: %s\n", formatYAMLArray(fm.Tags)))
	sb.WriteString(fmt.Sprintf("created: %s\n", fm.Created))
	if fm.Modified != "" {
		sb.WriteString(fmt.Sprintf("modified: %s\n", fm.Modified))
	}
	if fm.Description != "" {
		sb.WriteString(fmt.Sprintf("description: %s\n", fm.Description))
	}
	if fm.Draft {
		sb.WriteString("draft: true\n")
	}
	sb.WriteString("---")

	return sb.String()
}

// BuildContent combines frontmatter and body content into a complete document
func BuildContent(fm *Frontmatter, bodyContent string) string {
	frontmatterStr := Build(fm)

	if !strings.HasPrefix(bodyContent, "\n") {
		return frontmatterStr + "\n\n" + bodyContent
	}
	return frontmatterStr + "\n" + bodyContent
}

// FormatTimestamp formats a time.Time into the standard frontmatter timestamp format
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// ParseTimestamp parses a frontmatter timestamp string into time.Time
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse("2006-01-02 15:04:05", s)
}

// Title picks a display title for a note: the frontmatter title, then the
// first markdown heading, then the file name.
func Title(content, filename string) string {
	fm, body, err := Parse(content)
	if err == nil && fm != nil && strings.TrimSpace(fm.Title) != "" {
		return strings.TrimSpace(fm.Title)
	}
	if m := headingPattern.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return titleFromFilename(filename)
}

func titleFromFilename(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = strings.NewReplacer("-", " ", "_", " ").Replace(stem)
	if strings.TrimSpace(stem) == "" {
		return "Untitled"
	}
	return cases.Title(language.English, cases.NoLower).String(stem)
}

// Summary returns the first line of body text, shortened for listings.
func Summary(content string) string {
	_, body, err := Parse(content)
	if err != nil {
		body = content
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#>-* "))
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > summaryRunes {
			runes := []rune(line)
			return string(runes[:summaryRunes-1]) + "…"
		}
		return line
	}
	return ""
}

// Tags returns the frontmatter tags of content, nil if there are none.
func Tags(content string) []string {
	fm, _, err := Parse(content)
	if err != nil || fm == nil || len(fm.Tags) == 0 {
		return nil
	}
	return fm.Tags
}

// formatYAMLArray formats a string slice as a YAML flow-style array
func formatYAMLArray(items []string) string {
	if len(items) == 0 {
		return "[]"
	}

	quotedItems := make([]string, len(items))
	for i, item := range items {
		if needsQuoting(item) {
			quotedItems[i] = fmt.Sprintf("%q", item)
		} else {
			quotedItems[i] = item
		}
	}

	return fmt.Sprintf("[%s]", strings.Join(quotedItems, ", "))
}

// needsQuoting checks if a string needs to be quoted in YAML
func needsQuoting(s string) bool {
	return strings.ContainsAny(s, ",:[]{}\"'")
}

// MergeTags combines multiple tag sources and removes duplicates
func MergeTags(sources ...[]string) []string {
	seen := make(map[string]bool)
	result := []string{}

	for _, tags := range sources {
		for _, tag := range tags {
			if tag != "" && !seen[tag] {
				seen[tag] = true
				result = append(result, tag)
			}
		}
	}

	return result
}
