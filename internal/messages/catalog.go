// Package messages holds the language strings shown to requesters and admins.
package messages

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Message keys used by the approval job and the bot.
const (
	KeyPluginName         = "pluginname"
	KeyTaskName           = "courseautoapprovetask"
	KeyMaxCourses         = "maxcourses"
	KeyMaxCoursesDesc     = "maxcourses_desc"
	KeyReject             = "reject"
	KeyRejectDesc         = "reject_desc"
	KeyRejectMsgCount     = "rejectmsgcount"
	KeyRejectMsgShortname = "rejectmsgshortname"
	KeyCourseApproved     = "courseapproved"
)

//go:embed en.yaml
var defaultStrings []byte

// Catalog maps message keys to templates with {name} placeholders.
type Catalog struct {
	strings map[string]string
}

// Default returns the catalog built from the embedded English strings.
func Default() *Catalog {
	c, err := Parse(defaultStrings)
	if err != nil {
		panic(fmt.Sprintf("messages: embedded strings are invalid: %v", err))
	}
	return c
}

// Parse builds a catalog from a YAML document of key: template pairs.
func Parse(data []byte) (*Catalog, error) {
	parsed := map[string]string{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse message catalog: %w", err)
	}
	return &Catalog{strings: parsed}, nil
}

// Load returns the default catalog with the strings of overridePath layered
// on top. An empty path returns the default catalog.
func Load(overridePath string) (*Catalog, error) {
	c := Default()
	if overridePath == "" {
		return c, nil
	}
	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read message catalog %s: %w", overridePath, err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for k, v := range override.strings {
		c.strings[k] = v
	}
	return c, nil
}

// Get renders the template for key. Unknown keys render as [[key]].
func (c *Catalog) Get(key string, params map[string]any) string {
	tmpl, ok := c.strings[key]
	if !ok {
		return "[[" + key + "]]"
	}
	if len(params) == 0 {
		return tmpl
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, "{"+name+"}", fmt.Sprint(params[name]))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Has reports whether key is defined.
func (c *Catalog) Has(key string) bool {
	_, ok := c.strings[key]
	return ok
}
