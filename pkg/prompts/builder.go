package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/story-forge/pkg/content"
)

// Builder collects template variables using a fluent interface.
type Builder struct {
	tmpl *Template
	vars map[string]string
}

// New creates a builder for the template.
func New(t *Template) *Builder {
	return &Builder{
		tmpl: t,
		vars: make(map[string]string),
	}
}

// With sets one variable.
func (b *Builder) With(key, value string) *Builder {
	b.vars[key] = value
	return b
}

// WithInt sets a numeric variable.
func (b *Builder) WithInt(key string, value int) *Builder {
	b.vars[key] = fmt.Sprint(value)
	return b
}

// WithBullets sets a variable to a "  * item" list, or fallback when items is empty.
func (b *Builder) WithBullets(key string, items []string, fallback string) *Builder {
	if len(items) == 0 {
		items = []string{fallback}
	}
	b.vars[key] = Bullets(items)
	return b
}

// WithArea sets the standard area variables used by area, adventure and checker prompts.
func (b *Builder) WithArea(a content.Area) *Builder {
	b.vars["area_name"] = a.Name
	b.vars["difficulty"] = fmt.Sprint(a.Difficulty)
	b.vars["geography"] = a.Geography
	b.vars["history"] = a.History
	b.vars["risk"] = a.Risks
	b.vars["treasure"] = a.Treasure.String()
	b.vars["treasure_location"] = a.TreasureLocation
	b.vars["collectibles"] = entryBullets(a.Items)
	b.vars["dangerous_creatures"] = entryBullets(a.DangerousCreatures)
	b.vars["harmless_creatures"] = entryBullets(a.HarmlessCreatures)
	b.vars["waypoint"] = entryBullets(a.Waypoints)
	b.vars["city"] = entryBullets(a.Cities)
	b.vars["route"] = entryBullets(a.Routes)
	b.vars["restpoint"] = entryBullets(a.RestPoints)
	return b
}

// Vars returns a copy of the collected variables.
func (b *Builder) Vars() map[string]string {
	out := make(map[string]string, len(b.vars))
	for k, v := range b.vars {
		out[k] = v
	}
	return out
}

// Build fills the template.
func (b *Builder) Build() (string, error) {
	if b.tmpl == nil {
		return "", fmt.Errorf("template is required")
	}
	return b.tmpl.Fill(b.vars)
}

// Bullets formats items as an indented "*" list.
func Bullets(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "  * " + item
	}
	return strings.Join(lines, "\n")
}

func entryBullets(entries []content.Entry) string {
	items := make([]string, len(entries))
	for i, e := range entries {
		items[i] = e.String()
	}
	return Bullets(items)
}
