package taxonomy

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Catalog is an immutable snapshot of the taxonomy, validated once at
// startup. It owns the axis execution order (a topological sort of the
// dependency graph) and fast lookups for tags, constraints, and rules.
// The classification pipeline reads the Catalog; it never mutates it.
type Catalog struct {
	axes        map[string]Axis
	order       []string
	tags        map[string]Tag
	tagsByAxis  map[string][]Tag
	constraints map[string][]Constraint
	rules       []InferenceRule
	prefixes    []string
}

// NewCatalog validates the given definitions and builds a Catalog.
// It fails fast on cyclic or dangling axis dependencies, malformed
// vocabulary/multiplicity values, and tags referencing undefined axes,
// so that no model call is ever made against a broken configuration.
func NewCatalog(
	axes []Axis,
	tags []Tag,
	constraints []Constraint,
	rules []InferenceRule,
) (*Catalog, error) {
	c := &Catalog{
		axes:        make(map[string]Axis, len(axes)),
		tags:        make(map[string]Tag, len(tags)),
		tagsByAxis:  make(map[string][]Tag),
		constraints: make(map[string][]Constraint),
	}

	for _, axis := range axes {
		if axis.Name == "" {
			return nil, fmt.Errorf("axis with empty name")
		}
		if !slices.Contains(vocabularies, axis.Vocabulary) {
			return nil, fmt.Errorf("axis %s: %w", axis.Name, ErrInvalidVocabulary)
		}
		if !slices.Contains(multiplicities, axis.Multiplicity) {
			return nil, fmt.Errorf("axis %s: %w", axis.Name, ErrInvalidMultiplicity)
		}
		if _, exists := c.axes[axis.Name]; exists {
			return nil, fmt.Errorf("axis %s declared twice", axis.Name)
		}
		c.axes[axis.Name] = axis
	}

	for _, axis := range axes {
		for _, dep := range axis.DependsOn {
			if _, ok := c.axes[dep]; !ok {
				return nil, fmt.Errorf("axis %s depends on %s: %w", axis.Name, dep, ErrUnknownDependency)
			}
		}
	}

	order, err := sortAxes(axes)
	if err != nil {
		return nil, err
	}
	c.order = order

	prefixSet := make(map[string]struct{})
	for _, tag := range tags {
		if _, ok := c.axes[tag.AxisName]; !ok {
			return nil, fmt.Errorf("tag %s references axis %s: %w", tag.Name, tag.AxisName, ErrAxisNotFound)
		}
		if _, exists := c.tags[tag.Name]; exists {
			return nil, fmt.Errorf("tag %s declared twice", tag.Name)
		}
		c.tags[tag.Name] = tag
		c.tagsByAxis[tag.AxisName] = append(c.tagsByAxis[tag.AxisName], tag)
		if tag.Prefix != "" {
			prefixSet[tag.Prefix] = struct{}{}
		}
	}
	for _, axis := range axes {
		if axis.Prefix != "" {
			prefixSet[axis.Prefix] = struct{}{}
		}
	}

	// Longest prefix first so EQT_ wins over a hypothetical E_ when both match.
	c.prefixes = make([]string, 0, len(prefixSet))
	for p := range prefixSet {
		c.prefixes = append(c.prefixes, p)
	}
	sort.Slice(c.prefixes, func(i, j int) bool {
		if len(c.prefixes[i]) != len(c.prefixes[j]) {
			return len(c.prefixes[i]) > len(c.prefixes[j])
		}
		return c.prefixes[i] < c.prefixes[j]
	})

	for _, cons := range constraints {
		if !cons.Active {
			continue
		}
		if _, ok := c.axes[cons.AxisName]; !ok {
			return nil, fmt.Errorf("constraint references axis %s: %w", cons.AxisName, ErrAxisNotFound)
		}
		c.constraints[cons.AxisName] = append(c.constraints[cons.AxisName], cons)
	}
	for axis := range c.constraints {
		slices.SortStableFunc(c.constraints[axis], func(a, b Constraint) int {
			return a.Position - b.Position
		})
	}

	c.rules = make([]InferenceRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if !slices.Contains(conditionKinds, rule.ConditionKind) ||
			!slices.Contains(ruleActions, rule.Action) {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, ErrInvalidRule)
		}
		c.rules = append(c.rules, rule)
	}
	slices.SortStableFunc(c.rules, func(a, b InferenceRule) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return a.Position - b.Position
	})

	return c, nil
}

// sortAxes produces a deterministic topological order via Kahn's algorithm,
// breaking ties by declared priority, then by name.
func sortAxes(axes []Axis) ([]string, error) {
	indegree := make(map[string]int, len(axes))
	dependents := make(map[string][]string, len(axes))
	byName := make(map[string]Axis, len(axes))

	for _, axis := range axes {
		byName[axis.Name] = axis
		indegree[axis.Name] = len(axis.DependsOn)
		for _, dep := range axis.DependsOn {
			dependents[dep] = append(dependents[dep], axis.Name)
		}
	}

	ready := make([]string, 0, len(axes))
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]string, 0, len(axes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			a, b := byName[ready[i]], byName[ready[j]]
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
			return a.Name < b.Name
		})

		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(axes) {
		return nil, ErrCyclicDependency
	}
	return order, nil
}

// Order returns axis names in execution order.
func (c *Catalog) Order() []string {
	return slices.Clone(c.order)
}

// Axis returns the axis definition for name.
func (c *Catalog) Axis(name string) (Axis, bool) {
	axis, ok := c.axes[name]
	return axis, ok
}

// Axes returns all axis definitions in execution order.
func (c *Catalog) Axes() []Axis {
	result := make([]Axis, 0, len(c.order))
	for _, name := range c.order {
		result = append(result, c.axes[name])
	}
	return result
}

// Tag returns the active tag definition for name.
func (c *Catalog) Tag(name string) (Tag, bool) {
	tag, ok := c.tags[name]
	if !ok || !tag.Active {
		return Tag{}, false
	}
	return tag, true
}

// HasTag reports whether name is a known active tag.
func (c *Catalog) HasTag(name string) bool {
	tag, ok := c.tags[name]
	return ok && tag.Active
}

// TagsForAxis returns the active tags declared on an axis, sorted by name.
func (c *Catalog) TagsForAxis(axis string) []Tag {
	tags := make([]Tag, 0, len(c.tagsByAxis[axis]))
	for _, tag := range c.tagsByAxis[axis] {
		if tag.Active {
			tags = append(tags, tag)
		}
	}
	slices.SortFunc(tags, func(a, b Tag) int {
		return strings.Compare(a.Name, b.Name)
	})
	return tags
}

// Rules returns active inference rules in evaluation order.
func (c *Catalog) Rules() []InferenceRule {
	return slices.Clone(c.rules)
}

// Prefixes returns all known tag prefixes, longest first.
func (c *Catalog) Prefixes() []string {
	return slices.Clone(c.prefixes)
}

// SplitPrefix extracts the longest known prefix from a tag name.
// Returns ("", name) when no known prefix matches.
func (c *Catalog) SplitPrefix(name string) (string, string) {
	for _, prefix := range c.prefixes {
		if strings.HasPrefix(name, prefix) {
			return prefix, name[len(prefix):]
		}
	}
	return "", name
}

// AxisForTag resolves the owning axis for a tag name, falling back to
// prefix lookup for novel tags on open axes.
func (c *Catalog) AxisForTag(name string) (Axis, bool) {
	if tag, ok := c.tags[name]; ok {
		return c.Axis(tag.AxisName)
	}
	prefix, _ := c.SplitPrefix(name)
	if prefix == "" {
		return Axis{}, false
	}
	for _, axis := range c.axes {
		if axis.Prefix == prefix {
			return axis, true
		}
	}
	for _, tags := range c.tagsByAxis {
		for _, tag := range tags {
			if tag.Prefix == prefix {
				return c.Axis(tag.AxisName)
			}
		}
	}
	return Axis{}, false
}

// TransitiveDeps returns the transitive dependency closure of an axis.
func (c *Catalog) TransitiveDeps(name string) []string {
	seen := make(map[string]struct{})
	var walk func(string)
	walk = func(n string) {
		axis, ok := c.axes[n]
		if !ok {
			return
		}
		for _, dep := range axis.DependsOn {
			if _, done := seen[dep]; done {
				continue
			}
			seen[dep] = struct{}{}
			walk(dep)
		}
	}
	walk(name)

	deps := make([]string, 0, len(seen))
	for dep := range seen {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

// RulesText reconstructs the vocabulary and constraint section injected into
// an axis prompt: allowed values grouped by prefix with the vocabulary mode,
// followed by the axis constraints.
func (c *Catalog) RulesText(axisName string) string {
	axis, ok := c.axes[axisName]
	if !ok {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Regles pour l'axe: %s\n\n", axisName)

	tags := c.TagsForAxis(axisName)
	if len(tags) > 0 {
		sb.WriteString("## Valeurs autorisees:\n")

		byPrefix := make(map[string][]Tag)
		prefixOrder := make([]string, 0)
		for _, tag := range tags {
			if _, seen := byPrefix[tag.Prefix]; !seen {
				prefixOrder = append(prefixOrder, tag.Prefix)
			}
			byPrefix[tag.Prefix] = append(byPrefix[tag.Prefix], tag)
		}
		sort.Strings(prefixOrder)

		for _, prefix := range prefixOrder {
			fmt.Fprintf(&sb, "\n### %s\nlist_type: %s\nvalues:\n", prefix, axis.Vocabulary)
			for _, tag := range byPrefix[prefix] {
				fmt.Fprintf(&sb, "  - %s\n", tag.Name)
				if tag.Description != nil && *tag.Description != "" {
					fmt.Fprintf(&sb, "    # %s\n", *tag.Description)
				}
			}
		}
	}

	if constraints := c.constraints[axisName]; len(constraints) > 0 {
		sb.WriteString("\n## Contraintes:\n")
		for _, cons := range constraints {
			fmt.Fprintf(&sb, "  - %q\n", cons.Text)
		}
	}

	return sb.String()
}
