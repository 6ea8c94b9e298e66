package enrich

import "strings"

// Pages nest JSON-LD arbitrarily (@graph wrappers, arrays of arrays).
// The guard stops runaway recursion on pathological documents.
const maxWalkDepth = 32

// collectEventNodes walks a decoded JSON-LD document and gathers every
// object whose @type marks it as an event. @graph needs no special case:
// its value is visited like any other nested container.
func collectEventNodes(node any, depth int, out *[]map[string]any) {
	if depth > maxWalkDepth {
		return
	}

	switch v := node.(type) {
	case map[string]any:
		if isEventType(v["@type"]) {
			*out = append(*out, v)
		}

		for _, child := range v {
			collectEventNodes(child, depth+1, out)
		}
	case []any:
		for _, child := range v {
			collectEventNodes(child, depth+1, out)
		}
	}
}

// isEventType accepts both the scalar and list forms of @type.
func isEventType(v any) bool {
	switch t := v.(type) {
	case string:
		return isEventTypeName(t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && isEventTypeName(s) {
				return true
			}
		}
	}

	return false
}

func isEventTypeName(s string) bool {
	return s == "Event" || s == "SocialEvent"
}

// organizerName normalizes the organizer property, which appears as an
// object, a list of objects, or is absent. Objects carry either name or
// legalName.
func organizerName(v any) string {
	switch t := v.(type) {
	case map[string]any:
		return personOrOrgName(t)
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				if name := personOrOrgName(m); name != "" {
					return name
				}
			}
		}
	}

	return ""
}

func personOrOrgName(m map[string]any) string {
	if name, ok := m["name"].(string); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}

	if name, ok := m["legalName"].(string); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}

	return ""
}

// imageURL normalizes the image property: a plain URL string, a list of
// them, or an ImageObject with a url key.
func imageURL(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if s := imageURL(item); s != "" {
				return s
			}
		}
	case map[string]any:
		if u, ok := t["url"].(string); ok {
			return strings.TrimSpace(u)
		}
	}

	return ""
}
