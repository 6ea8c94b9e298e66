package enrich

import "testing"

func TestOrganizerName(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"object name", map[string]any{"name": "Civic League"}, "Civic League"},
		{"object legal name", map[string]any{"legalName": "Civic League Inc"}, "Civic League Inc"},
		{"name wins over legal name", map[string]any{"name": "League", "legalName": "League Inc"}, "League"},
		{"list skips empty", []any{map[string]any{"name": "  "}, map[string]any{"name": "Second"}}, "Second"},
		{"missing", nil, ""},
		{"wrong shape", "just a string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := organizerName(tt.in); got != tt.want {
				t.Errorf("organizerName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImageURL(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", " https://x/a.jpg ", "https://x/a.jpg"},
		{"list of strings", []any{"https://x/a.jpg", "https://x/b.jpg"}, "https://x/a.jpg"},
		{"image object", map[string]any{"url": "https://x/c.jpg"}, "https://x/c.jpg"},
		{"list of objects", []any{map[string]any{"url": "https://x/d.jpg"}}, "https://x/d.jpg"},
		{"missing", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := imageURL(tt.in); got != tt.want {
				t.Errorf("imageURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollectEventNodesDepthGuard(t *testing.T) {
	// A chain deeper than the guard must not reach the event node.
	node := any(map[string]any{"@type": "Event"})
	for i := 0; i < maxWalkDepth+5; i++ {
		node = []any{node}
	}

	var events []map[string]any
	collectEventNodes(node, 0, &events)

	if len(events) != 0 {
		t.Errorf("expected depth guard to drop nested event, got %d", len(events))
	}
}
