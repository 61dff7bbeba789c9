package graph

import (
	"encoding/json"
	"time"
)

// ContextItem is a named data record owned by a workspace. Items without a
// ScenarioID are workspace-global; the rest belong to one scenario.
// Payload holds every field other than the bookkeeping ones and is flattened
// into the same JSON object.
type ContextItem struct {
	ID         string
	ScenarioID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Payload    map[string]interface{}
}

// IsGlobal reports whether the item is visible to every scenario
func (c *ContextItem) IsGlobal() bool {
	return c.ScenarioID == ""
}

// Name returns the payload "name" key when it is a string
func (c *ContextItem) Name() string {
	name, _ := c.Payload["name"].(string)
	return name
}

// Validate ensures context item integrity
func (c *ContextItem) Validate() error {
	if c.ID == "" {
		return ErrInvalidContextItemID
	}
	return nil
}

// Clone returns a deep copy of the item
func (c *ContextItem) Clone() *ContextItem {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Payload = CopyMap(c.Payload)
	return &cp
}

func (c ContextItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(c.Payload)+4)
	for k, v := range c.Payload {
		out[k] = v
	}
	out["id"] = c.ID
	if c.ScenarioID != "" {
		out["scenarioId"] = c.ScenarioID
	}
	if !c.CreatedAt.IsZero() {
		out["createdAt"] = c.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !c.UpdatedAt.IsZero() {
		out["updatedAt"] = c.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

func (c *ContextItem) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ID, _ = raw["id"].(string)
	c.ScenarioID, _ = raw["scenarioId"].(string)
	c.CreatedAt = parseTimestamp(raw["createdAt"])
	c.UpdatedAt = parseTimestamp(raw["updatedAt"])
	for _, k := range []string{"id", "scenarioId", "createdAt", "updatedAt"} {
		delete(raw, k)
	}
	c.Payload = raw
	return nil
}

// Filter is an opaque scenario filter; only its ID is interpreted.
type Filter struct {
	ID      string
	Payload map[string]interface{}
}

// Clone returns a deep copy of the filter
func (f *Filter) Clone() *Filter {
	if f == nil {
		return nil
	}
	return &Filter{ID: f.ID, Payload: CopyMap(f.Payload)}
}

func (f Filter) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(f.Payload)+1)
	for k, v := range f.Payload {
		out[k] = v
	}
	out["id"] = f.ID
	return json.Marshal(out)
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.ID, _ = raw["id"].(string)
	delete(raw, "id")
	f.Payload = raw
	return nil
}

// parseTimestamp accepts RFC3339 strings and epoch milliseconds. Anything
// else yields the zero time, which callers treat as missing.
func parseTimestamp(v interface{}) time.Time {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	}
	return time.Time{}
}
