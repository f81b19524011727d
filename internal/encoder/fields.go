package encoder

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jittakal/ringstore/pkg/record"
)

// layoutCache resolves record layouts by name once per encoder.
type layoutCache struct {
	mu      sync.Mutex
	layouts map[string]record.Layout
}

func (c *layoutCache) lookup(name string) (record.Layout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.layouts[name]; ok {
		return l, nil
	}
	l, err := record.LookupLayout(name)
	if err != nil {
		return nil, err
	}
	if c.layouts == nil {
		c.layouts = make(map[string]record.Layout)
	}
	c.layouts[name] = l
	return l, nil
}

// fieldsJSON decodes the record payload and returns its columns as a JSON object.
func (c *layoutCache) fieldsJSON(rec record.Record) (string, error) {
	layout, err := c.lookup(rec.Layout)
	if err != nil {
		return "", err
	}
	values, err := layout.Decode(rec.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s object: %w", rec.Layout, err)
	}

	fields := make(map[string]any, len(values))
	for i, col := range layout.Columns() {
		fields[col] = values[i]
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fields: %w", err)
	}
	return string(data), nil
}
