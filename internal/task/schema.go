package task

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidTask is wrapped by every validation failure.
var ErrInvalidTask = errors.New("invalid task")

//go:embed task.schema.json
var schemaJSON string

var schemaLoader = gojsonschema.NewStringLoader(schemaJSON)

// Validate checks the JSON form of t against the task schema.
func Validate(t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrInvalidTask, err)
	}
	return ValidateJSON(data)
}

// ValidateJSON checks a raw task document against the task schema.
func ValidateJSON(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)

	return fmt.Errorf("%w: %s", ErrInvalidTask, strings.Join(errs, "; "))
}

// ParseDocument parses caller-supplied JSON into a Document. Blank input
// yields an empty document; anything but a JSON object is rejected.
func ParseDocument(raw string) (Document, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Document{}, nil
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("invalid JSON format: expected an object")
	}
	return doc, nil
}

// ParseTasks decodes either a single task object or an array of tasks.
func ParseTasks(data []byte) ([]Task, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var tasks []Task
		if err := json.Unmarshal(data, &tasks); err != nil {
			return nil, fmt.Errorf("parse tasks: %w", err)
		}
		return tasks, nil
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse task: %w", err)
	}
	return []Task{t}, nil
}
