package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kilianp07/harvestplan/core/model"
)

// actionFile is the on-disk action list. Plans written by the scheduler carry
// extra keys that are ignored here.
type actionFile struct {
	Campaign string         `json:"campaign,omitempty"`
	Actions  []model.Action `json:"actions"`
}

// WriteActions writes the action list as an indented JSON document.
func WriteActions(w io.Writer, actions []model.Action) error {
	if actions == nil {
		actions = []model.Action{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(actionFile{Actions: actions})
}

// ReadActions parses an action list. Both a bare JSON array and an object
// with an "actions" key are accepted. Every action is validated.
func ReadActions(r io.Reader) ([]model.Action, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	var actions []model.Action
	if len(b) > 0 && b[0] == '[' {
		err = json.Unmarshal(b, &actions)
	} else {
		var f actionFile
		err = json.Unmarshal(b, &f)
		actions = f.Actions
	}
	if err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}
	return actions, nil
}

// LoadActions reads an action list from path.
func LoadActions(path string) ([]model.Action, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadActions(f)
}
