package scenarios

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/harvestplan/core/model"
)

func TestScenario(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no scenarios found")
	}
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			t.Fatalf("load %s: %v", f, err)
		}
		t.Run(sc.Name, func(t *testing.T) {
			RunScenario(t, sc)
		})
	}
}

func TestLoadScenarioFile(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "single_silo.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "single-silo", sc.Name)
	assert.Equal(t, "ok", sc.Expected.Outcome)
	require.True(t, sc.Campaign.Prepared())
	m, ok := sc.Campaign.Machine(2)
	require.True(t, ok)
	assert.Equal(t, model.TransportVehicle, m.Kind)
	assert.Equal(t, model.FieldAccessLoc(1, 0), sc.Campaign.Transit[0].To)
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load("no-file.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte(":"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatal("expected unmarshal error")
	}
	// a vehicle without bunker capacity does not prepare
	invalid := filepath.Join(dir, "invalid.yaml")
	data := `name: invalid
campaign:
  machines:
    - id: 1
      kind: tv
      speed_empty: 10
      speed_full: 5
`
	if err := os.WriteFile(invalid, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(invalid); err == nil {
		t.Fatal("expected prepare error")
	}
}
