package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wine-region-evaluator/internal/climate"
)

func TestDefault(t *testing.T) {
	regions, err := Default()
	require.NoError(t, err)
	require.Len(t, regions, 5)
	assert.Equal(t, climate.Region{Name: "McLaren Vale, South Australia", Latitude: -35.22, Longitude: 138.54}, regions[0])
	assert.Equal(t, "Yarra Valley, Victoria", regions[4].Name)
	assert.Equal(t, 145.10, regions[4].Longitude)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
regions:
  - name: Barossa Valley
    latitude: -34.56
    longitude: 138.95
    description: Shiraz country
`), 0o600))

	regions, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []climate.Region{{
		Name: "Barossa Valley", Latitude: -34.56, Longitude: 138.95, Description: "Shiraz country",
	}}, regions)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"empty", `regions: []`, "no regions"},
		{"malformed", `regions: [`, "parse regions"},
		{"no name", "regions:\n  - latitude: 1\n    longitude: 2", "has no name"},
		{"blank name", "regions:\n  - {name: \"   \", latitude: 1, longitude: 2}", "has no name"},
		{"duplicate after trim", "regions:\n  - {name: A, latitude: 1, longitude: 2}\n  - {name: \" A \", latitude: 3, longitude: 4}", "listed twice"},
		{"no longitude", "regions:\n  - name: A\n    latitude: 1", "needs latitude and longitude"},
		{"out of range", "regions:\n  - name: A\n    latitude: 91\n    longitude: 2", "out of range"},
		{"duplicate", "regions:\n  - {name: A, latitude: 1, longitude: 2}\n  - {name: A, latitude: 3, longitude: 4}", "listed twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_ZeroCoordinatesAllowed(t *testing.T) {
	regions, err := Parse([]byte("regions:\n  - {name: Null Island, latitude: 0, longitude: 0}"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, regions[0].Latitude)
}
