package climate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReading_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(Reading{
		RegionID:        7,
		Date:            time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		MeanTemperature: 21.5,
		CloudCover:      40,
		SoilMoisture:    0.3,
	})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	assert.ElementsMatch(t, []string{
		"date", "mean_temperature", "max_temperature", "min_temperature",
		"mean_humidity", "max_humidity", "min_humidity",
		"rain", "cloud_cover", "soil_moisture",
	}, keys(fields))
	assert.Equal(t, 21.5, fields["mean_temperature"])
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
