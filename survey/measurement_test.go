package survey

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMeasurements(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
		wantErr bool
	}{
		{"single object", `{"from":"a","into":"b","location":[1,0,0],"physAngle":[0,0,0.5]}`, 1, false},
		{"array", `[{"from":"a","into":"b","location":[1,0,0],"physAngle":[0,0,0]},{"from":"b","into":"c","location":[0,1,0],"physAngle":[0,0,0],"sigma":0.1}]`, 2, false},
		{"leading whitespace", "  \n[]", 0, false},
		{"self measurement", `{"from":"a","into":"a","location":[0,0,0],"physAngle":[0,0,0]}`, 0, true},
		{"missing into", `{"from":"a","location":[0,0,0],"physAngle":[0,0,0]}`, 0, true},
		{"negative sigma", `{"from":"a","into":"b","location":[0,0,0],"physAngle":[0,0,0],"sigma":-1}`, 0, true},
		{"not json", `nope`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, err := DecodeMeasurements([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, ms, tt.want)
		})
	}
}

func TestMeasurementValidateWrapsSentinel(t *testing.T) {
	err := Measurement{From: "x", Into: "x"}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidMeasurement))
}

func TestMeasurementOriPairRoundTrip(t *testing.T) {
	m := Measurement{From: "b", Into: "a", Location: [3]float64{1, 2, 3}, PhysAngle: [3]float64{0.1, 0.2, -0.3}, Sigma: 0.2}
	pair := m.OriPair()
	back := MeasurementFromPair(pair, m.Sigma)
	assert.Equal(t, m.From, back.From)
	assert.Equal(t, m.Into, back.Into)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, m.Location[i], back.Location[i], 1e-12)
		assert.InDelta(t, m.PhysAngle[i], back.PhysAngle[i], 1e-9)
	}
}

func TestSaveLoadMeasurements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	ms := cubeMeasurements(t, 1)
	require.NoError(t, SaveMeasurements(path, ms))

	loaded, err := LoadMeasurements(path)
	require.NoError(t, err)
	assert.Len(t, loaded, len(ms))

	_, err = LoadMeasurements(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadObservations(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "obs.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"targets":[{"id":"t1","rays":[{"start":[0,0,0],"dir":[1,0,0]}]}]}`), 0644))
	set, err := LoadObservations(good)
	require.NoError(t, err)
	require.Len(t, set.Targets, 1)
	assert.Equal(t, "t1", set.Targets[0].ID)
	assert.True(t, set.Targets[0].Rays[0].Ray().IsValid())

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"targets":[{"rays":[]}]}`), 0644))
	_, err = LoadObservations(bad)
	assert.Error(t, err)
}
