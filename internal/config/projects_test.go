package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avito-assist/internal/core/domain"
)

const seedYAML = `
projects:
  - id: default
    name: Квартиры у метро
    business_type: real_estate
    timezone: Asia/Yekaterinburg
    schedule_mode: by_schedule
    schedule:
      mon:
        - start: "09:00"
          end: "13:00"
        - start: "14:00"
          end: "18:00"
      sat:
        - start: "10:00"
          end: "15:00"
    tone: formal
    allow_price_discussion: false
    extra_instructions: Показы только по записи
  - id: minimal
`

func TestParseProjects(t *testing.T) {
	projects, err := ParseProjects([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, projects, 2)

	p := projects[0]
	assert.Equal(t, "default", p.ID)
	assert.Equal(t, domain.CategoryRealEstate, p.BusinessCategory)
	assert.Equal(t, "Asia/Yekaterinburg", p.Timezone)
	assert.Equal(t, domain.ScheduleBySchedule, p.ScheduleMode)
	require.Len(t, p.Schedule.Mon, 2)
	assert.Equal(t, domain.TimeRange{Start: "14:00", End: "18:00"}, p.Schedule.Mon[1])
	assert.Empty(t, p.Schedule.Tue)
	assert.Equal(t, domain.ToneFormal, p.Tone)
	assert.False(t, p.AllowPriceDiscussion)
	assert.True(t, p.Enabled, "enabled defaults to true")

	minimal := projects[1]
	assert.Equal(t, domain.NewProject().Timezone, minimal.Timezone)
	assert.Equal(t, domain.ScheduleAlways, minimal.ScheduleMode)
	assert.True(t, minimal.AllowPriceDiscussion)
}

func TestParseProjects_FailsFast(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad timezone", "projects:\n  - id: a\n    timezone: Nowhere/City\n"},
		{"bad tone", "projects:\n  - id: a\n    tone: sarcastic\n"},
		{"bad clock", "projects:\n  - id: a\n    schedule:\n      mon:\n        - start: \"9:00\"\n          end: \"18:00\"\n"},
		{"missing id", "projects:\n  - name: x\n"},
		{"duplicate id", "projects:\n  - id: a\n  - id: a\n"},
		{"not yaml", "projects: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProjects([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadProjects_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	projects, err := LoadProjects(path)
	require.NoError(t, err)
	assert.Len(t, projects, 2)

	_, err = LoadProjects(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
