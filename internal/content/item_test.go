package content

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleItem(id string) Item {
	return Item{
		ID:           id,
		Title:        "Data quality basics",
		Description:  "Intro post",
		Objective:    "Educate",
		DueDate:      time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		ContentType:  TypeBlog,
		ContentStyle: StyleGuide,
		Keywords:     []string{"data quality"},
	}
}

func TestItemJSONUsesCamelCase(t *testing.T) {
	raw, err := json.Marshal(sampleItem("a"))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Contains(t, fields, "dueDate")
	assert.Contains(t, fields, "contentType")
	assert.Contains(t, fields, "contentStyle")
	assert.Equal(t, "2025-03-03T00:00:00Z", fields["dueDate"])
}

func TestItemDecodeRejectsUnknownEnums(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"content type", `{"id":"a","dueDate":"2025-03-03T00:00:00Z","contentType":"podcast","contentStyle":"guide"}`},
		{"content style", `{"id":"a","dueDate":"2025-03-03T00:00:00Z","contentType":"blog","contentStyle":"rant"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var item Item
			err := json.Unmarshal([]byte(tt.raw), &item)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIntegrity), "got %v", err)
		})
	}
}

func TestItemValidate(t *testing.T) {
	valid := sampleItem("a")
	require.NoError(t, valid.Validate())

	noID := sampleItem("")
	assert.ErrorIs(t, noID.Validate(), ErrValidation)

	noDate := sampleItem("a")
	noDate.DueDate = time.Time{}
	assert.ErrorIs(t, noDate.Validate(), ErrValidation)

	badType := sampleItem("a")
	badType.ContentType = "podcast"
	assert.ErrorIs(t, badType.Validate(), ErrValidation)
}

func TestItemCloneDoesNotShareKeywords(t *testing.T) {
	original := sampleItem("a")
	cloned := original.Clone()
	cloned.Keywords[0] = "changed"
	assert.Equal(t, "data quality", original.Keywords[0])
}

func TestProvisionalIDs(t *testing.T) {
	id := NewProvisionalID()
	assert.True(t, IsProvisionalID(id))
	assert.NotEqual(t, id, NewProvisionalID())
	assert.False(t, IsProvisionalID("1b4e28ba-2fa1-11d2-883f-0016d3cca427"))
}

func TestParseContentType(t *testing.T) {
	got, err := ParseContentType(" landing-page ")
	require.NoError(t, err)
	assert.Equal(t, TypeLandingPage, got)

	_, err = ParseContentType("podcast")
	assert.ErrorIs(t, err, ErrValidation)
}
