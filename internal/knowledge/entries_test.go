package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	entries, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for i, e := range entries {
		assert.NotEmpty(t, e.Text, "entry %d text", i)
		assert.NotEmpty(t, e.Source, "entry %d source", i)
		assert.NotEmpty(t, e.Category, "entry %d category", i)
		assert.NotEmpty(t, e.Topics, "entry %d topics", i)
	}
}

func TestFilterByCategory(t *testing.T) {
	entries, err := Load()
	require.NoError(t, err)

	comp := FilterByCategory(entries, "composition")
	require.NotEmpty(t, comp)
	for _, e := range comp {
		assert.Equal(t, "composition", e.Category)
	}

	assert.Empty(t, FilterByCategory(entries, "no_such_category"))
}

func TestFilterBySkillLevel(t *testing.T) {
	entries, err := Load()
	require.NoError(t, err)

	beginner := FilterBySkillLevel(entries, "beginner")
	require.NotEmpty(t, beginner)
	for _, e := range beginner {
		assert.Contains(t, e.SkillLevels, "beginner")
	}
}

func TestSummarize(t *testing.T) {
	entries, err := Load()
	require.NoError(t, err)

	st := Summarize(entries)
	assert.Equal(t, len(entries), st.TotalEntries)
	assert.NotZero(t, st.UniqueTopics)

	total := 0
	for _, n := range st.Categories {
		total += n
	}
	assert.Equal(t, len(entries), total)
}

func TestAllTopicsSorted(t *testing.T) {
	entries, err := Load()
	require.NoError(t, err)

	topics := AllTopics(entries)
	require.NotEmpty(t, topics)
	for i := 1; i < len(topics); i++ {
		assert.Less(t, topics[i-1], topics[i])
	}
}
