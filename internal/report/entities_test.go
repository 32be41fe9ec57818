package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-ocr/quill/internal/document"
)

func ents(pairs ...string) []document.NamedEntity {
	out := make([]document.NamedEntity, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, document.NamedEntity{Type: pairs[i], Value: pairs[i+1]})
	}
	return out
}

func TestGroupEntities_AppearanceOrder(t *testing.T) {
	groups := groupEntities(ents(
		"person", "Иванов",
		"place", "Тула",
		"person", "Петров",
	), nil, true)

	require.Len(t, groups, 2)
	assert.Equal(t, "person", groups[0].Type)
	assert.Equal(t, []string{"Иванов", "Петров"}, groups[0].Values)
	assert.Equal(t, "place", groups[1].Type)
	assert.Equal(t, []string{"Тула"}, groups[1].Values)
}

func TestGroupEntities_Deduplicates(t *testing.T) {
	groups := groupEntities(ents(
		"person", "Иванов",
		"person", "Иванов",
		"person", "Петров",
		"person", "Иванов",
	), nil, true)

	require.Len(t, groups, 1)
	assert.Equal(t, []string{"Иванов", "Петров"}, groups[0].Values)
}

func TestGroupEntities_KeepsDuplicatesWhenAsked(t *testing.T) {
	groups := groupEntities(ents("person", "a", "person", "a"), nil, false)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a", "a"}, groups[0].Values)
}

func TestGroupEntities_ExplicitOrder(t *testing.T) {
	groups := groupEntities(ents(
		"person", "a",
		"date", "1897",
		"place", "b",
	), []string{"place", "date"}, true)

	require.Len(t, groups, 3)
	assert.Equal(t, "place", groups[0].Type)
	assert.Equal(t, "date", groups[1].Type)
	assert.Equal(t, "person", groups[2].Type, "unlisted types trail in appearance order")
}

func TestGroupEntities_SkipsBlankEntities(t *testing.T) {
	groups := groupEntities(ents(
		"", "",
		"  ", "  ",
		"person", "Иванов",
	), nil, true)

	require.Len(t, groups, 1)
	assert.Equal(t, "person", groups[0].Type)
}

func TestGroupEntities_TrimsWhitespace(t *testing.T) {
	groups := groupEntities(ents(" person ", " Иванов "), nil, true)
	require.Len(t, groups, 1)
	assert.Equal(t, "person", groups[0].Type)
	assert.Equal(t, []string{"Иванов"}, groups[0].Values)
}

func TestGroupEntities_ValueWithoutType(t *testing.T) {
	groups := groupEntities(ents("", "без типа"), nil, true)
	require.Len(t, groups, 1)
	assert.Empty(t, groups[0].Type)
	assert.Equal(t, []string{"без типа"}, groups[0].Values)
}

func TestGroupEntities_Empty(t *testing.T) {
	assert.Empty(t, groupEntities(nil, nil, true))
}
