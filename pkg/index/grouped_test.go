package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		wantPage string
		wantItem string
		wantErr  bool
	}{
		{"hex suffix", "0012-400f", "0012", "015", false},
		{"short ref", "0012-a", "0012", "010", false},
		{"decimal looking", "0012-4010", "0012", "016", false},
		{"three parts", "0012-4-1", "", "", true},
		{"no hyphen", "0012", "", "", true},
		{"non hex", "0012-4zz", "", "", true},
		{"empty item", "0012-", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, item, err := ParseReference(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantItem, item)
		})
	}
}

func TestLoadGroupedSortsAndDropsBadTokens(t *testing.T) {
	path := writeIndex(t,
		"留守ヲ預カル\t0100-4001\t0100-bad-token\n"+
			"ルスヲアズカル\t0100-4001\n"+
			"跡ヲ暗マス\t0100-4002\t0200-zzz\n"+
			"only-one-field\n")

	g, err := LoadGrouped(path)
	require.NoError(t, err)

	assert.Len(t, g.Warnings, 3)

	grouped := g.GroupedEntriesForPage("0100")
	require.Len(t, grouped, 2)
	assert.Equal(t, []string{"ルスヲアズカル", "留守ヲ預カル"}, grouped["001"])
	assert.Equal(t, []string{"跡ヲ暗マス"}, grouped["002"])
	assert.Empty(t, g.GroupedEntriesForPage("0200"))

	organized := g.OrganizedEntriesForPage("0100")
	assert.Equal(t, []string{"留守ヲ預カル"}, organized["001"].Orthographic)
	assert.Equal(t, []string{"ルスヲアズカル"}, organized["001"].Phonetic)
}

func TestCategorize(t *testing.T) {
	c := Categorize([]string{"留守", "るす", "〓", "ルス", "お茶", ""})
	assert.Equal(t, []string{"留守", "お茶"}, c.Orthographic)
	assert.Equal(t, []string{"るす", "ルス"}, c.Phonetic)
}
