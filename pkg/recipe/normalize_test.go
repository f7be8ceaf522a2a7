package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitKeywords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"常備菜, 簡単", []string{"常備菜", "簡単"}},
		{"", []string{}},
		{" , ,", []string{}},
		{"a,,b ", []string{"a", "b"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitKeywords(tt.in), "input %q", tt.in)
	}
}

func TestSafeImage(t *testing.T) {
	empty := ""
	space := "  "
	url := "https://cdn.example/a.jpg"

	assert.Nil(t, SafeImage(nil))
	assert.Nil(t, SafeImage(&empty))
	assert.Nil(t, SafeImage(&space))
	assert.Equal(t, &url, SafeImage(&url))
	assert.False(t, HasImage(&empty))
	assert.True(t, HasImage(&url))
}

func TestDisplayHelpers(t *testing.T) {
	assert.Equal(t, Dash, OrDash(""))
	assert.Equal(t, "30分", OrDash("30分"))

	empty := ""
	assert.Equal(t, "/static/placeholder.png", DisplayImage(Recipe{Image: &empty}, "/static/placeholder.png"))

	url := "https://cdn.example/a.jpg"
	assert.Equal(t, url, DisplayImage(Recipe{Image: &url}, "fallback"))
}

func TestDraftRoundTrip(t *testing.T) {
	img := "https://cdn.example/a.jpg"
	r := Recipe{
		Name:     "ひじきの煮物",
		Category: CategorySeaweed,
		Keywords: []string{"常備菜", "簡単"},
		Image:    &img,
	}
	d := DraftFromRecipe(r)
	assert.Equal(t, "常備菜, 簡単", d.KeywordText)
	assert.Equal(t, img, d.ImageURL)
	assert.NoError(t, d.Validate())
	assert.Equal(t, r.Keywords, d.payload(&img).Keywords)
}

func TestCategories(t *testing.T) {
	assert.Equal(t, CategoryBeans, DefaultCategory)
	assert.Len(t, Categories(), 4)
	assert.True(t, CategoryOsechi.Valid())
	assert.False(t, Category("").Valid())
}

func TestNormalizeText(t *testing.T) {
	decomposed := "ひしき\u3099" // き + combining voiced mark
	assert.Equal(t, "ひしぎ", NormalizeText(decomposed))
	assert.Equal(t, []string{"ぎ"}, SplitKeywords("き\u3099, "))

	r := Recipe{Name: "ひしぎの煮物"}
	assert.True(t, MatchName(r, decomposed))
	assert.False(t, MatchName(Recipe{Name: "Hijiki"}, "hijiki"), "matching stays case-sensitive")
}
