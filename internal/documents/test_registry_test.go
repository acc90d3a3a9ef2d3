package documents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysFixedOrder(t *testing.T) {
	want := []Key{"ideaBrief", "userStories", "screenFlow", "prd", "techStack", "dataModel", "apiSpec", "testScenarios", "todoMaster", "promptGuide"}
	assert.Equal(t, want, Keys())
	assert.Len(t, Keys(), Count)
}

func TestEveryKeyHasPromptAndFile(t *testing.T) {
	files := map[string]bool{}
	for _, k := range Keys() {
		e, ok := Lookup(k)
		require.True(t, ok, k)
		assert.NotEmpty(t, e.SystemPrompt, k)
		assert.True(t, strings.HasSuffix(e.FileName, ".md"), k)
		assert.False(t, files[e.FileName], "duplicate file name %s", e.FileName)
		files[e.FileName] = true
	}
}

func TestParseRegistryRejectsReorder(t *testing.T) {
	raw := strings.Replace(string(promptsYAML), "key: ideaBrief", "key: placeholder", 1)
	_, err := parseRegistry([]byte(raw))
	assert.Error(t, err)
}

func TestParseKeys(t *testing.T) {
	valid, unknown := ParseKeys([]string{"prd", "bogus", "ideaBrief", "prd"})
	assert.Equal(t, []Key{PRD, IdeaBrief}, valid)
	assert.Equal(t, []string{"bogus"}, unknown)
}

func TestOrdered(t *testing.T) {
	set := map[Key]bool{PromptGuide: true, IdeaBrief: true, APISpec: true}
	assert.Equal(t, []Key{IdeaBrief, APISpec, PromptGuide}, Ordered(set))
}

func TestBaseContext(t *testing.T) {
	got := BaseContext(Context{Idea: " habit tracker ", AppType: "mobile", Template: "saas"})
	assert.Contains(t, got, "Project idea: habit tracker\n")
	assert.Contains(t, got, "App type: mobile app")
	assert.Contains(t, got, "Template: saas")
	assert.Contains(t, got, "in Korean")

	got = BaseContext(Context{Idea: "x", AppType: "desktop", Language: LanguageEnglish})
	assert.Contains(t, got, "App type: web/mobile app")
	assert.NotContains(t, got, "Template:")
	assert.Contains(t, got, "in English")
}

func TestFallbackContent(t *testing.T) {
	got := FallbackContent(PRD, "invalid API key")
	assert.True(t, strings.HasPrefix(got, "# prd\n"))
	assert.Contains(t, got, "Error: invalid API key")
	assert.NotEqual(t, got, PartialPlaceholder(PRD))
}
