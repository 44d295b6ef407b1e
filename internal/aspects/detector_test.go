package aspects

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(ds []Detection) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Aspect)
	}
	return out
}

func newDefaultDetector() *Detector {
	return NewDetector(DefaultTaxonomy(), Options{ContextWindow: DEFAULT_CONTEXT_WINDOW, Discovery: true})
}

func TestDetectScenarioTexts(t *testing.T) {
	d := newDefaultDetector()

	assert.Equal(t, []string{"PRICE"}, names(d.Detect("price is too high")))
	assert.Equal(t, []string{"DELIVERY"}, names(d.Detect("delivery was slow and damaged")))
	assert.Equal(t, []string{"PRODUCT"}, names(d.Detect("great product quality")))
}

func TestDetectIsCaseInsensitiveAndStemmed(t *testing.T) {
	d := newDefaultDetector()

	assert.Equal(t, []string{"PRICE"}, names(d.Detect("PRICES went up again")))
	assert.Equal(t, []string{"DELIVERY"}, names(d.Detect("Shipping took forever")))
	assert.Equal(t, []string{"SERVICE"}, names(d.Detect("Their Services are okay")))
}

func TestDetectMatchesPluralOfKeyword(t *testing.T) {
	d := newDefaultDetector()

	assert.Equal(t, []string{"PERFORMANCE"}, names(d.Detect("The speeds are awful")))
	assert.Equal(t, []string{"PERFORMANCE"}, names(d.Detect("the speed is awful")))
}

func TestDetectRespectsWordBoundaries(t *testing.T) {
	d := newDefaultDetector()

	assert.Empty(t, d.Detect("honestly priceless"))
	assert.Empty(t, d.Detect("the itemization confused me"))
}

func TestDetectMultipleAspectsNoDuplicates(t *testing.T) {
	d := newDefaultDetector()

	got := names(d.Detect("price, price, cost and value are fine but delivery and shipping were a mess"))
	assert.Equal(t, []string{"PRICE", "DELIVERY"}, got)
}

func TestDetectNoMatchIsEmpty(t *testing.T) {
	d := newDefaultDetector()

	assert.Empty(t, d.Detect("nothing in particular to report here"))
	assert.Empty(t, d.Detect(""))
	assert.Empty(t, d.Detect("   ...   "))
}

func TestMultiWordKeywordMatchesTokenSequence(t *testing.T) {
	tax := Taxonomy{Categories: []Category{{Name: "support", Keywords: []string{"customer service"}}}}
	d := NewDetector(tax, Options{})

	assert.Equal(t, []string{"SUPPORT"}, names(d.Detect("Customer   service answered quickly")))
	assert.Empty(t, d.Detect("customerservice is one word here"))
	assert.Empty(t, d.Detect("service for the customer"))
}

func TestDiscoveryFindsOpenVocabularyAspects(t *testing.T) {
	d := newDefaultDetector()

	got := d.Detect("the battery died after a week")
	require.Len(t, got, 1)
	assert.Equal(t, "BATTERY", got[0].Aspect)
	assert.Equal(t, SourceDiscovered, got[0].Source)
	assert.Equal(t, "battery", got[0].Term)
}

func TestDiscoverySkipsModifiersAndTakesTwoTokens(t *testing.T) {
	d := newDefaultDetector()

	got := names(d.Detect("my new phone case broke"))
	assert.Equal(t, []string{"PHONE CASE"}, got)
}

func TestDiscoveryStopsAtVerbs(t *testing.T) {
	d := newDefaultDetector()

	assert.Equal(t, []string{"APP"}, names(d.Detect("the app crashes every single day")))
	assert.Equal(t, []string{"SCREEN"}, names(d.Detect("the screen flashes when charging")))
	assert.Equal(t, []string{"BOXES"}, names(d.Detect("the boxes arrived open")))
}

func TestDiscoverySuppressedByTaxonomy(t *testing.T) {
	d := newDefaultDetector()

	got := d.Detect("the package label was torn")
	require.Len(t, got, 1)
	assert.Equal(t, "DELIVERY", got[0].Aspect)
	assert.Equal(t, SourcePredefined, got[0].Source)
}

func TestDiscoveryIgnoresGenericWords(t *testing.T) {
	d := newDefaultDetector()

	assert.Empty(t, d.Detect("the thing is broken and this is a problem"))
	assert.Empty(t, d.Detect("honestly the issue is back"))
}

func TestDiscoveryCanBeDisabled(t *testing.T) {
	d := NewDetector(DefaultTaxonomy(), Options{Discovery: false})

	assert.Empty(t, d.Detect("the battery died after a week"))
}

func TestContextWindow(t *testing.T) {
	d := NewDetector(DefaultTaxonomy(), Options{ContextWindow: 10})

	text := strings.Repeat("x", 40) + " the price was unfair " + strings.Repeat("y", 40)
	got := d.Detect(text)
	require.Len(t, got, 1)
	assert.Equal(t, "xxxxx the price was", got[0].Context)
	assert.Equal(t, 45, got[0].Position)
}

func TestDetectIsPure(t *testing.T) {
	d := newDefaultDetector()
	text := "The design looks great but the app keeps crashing"

	first := d.Detect(text)
	second := d.Detect(text)
	assert.Equal(t, first, second)
}

func TestLoadTaxonomyFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	content := `categories:
  - name: battery
    keywords: [battery, charge]
  - name: Screen
    keywords: [screen, display]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tax, err := LoadTaxonomy(path)
	require.NoError(t, err)
	require.Len(t, tax.Categories, 2)
	assert.Equal(t, "BATTERY", tax.Categories[0].Name)
	assert.Equal(t, "SCREEN", tax.Categories[1].Name)

	d := NewDetector(tax, Options{})
	assert.Equal(t, []string{"BATTERY", "SCREEN"}, names(d.Detect("Charge lasts long and the display is sharp")))
}

func TestLoadTaxonomyRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("categories:\n  - name: a\n    keywords: [x]\n  - name: A\n    keywords: [y]\n"), 0o600))
	_, err := LoadTaxonomy(dup)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("categories: []\n"), 0o600))
	_, err = LoadTaxonomy(empty)
	assert.Error(t, err)

	_, err = LoadTaxonomy(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadTaxonomyEmptyPathIsDefault(t *testing.T) {
	tax, err := LoadTaxonomy("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTaxonomy(), tax)
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"prices":     "price",
		"deliveries": "delivery",
		"shipping":   "shipp",
		"shipped":    "shipp",
		"boxes":      "box",
		"status":     "status",
		"this":       "this",
		"need":       "need",
		"speed":      "speed",
		"speeds":     "speed",
		"feeds":      "feed",
	}
	for in, want := range cases {
		assert.Equal(t, want, stem(in), in)
	}
}
