package sentiment

import (
	"context"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"
	"github.com/spacesedan/aspectflow/internal/models"
)

const VADER_THRESHOLD = 0.20

var (
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern  = regexp.MustCompile(`<[^>]+>`)
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1") // Keep only the text
	return urlPattern.ReplaceAllString(input, "")
}

func ConvertMarkdownToText(input string) string {
	output := blackfriday.Run([]byte(RemoveLinks(input)), blackfriday.WithNoExtensions())
	plainText := tagPattern.ReplaceAllString(string(output), " ")
	return strings.Join(strings.Fields(plainText), " ")
}

type VaderClassifier struct {
	analyzer  *govader.SentimentIntensityAnalyzer
	threshold float64
}

func NewVaderClassifier() *VaderClassifier {
	return &VaderClassifier{
		analyzer:  govader.NewSentimentIntensityAnalyzer(),
		threshold: VADER_THRESHOLD,
	}
}

func (v *VaderClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	score := v.analyzer.PolarityScores(ConvertMarkdownToText(text)).Compound

	label := models.SentimentNeutral
	if score >= v.threshold {
		label = models.SentimentPositive
	} else if score <= -v.threshold {
		label = models.SentimentNegative
	}

	return Classification{Label: label, Score: &score}, nil
}
