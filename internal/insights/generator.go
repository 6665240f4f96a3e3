package insights

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/2beens/vitalsync/internal/fitmetrics"
	"github.com/2beens/vitalsync/internal/telemetry/tracing"

	openai "github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// how many trailing days of metrics feed one insight
	insightWindowDays = 7

	onboardingInsight = "Start syncing your Google Fit data to receive personalized AI insights about your health and performance trends."
	fallbackInsight   = "Your biometric data shows consistent patterns. Keep monitoring your progress!"

	systemPrompt = `You are an expert fitness and health analyst. Analyze the user's fitness data and provide a concise, actionable insight (2-3 sentences max). Focus on correlations between metrics like:
- Sleep quality vs. Recovery
- Nutrition vs. Performance
- Heart rate variability vs. Workout intensity
- Energy trends and patterns

Be specific, data-driven, and motivating. Highlight surprising correlations or important trends.`
)

type metricsProvider interface {
	List(ctx context.Context, userID string, days int) ([]fitmetrics.DailyMetric, error)
}

type insightsStore interface {
	Save(ctx context.Context, insight Insight) (Insight, error)
}

// Generator turns a week of daily metrics into one short coaching text
// via a chat completion, and stores it.
type Generator struct {
	client  *openai.Client
	metrics metricsProvider
	repo    insightsStore
}

func NewGenerator(apiKey, baseURL string, metrics metricsProvider, repo insightsStore) *Generator {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return &Generator{
		client:  openai.NewClientWithConfig(clientConfig),
		metrics: metrics,
		repo:    repo,
	}
}

// GenerateDaily builds the last-week data summary, asks the model for one
// insight and persists it. With no synced data yet it returns onboarding
// copy and stores nothing.
func (g *Generator) GenerateDaily(ctx context.Context, userID string) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "insights.generator.generateDaily")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	metrics, err := g.metrics.List(ctx, userID, insightWindowDays)
	if err != nil {
		return "", fmt.Errorf("list metrics: %w", err)
	}
	if len(metrics) == 0 {
		return onboardingInsight, nil
	}

	completion, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Analyze this week's fitness data and provide one key insight:\n\n%s", dataSummary(metrics)),
			},
		},
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	content := fallbackInsight
	if len(completion.Choices) > 0 && completion.Choices[0].Message.Content != "" {
		content = completion.Choices[0].Message.Content
	}

	insight, err := g.repo.Save(ctx, Insight{
		UserID:      userID,
		Content:     content,
		InsightType: "daily",
	})
	if err != nil {
		return "", fmt.Errorf("save insight: %w", err)
	}

	log.Debugf("generated insight %d for [%s]", insight.ID, userID)
	return content, nil
}

// dataSummary renders the metrics window (oldest first) as the plain-text
// prompt payload: latest day, day-over-day changes, weekly averages.
func dataSummary(metrics []fitmetrics.DailyMetric) string {
	latest := metrics[len(metrics)-1]

	var summary strings.Builder
	fmt.Fprintf(&summary, "Recent Metrics (last %d days):\n\n", len(metrics))

	fmt.Fprintf(&summary, "Latest Day (%s):\n", latest.Date.Format(fitmetrics.DateLayout))
	if latest.RestingHeartRate != nil {
		fmt.Fprintf(&summary, "- Resting Heart Rate: %d bpm\n", *latest.RestingHeartRate)
	}
	if latest.HRV != nil {
		fmt.Fprintf(&summary, "- HRV: %d\n", *latest.HRV)
	}
	if latest.SleepScore != nil {
		fmt.Fprintf(&summary, "- Sleep Score: %d/100\n", *latest.SleepScore)
	}
	if latest.DeepSleepMinutes != nil {
		fmt.Fprintf(&summary, "- Deep Sleep: %d minutes\n", *latest.DeepSleepMinutes)
	}
	fmt.Fprintf(&summary, "- Steps: %d\n", latest.Steps)
	fmt.Fprintf(&summary, "- Calories: %d\n", latest.Calories)
	if latest.RecoveryScore != nil {
		fmt.Fprintf(&summary, "- Recovery Score: %d/100\n", *latest.RecoveryScore)
	}

	if len(metrics) > 1 {
		previous := metrics[len(metrics)-2]
		summary.WriteString("\nChanges from Previous Day:\n")
		if latest.RestingHeartRate != nil && previous.RestingHeartRate != nil {
			fmt.Fprintf(&summary, "- RHR: %+d bpm\n", *latest.RestingHeartRate-*previous.RestingHeartRate)
		}
		if latest.SleepScore != nil && previous.SleepScore != nil {
			fmt.Fprintf(&summary, "- Sleep Score: %+d\n", *latest.SleepScore-*previous.SleepScore)
		}
		fmt.Fprintf(&summary, "- Steps: %+d\n", latest.Steps-previous.Steps)
	}

	summary.WriteString("\nWeekly Averages:\n")
	var rhrValues, sleepValues, stepsValues []int
	for _, metric := range metrics {
		if metric.RestingHeartRate != nil {
			rhrValues = append(rhrValues, *metric.RestingHeartRate)
		}
		if metric.SleepScore != nil {
			sleepValues = append(sleepValues, *metric.SleepScore)
		}
		stepsValues = append(stepsValues, metric.Steps)
	}
	if avg, ok := average(rhrValues); ok {
		fmt.Fprintf(&summary, "- Avg RHR: %d bpm\n", avg)
	}
	if avg, ok := average(sleepValues); ok {
		fmt.Fprintf(&summary, "- Avg Sleep Score: %d/100\n", avg)
	}
	if avg, ok := average(stepsValues); ok {
		fmt.Fprintf(&summary, "- Avg Steps: %d\n", avg)
	}

	return summary.String()
}

func average(values []int) (int, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(values)))), true
}
