package internal

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	DefaultInstruction = "Use three words total (comma separated) to describe general topics in above texts. " +
		"Under no circumstances use enumeration. Example format: Tree, Cat, Fireman"

	DefaultTemplate = "{examples}\n\n{instruction}"

	DefaultSummaryExamples   = 10
	DefaultSummaryCharBudget = 420

	// NoiseSummary is the fixed label for documents outside every cluster.
	NoiseSummary = "None"
)

type TopicMode string

const (
	TopicModeMultiple TopicMode = "multiple_topics"
	TopicModeSingle   TopicMode = "single_topic"
)

type SummaryConfig struct {
	Instruction string
	Template    string // must contain {examples} and {instruction}
	Examples    int    // examples sampled per cluster
	CharBudget  int    // max runes per example
	Mode        TopicMode
}

func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{
		Instruction: DefaultInstruction,
		Template:    DefaultTemplate,
		Examples:    DefaultSummaryExamples,
		CharBudget:  DefaultSummaryCharBudget,
		Mode:        TopicModeMultiple,
	}
}

// Summarizer names clusters by showing a provider a small sample of
// each cluster's documents and post-processing the reply into a short
// topic string.
type Summarizer struct {
	provider Provider
	cfg      SummaryConfig
	log      *log.Logger
	rng      *rand.Rand
}

func NewSummarizer(provider Provider, cfg SummaryConfig, logger *log.Logger, rng *rand.Rand) *Summarizer {
	if cfg.Instruction == "" {
		cfg.Instruction = DefaultInstruction
	}
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	if cfg.Examples <= 0 {
		cfg.Examples = DefaultSummaryExamples
	}
	if cfg.CharBudget <= 0 {
		cfg.CharBudget = DefaultSummaryCharBudget
	}
	if cfg.Mode == "" {
		cfg.Mode = TopicModeMultiple
	}

	return &Summarizer{
		provider: provider,
		cfg:      cfg,
		log:      logger,
		rng:      rng,
	}
}

// Summarize generates one topic per cluster. The noise label is never
// sent to the provider and always maps to NoiseSummary.
func (s *Summarizer) Summarize(ctx context.Context, texts []string, docsByLabel map[int][]int) (map[int]string, error) {
	if s.provider == nil {
		return nil, ErrNoProvider
	}

	labels := make([]int, 0, len(docsByLabel))
	for label := range docsByLabel {
		if label == NoiseLabel {
			continue
		}
		labels = append(labels, label)
	}
	sort.Ints(labels)

	summaries := map[int]string{NoiseLabel: NoiseSummary}

	for _, label := range labels {
		ids := docsByLabel[label]
		if len(ids) == 0 {
			summaries[label] = ""
			continue
		}

		prompt := s.renderPrompt(texts, ids)
		s.log.Debug("summarize cluster", "label", label, "docs", len(ids))

		response, err := s.provider.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("summarize cluster %d: %w", label, err)
		}

		topic, err := PostprocessTopic(response, s.cfg.Mode)
		if err != nil {
			return nil, fmt.Errorf("summarize cluster %d: %w", label, err)
		}
		if s.cfg.Mode == TopicModeSingle {
			if strings.HasPrefix(topic, ".") {
				s.log.Warn("no topic found in response", "label", label)
			}
			if strings.HasSuffix(topic, ": ") {
				s.log.Warn("no educational score found in response", "label", label)
			}
		}
		summaries[label] = topic
	}

	s.log.Info("clusters summarized", "count", len(labels))
	return summaries, nil
}

// renderPrompt samples documents with replacement, so every prompt
// carries exactly cfg.Examples examples regardless of cluster size.
func (s *Summarizer) renderPrompt(texts []string, ids []int) string {
	examples := make([]string, s.cfg.Examples)
	for i := range examples {
		id := ids[s.rng.Intn(len(ids))]
		examples[i] = fmt.Sprintf("Example %d:\n%s", i+1, Truncate(texts[id], s.cfg.CharBudget))
	}

	return strings.NewReplacer(
		"{examples}", strings.Join(examples, "\n\n"),
		"{instruction}", s.cfg.Instruction,
	).Replace(s.cfg.Template)
}

// PostprocessTopic reduces a raw completion to a short topic string.
func PostprocessTopic(response string, mode TopicMode) (string, error) {
	switch mode {
	case TopicModeMultiple, "":
		return postprocessMultiple(response), nil
	case TopicModeSingle:
		return postprocessSingle(response), nil
	default:
		return "", fmt.Errorf("topic mode %q is not supported, use %s or %s", mode, TopicModeSingle, TopicModeMultiple)
	}
}

// postprocessMultiple keeps the first line up to the first period or
// opening paren, then drops empty comma fields.
func postprocessMultiple(response string) string {
	line := response
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if i := strings.IndexByte(line, '.'); i >= 0 {
		line = line[:i]
	}
	if i := strings.IndexByte(line, '('); i >= 0 {
		line = line[:i]
	}

	fields := strings.Split(strings.TrimSpace(line), ",")
	kept := fields[:0]
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			kept = append(kept, f)
		}
	}

	return strings.Join(kept, ",")
}

// postprocessSingle parses "Topic:" and "Educational value rating:"
// fields out of the first line of the response.
func postprocessSingle(response string) string {
	line := response
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	topic := ""
	if _, after, found := strings.Cut(line, "Topic:"); found {
		topic = after
		if i := strings.IndexByte(topic, '('); i >= 0 {
			topic = topic[:i]
		}
		if i := strings.IndexByte(topic, ','); i >= 0 {
			topic = topic[:i]
		}
		topic = strings.TrimSpace(topic)
	}

	score := ""
	if _, after, found := strings.Cut(line, "Educational value rating:"); found {
		score = strings.TrimSpace(after)
		if i := strings.IndexByte(score, '.'); i >= 0 {
			score = score[:i]
		}
		score = strings.TrimSpace(score)
	}

	return fmt.Sprintf("%s. Educational score: %s", topic, score)
}
