// Package evaluation scores the classifier against a labelled dataset.
package evaluation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/spacesedan/emotiflow/internal/emotion"
	"github.com/spacesedan/emotiflow/internal/models"
	"github.com/spacesedan/emotiflow/internal/utils"
)

var ErrNoSamples = errors.New("no samples to evaluate")

const (
	ModeBlock  = "block"
	ModeSingle = "single"
)

type Classifier interface {
	ClassifyOne(ctx context.Context, sentence, credential string) (models.ClassificationResult, error)
	ClassifyMany(ctx context.Context, sentences []string, credential string) ([]models.ClassificationResult, error)
}

type Sample struct {
	Index int
	Text  string
	Gold  emotion.Label
}

type record struct {
	Text  string          `json:"text"`
	Label json.RawMessage `json:"label"`
}

// ReadSamples reads JSON lines of the form {"text": ..., "label": ...} where the
// label is a canonical name or its 0-based class index. Blank lines are skipped;
// limit <= 0 reads everything.
func ReadSamples(r io.Reader, limit int) ([]Sample, error) {
	var samples []Sample

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		gold, ok := parseGold(rec.Label)
		if !ok {
			return nil, fmt.Errorf("line %d: unknown label %s", line, string(rec.Label))
		}

		text := strings.TrimSpace(rec.Text)
		if text == "" {
			slog.Warn("[Evaluation] Skipping sample with empty text", slog.Int("line", line))
			continue
		}

		samples = append(samples, Sample{Index: len(samples), Text: text, Gold: gold})
		if limit > 0 && len(samples) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	return samples, nil
}

func parseGold(raw json.RawMessage) (emotion.Label, bool) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return emotion.Parse(name)
	}
	var idx int
	if err := json.Unmarshal(raw, &idx); err == nil {
		return emotion.Parse(strconv.Itoa(idx))
	}
	return emotion.None, false
}

type Options struct {
	Model      string
	BlockSize  int
	Credential string
	// FullBlocksOnly drops trailing samples that do not fill a whole block.
	FullBlocksOnly bool
	// Single classifies one sentence per model call with ClassifyOne. BlockSize
	// and FullBlocksOnly are ignored.
	Single bool
}

type Result struct {
	Block        int           `json:"block"`
	DatasetIndex int           `json:"dataset_index"`
	Sentence     string        `json:"sentence"`
	GoldEmotion  emotion.Label `json:"gold_emotion"`
	Predicted    emotion.Label `json:"predicted_emotion"`
	Match        bool          `json:"match"`
}

type Summary struct {
	Model           string   `json:"model"`
	Mode            string   `json:"mode"`
	BlockSize       int      `json:"block_size"`
	BlocksProcessed int      `json:"blocks_processed"`
	Total           int      `json:"total"`
	Correct         int      `json:"correct"`
	Accuracy        float64  `json:"accuracy"`
	Results         []Result `json:"results"`
}

// Evaluate classifies samples block by block, one ClassifyMany call per block,
// or one ClassifyOne call per sample in single mode. A failed call aborts the
// run.
func Evaluate(ctx context.Context, c Classifier, samples []Sample, opts Options) (Summary, error) {
	mode := ModeBlock
	size := opts.BlockSize
	if size < 1 {
		size = utils.DEFAULT_BATCH_SIZE
	}
	if opts.Single {
		mode = ModeSingle
		size = 1
	} else if opts.FullBlocksOnly {
		samples = samples[:len(samples)-len(samples)%size]
	}
	if len(samples) == 0 {
		return Summary{}, ErrNoSamples
	}

	summary := Summary{
		Model:     opts.Model,
		Mode:      mode,
		BlockSize: size,
		Results:   make([]Result, 0, len(samples)),
	}

	for block := range utils.Chunk(samples, size) {
		summary.BlocksProcessed++
		id := summary.BlocksProcessed

		predictions, err := classifyBlock(ctx, c, block, opts)
		if err != nil {
			return Summary{}, fmt.Errorf("block %d: %w", id, err)
		}

		for i, s := range block {
			var p models.ClassificationResult
			if i < len(predictions) {
				p = predictions[i]
			}
			if !p.Recognized() {
				slog.Warn("[Evaluation] Empty prediction",
					slog.Int("dataset_index", s.Index),
					slog.String("finish_reason", p.FinishReason))
			}
			summary.Results = append(summary.Results, Result{
				Block:        id,
				DatasetIndex: s.Index,
				Sentence:     s.Text,
				GoldEmotion:  s.Gold,
				Predicted:    p.PredictedEmotion,
				Match:        p.PredictedEmotion == s.Gold,
			})
		}

		slog.Info("[Evaluation] Block complete",
			slog.Int("block", id),
			slog.Int("sentences", len(block)))
	}

	summary.Total = len(summary.Results)
	summary.Correct = lo.CountBy(summary.Results, func(r Result) bool { return r.Match })
	summary.Accuracy = Accuracy(summary.Correct, summary.Total)
	return summary, nil
}

func classifyBlock(ctx context.Context, c Classifier, block []Sample, opts Options) ([]models.ClassificationResult, error) {
	if opts.Single {
		result, err := c.ClassifyOne(ctx, block[0].Text, opts.Credential)
		if err != nil {
			return nil, err
		}
		return []models.ClassificationResult{result}, nil
	}

	texts := lo.Map(block, func(s Sample, _ int) string { return s.Text })
	return c.ClassifyMany(ctx, texts, opts.Credential)
}

// Accuracy is the percentage of correct predictions rounded to two decimals.
func Accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(10000*float64(correct)/float64(total)) / 100
}
