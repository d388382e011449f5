// Package chunk splits positioned document text into overlapping chunks
// sized for a single LLM request.
package chunk

import (
	"strings"

	"github.com/sells-group/termsheet-cli/internal/config"
	"github.com/sells-group/termsheet-cli/internal/model"
)

// Split groups spans into chunks whose joined text stays within maxChars.
// A span that alone exceeds maxChars becomes its own chunk. Each chunk after
// the first is seeded with the trailing spans of its predecessor whose length
// is closest to overlapChars; seeds are dropped from the front when they
// leave no room for the next span.
func Split(spans []model.TextSpan, maxChars, overlapChars int) ([]model.Chunk, error) {
	if err := config.CheckChunking(maxChars, overlapChars); err != nil {
		return nil, err
	}

	var (
		chunks []model.Chunk
		buf    []model.TextSpan
		// length is the joined text length of buf plus one trailing separator.
		length int
		// seeded counts spans in buf carried over from the previous chunk.
		seeded int
	)

	fits := func(s model.TextSpan) bool {
		return length+spanLen(s)-1 <= maxChars
	}

	for _, s := range spans {
		if len(buf) > seeded && !fits(s) {
			chunks = append(chunks, model.NewChunk(len(chunks), buf))

			keep := overlapCount(buf, overlapChars)
			next := make([]model.TextSpan, keep)
			copy(next, buf[len(buf)-keep:])
			buf, seeded, length = next, keep, 0
			for _, o := range buf {
				length += spanLen(o)
			}
			for seeded > 0 && !fits(s) {
				length -= spanLen(buf[0])
				buf = buf[1:]
				seeded--
			}
		}
		buf = append(buf, s)
		length += spanLen(s)
	}

	if len(buf) > seeded {
		chunks = append(chunks, model.NewChunk(len(chunks), buf))
	}

	return chunks, nil
}

// FromText splits plain text with no layout information. Each non-blank line
// becomes a span on page 0.
func FromText(text string, maxChars, overlapChars int) ([]model.Chunk, error) {
	var spans []model.TextSpan
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		spans = append(spans, model.TextSpan{Text: line})
	}
	return Split(spans, maxChars, overlapChars)
}

func spanLen(s model.TextSpan) int {
	return len(s.Text) + 1
}

// overlapCount returns how many trailing spans of buf to carry forward.
// It picks the count whose accumulated length is closest to target, scanning
// backward, and always leaves at least one span behind so splitting advances.
func overlapCount(buf []model.TextSpan, target int) int {
	if target == 0 || len(buf) < 2 {
		return 0
	}

	best, bestDiff := 0, target
	acc := 0
	for k := 1; k < len(buf); k++ {
		acc += spanLen(buf[len(buf)-k])
		diff := acc - target
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = k, diff
		}
		if acc >= target {
			break
		}
	}
	return best
}
