package chunker

import (
	"regexp"
	"strings"
)

const (
	defaultMaxChunkSize = 500 // characters
	defaultOverlapWords = 50
)

// sentence-terminal punctuation followed by whitespace
var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// Splitter breaks raw document text into bounded, overlapping chunks.
// Sentences are accumulated greedily up to maxChunkSize characters; each
// chunk after the first is seeded with the last overlapWords words of its
// predecessor so that context severed at a boundary survives in both chunks.
type Splitter struct {
	maxChunkSize int
	overlapWords int
}

func NewSplitter(maxChunkSize, overlapWords int) *Splitter {
	if maxChunkSize <= 0 {
		maxChunkSize = defaultMaxChunkSize
	}
	if overlapWords < 0 {
		overlapWords = defaultOverlapWords
	}
	return &Splitter{maxChunkSize: maxChunkSize, overlapWords: overlapWords}
}

// Split returns chunks in emission order. The caller assigns sequence
// numbers from that order. A single sentence longer than maxChunkSize is
// emitted as its own oversized chunk rather than split mid-sentence.
func (s *Splitter) Split(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	current := ""
	for _, sentence := range sentences {
		switch {
		case current == "":
			current = sentence
		case len(current)+len(sentence)+1 <= s.maxChunkSize:
			current += " " + sentence
		default:
			chunks = append(chunks, strings.TrimSpace(current))
			current = overlapTail(current, s.overlapWords) + " " + sentence
		}
	}
	if trimmed := strings.TrimSpace(current); trimmed != "" {
		chunks = append(chunks, trimmed)
	}
	return chunks
}

// splitSentences splits on sentence-terminal punctuation followed by
// whitespace, keeping the punctuation with its sentence. A trailing run
// without terminal punctuation is kept as a final sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		sentence := strings.TrimSpace(text[start : loc[0]+1])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func overlapTail(chunk string, overlapWords int) string {
	words := strings.Fields(chunk)
	if len(words) > overlapWords {
		words = words[len(words)-overlapWords:]
	}
	return strings.Join(words, " ")
}
