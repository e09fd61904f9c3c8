package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/conorfennell/knolstudy/internal/domain"
)

const (
	questionPrefix    = "Q:"
	answerPrefix      = "A:"
	contextPrefix     = "C:"
	promptPrefix      = "M:"
	explanationPrefix = "E:"
	difficultyPrefix  = "D:"
	tagsPrefix        = "T:"
	separator         = "---"
)

// ErrInvalidQuestion is returned, wrapped with a line number, for multiple
// choice blocks that cannot be graded.
var ErrInvalidQuestion = errors.New("parser: invalid question")

// maxLineSize is the longest line a deck may contain.
const maxLineSize = 1024 * 1024

var optionLine = regexp.MustCompile(`^\s*[-*] \[([ xX])\]\s?(.*)$`)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingContext
	readingPrompt
	readingExplanation
	readingOptions
)

// Deck is everything parsed from one file. IDs and item ownership are
// assigned by the caller.
type Deck struct {
	Flashcards []domain.Flashcard
	Questions  []domain.MCQ
}

type block struct {
	mcq     bool
	line    int
	card    domain.Flashcard
	q       domain.MCQ
	correct int
	errs    []error
}

// ParseFile reads a file from the given path and extracts its deck.
func ParseFile(path string) (Deck, error) {
	file, err := os.Open(path)
	if err != nil {
		return Deck{}, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards and questions.
// Blocks that fail to parse are reported in the returned error while the
// rest of the deck is still returned.
func Parse(r io.Reader) (Deck, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var (
		deck        Deck
		errs        []error
		current     *block
		currentText []string
		lineNo      int
	)
	currentState := seeking

	flushText := func() {
		if len(currentText) == 0 {
			return
		}
		content := strings.TrimRight(strings.Join(currentText, "\n"), "\n")
		switch currentState {
		case readingQuestion:
			current.card.Front = content
		case readingAnswer:
			current.card.Back = content
		case readingContext:
			current.card.Context = content
		case readingPrompt:
			current.q.Question = content
		case readingExplanation:
			current.q.Explanation = content
		}
		currentText = nil
	}

	finishBlock := func() {
		flushText()
		if current != nil {
			if err := current.closeInto(&deck); err != nil {
				errs = append(errs, err)
			}
		}
		current = nil
		currentState = seeking
	}

	startText := func(s state, line, prefix string) {
		flushText()
		currentState = s
		currentText = append(currentText, value(line, prefix))
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		switch {
		case line == separator:
			finishBlock()

		case strings.HasPrefix(line, questionPrefix):
			finishBlock() // A new question always starts a new card
			current = &block{line: lineNo}
			startText(readingQuestion, line, questionPrefix)

		case strings.HasPrefix(line, promptPrefix):
			finishBlock()
			current = &block{mcq: true, line: lineNo}
			startText(readingPrompt, line, promptPrefix)

		case current == nil:
			// Text outside any block.

		case !current.mcq && strings.HasPrefix(line, answerPrefix):
			startText(readingAnswer, line, answerPrefix)

		case !current.mcq && strings.HasPrefix(line, contextPrefix):
			startText(readingContext, line, contextPrefix)

		case current.mcq && optionLine.MatchString(line):
			flushText()
			currentState = readingOptions
			m := optionLine.FindStringSubmatch(line)
			if m[1] != " " {
				current.q.CorrectIndex = len(current.q.Options)
				current.correct++
			}
			current.q.Options = append(current.q.Options, strings.TrimSpace(m[2]))

		case current.mcq && strings.HasPrefix(line, explanationPrefix):
			startText(readingExplanation, line, explanationPrefix)

		case current.mcq && strings.HasPrefix(line, difficultyPrefix):
			flushText()
			currentState = readingOptions
			d, err := domain.ParseDifficulty(strings.ToLower(value(line, difficultyPrefix)))
			if err != nil {
				current.errs = append(current.errs, err)
			}
			current.q.Difficulty = d

		case current.mcq && strings.HasPrefix(line, tagsPrefix):
			flushText()
			currentState = readingOptions
			current.q.Tags = splitTags(value(line, tagsPrefix))

		case currentState != readingOptions:
			currentText = append(currentText, line)
		}
	}

	finishBlock() // Finish the very last block in the file

	if err := scanner.Err(); err != nil {
		return Deck{}, err
	}

	return deck, errors.Join(errs...)
}

func (b *block) closeInto(deck *Deck) error {
	if !b.mcq {
		if b.card.Front != "" {
			deck.Flashcards = append(deck.Flashcards, b.card)
		}
		return nil
	}

	q := b.q
	if q.Difficulty == "" && len(b.errs) == 0 {
		q.Difficulty = domain.Medium
	}
	switch {
	case len(b.errs) > 0:
		return fmt.Errorf("line %d: %w: %w", b.line, ErrInvalidQuestion, errors.Join(b.errs...))
	case q.Question == "":
		return fmt.Errorf("line %d: %w: empty question", b.line, ErrInvalidQuestion)
	case len(q.Options) < 2:
		return fmt.Errorf("line %d: %w: needs at least 2 options, has %d", b.line, ErrInvalidQuestion, len(q.Options))
	case b.correct != 1:
		return fmt.Errorf("line %d: %w: needs exactly one [x] option, has %d", b.line, ErrInvalidQuestion, b.correct)
	}
	deck.Questions = append(deck.Questions, q)
	return nil
}

// value strips a line prefix and at most one following space.
func value(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
