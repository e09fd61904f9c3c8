// Package studygen produces template study material for an item when no
// generative model is configured.
package studygen

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolstudy/internal/domain"
)

var (
	cardTopics     = []string{"definition", "application", "example", "principle"}
	questionTopics = []string{"fundamentals", "applications", "advanced", "best-practices"}
	difficulties   = []domain.Difficulty{domain.Easy, domain.Medium, domain.Hard}
)

// Flashcards returns n new cards for itemID, all due at now.
func Flashcards(itemID string, n int, now time.Time) []domain.Flashcard {
	cards := make([]domain.Flashcard, 0, n)
	for i := 0; i < n; i++ {
		topic := cardTopics[i%len(cardTopics)]
		cards = append(cards, domain.NewFlashcard(
			uuid.NewString(),
			itemID,
			fmt.Sprintf("What is the definition of %s %d?", topic, i+1),
			fmt.Sprintf("%s %d is defined as a fundamental concept that...", strings.ToUpper(topic[:1])+topic[1:], i+1),
			topic,
			now,
		))
	}
	return cards
}

// Questions returns n multiple choice questions for itemID.
func Questions(itemID string, n int) []domain.MCQ {
	qs := make([]domain.MCQ, 0, n)
	for i := 0; i < n; i++ {
		correct := i % 4
		qs = append(qs, domain.MCQ{
			ID:       uuid.NewString(),
			ItemID:   itemID,
			Question: fmt.Sprintf("What is the primary purpose of concept %d in this context?", i+1),
			Options: []string{
				fmt.Sprintf("Option A: Primary function %d", i+1),
				fmt.Sprintf("Option B: Secondary application %d", i+1),
				fmt.Sprintf("Option C: Alternative approach %d", i+1),
				fmt.Sprintf("Option D: Complementary method %d", i+1),
			},
			CorrectIndex: correct,
			Explanation: fmt.Sprintf("The correct answer is Option %c because it best represents the core concept discussed in the material.",
				'A'+rune(correct)),
			Difficulty: difficulties[i%len(difficulties)],
			Tags:       []string{questionTopics[i%len(questionTopics)]},
		})
	}
	return qs
}

// Summary returns an outline summary for itemID.
func Summary(itemID string) domain.Summary {
	return domain.Summary{
		ID:     uuid.NewString(),
		ItemID: itemID,
		TLDR:   "This document provides a comprehensive overview of the subject matter, covering both theoretical foundations and practical applications.",
		Bullets: []string{
			"Key concept 1: Understanding the fundamental principles and their applications",
			"Key concept 2: Practical implementation strategies and best practices",
			"Key concept 3: Advanced techniques and optimization methods",
			"Key concept 4: Common pitfalls and how to avoid them",
		},
		Outline: []string{
			"Chapter 1: Introduction and Overview",
			"Chapter 2: Core Concepts and Fundamentals",
			"Chapter 3: Advanced Topics and Techniques",
			"Chapter 4: Practical Applications and Case Studies",
			"Chapter 5: Best Practices and Recommendations",
		},
	}
}
