package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/exstem-assembly/internal/assembly"
	"github.com/stemsi/exstem-assembly/internal/config"
	"github.com/stemsi/exstem-assembly/internal/database"
	"github.com/stemsi/exstem-assembly/internal/logger"
	"github.com/stemsi/exstem-assembly/internal/model"
	"github.com/stemsi/exstem-assembly/internal/repository"
	"github.com/stemsi/exstem-assembly/internal/service"
)

// perBucket is how many questions each (topic, level, difficulty) cell gets.
const perBucket = 4

type seedTopic struct {
	name     string
	subjects []string
}

var topics = []seedTopic{
	{"Loops", []string{"for loop", "while loop", "loop counter", "nested loop", "break statement", "loop invariant"}},
	{"Arrays", []string{"array index", "array length", "two-dimensional array", "array traversal", "array copy", "array bounds"}},
	{"Recursion", []string{"base case", "recursive call", "call stack", "tail recursion", "recursive tree", "memoization"}},
}

var stems = map[model.CognitiveLevel]string{
	model.LevelRemembering:   "Which statement correctly defines the %s in %s (variant %d)?",
	model.LevelUnderstanding: "Explain why the %s matters when working with %s (case %d).",
	model.LevelApplying:      "Apply the %s to solve exercise %d about %s.",
	model.LevelAnalyzing:     "Analyze how the %s affects program behaviour in %s scenario %d.",
	model.LevelEvaluating:    "Evaluate whether the %s is the best choice for %s problem %d.",
	model.LevelCreating:      "Design a solution that uses the %s for %s project %d.",
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)
	questionService := service.NewQuestionService(questionRepo)

	total := len(topics) * len(model.CognitiveLevels) * len(model.Difficulties) * perBucket
	fmt.Printf("=== Seeding %d Questions ===\n", total)

	successCount := 0
	for _, topic := range topics {
		_, existing, err := questionRepo.ListPaginated(ctx, assembly.QueryFilter{Topic: topic.name}, 1, 0)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to check existing questions")
		}
		if existing > 0 {
			fmt.Printf("Topic %s already has %d questions, skipping\n", topic.name, existing)
			continue
		}

		n := 0
		for li, level := range model.CognitiveLevels {
			for _, difficulty := range model.Difficulties {
				for i := 0; i < perBucket; i++ {
					n++
					subject := topic.subjects[(li+i)%len(topic.subjects)]
					req := &model.CreateQuestionRequest{
						Text:           seedText(level, subject, topic.name, n),
						Type:           string(model.QuestionTypeMCQ),
						Topic:          topic.name,
						CognitiveLevel: string(level),
						Difficulty:     string(difficulty),
						Choices: map[string]string{
							"A": fmt.Sprintf("The %s behaves as specified", subject),
							"B": fmt.Sprintf("The %s is ignored", subject),
							"C": "The program does not compile",
							"D": "None of the above",
						},
						CorrectAnswer: "A",
						QualityScore:  0.8,
						Approved:      true,
						CreatedBy:     "seed",
					}

					if _, err := questionService.Create(ctx, req); err != nil {
						fmt.Printf("Error creating %s question %d: %v\n", topic.name, n, err)
						continue
					}
					successCount++
				}
			}
		}
		fmt.Printf("Seeded topic %s\n", topic.name)
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d questions.\n", successCount, total)
}

// seedText fills the level's stem; the applying stem puts the number first.
func seedText(level model.CognitiveLevel, subject, topic string, n int) string {
	if level == model.LevelApplying {
		return fmt.Sprintf(stems[level], subject, n, topic)
	}
	return fmt.Sprintf(stems[level], subject, topic, n)
}
