package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-assembly/internal/assembly"
	"github.com/stemsi/exstem-assembly/internal/cache"
	"github.com/stemsi/exstem-assembly/internal/config"
	"github.com/stemsi/exstem-assembly/internal/database"
	"github.com/stemsi/exstem-assembly/internal/llm"
	"github.com/stemsi/exstem-assembly/internal/logger"
	"github.com/stemsi/exstem-assembly/internal/repository"
	"github.com/stemsi/exstem-assembly/internal/service"
	"github.com/stemsi/exstem-assembly/internal/validator"
)

var (
	requestFile   string
	dryRun        bool
	withAnswerKey bool
	timeout       time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble a test from a TOS file",
	Long: `Reads an assembly request (JSON or YAML) with metadata and either a TOS
matrix or an explicit requirement list, runs the assembly pipeline against
the configured question bank and prints the result as JSON.

Example:
  assemble -f midterm.yaml
  assemble -f midterm.yaml --dry-run`,
	SilenceUsage: true,
	RunE:         runAssemble,
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339

	rootCmd.Flags().StringVarP(&requestFile, "file", "f", "", "assembly request file (JSON or YAML)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "only resolve the TOS into requirements")
	rootCmd.Flags().BoolVar(&withAnswerKey, "answer-key", false, "include the numbered items and answer key")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall assembly timeout")
	_ = rootCmd.MarkFlagRequired("file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAssemble(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	log := logger.SetupWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	req, err := loadRequest(requestFile)
	if err != nil {
		return err
	}
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return describeValidation(validator.TranslateErrors(err))
	}

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	if dryRun {
		svc := service.NewAssemblyService(service.AssemblyDeps{}, opts, log)
		reqs, err := svc.Requirements(req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"requirements": reqs,
			"total_items":  assembly.RequiredTotal(reqs),
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	deps := service.AssemblyDeps{
		Questions: repository.NewQuestionRepository(pool),
		Tests:     repository.NewTestRepository(pool),
	}

	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			return fmt.Errorf("create gemini client: %w", err)
		}
		defer gemini.Close()

		var classifier assembly.Classifier = llm.NewClassifier(gemini)
		// The score cache is optional here; a one-shot run works without Redis.
		if rdb, err := database.NewRedisClient(ctx, cfg, log); err == nil {
			defer rdb.Close()
			classifier = cache.NewScoreCache(classifier, rdb, cfg.ScoreCacheTTL, log)
		} else {
			log.Warn().Err(err).Msg("Redis unavailable, classifier scores will not be cached")
		}
		deps.Classifier = classifier
		deps.Generator = llm.NewGenerator(gemini)
	}

	result, err := service.NewAssemblyService(deps, opts, log).Assemble(ctx, req)
	if err != nil {
		var cv *assembly.ContractViolation
		if errors.As(err, &cv) {
			_ = printJSON(cmd.ErrOrStderr(), map[string]interface{}{
				"required":           cv.Required,
				"selected":           cv.Selected,
				"shortfall":          cv.Shortfall,
				"attempts":           cv.Attempts,
				"unmet_requirements": cv.Unmet,
			})
		}
		return err
	}

	out := map[string]interface{}{
		"result":  result,
		"metrics": result.Test.Metrics,
	}
	if withAnswerKey {
		out["items"] = result.Test.Items
		out["answer_key"] = result.Test.AnswerKey
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func describeValidation(fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msg := "invalid request:"
	for _, k := range keys {
		msg += fmt.Sprintf("\n  %s: %s", k, fields[k])
	}
	return errors.New(msg)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
