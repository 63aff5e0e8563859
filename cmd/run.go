package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/compass-dev/career-compass/internal/ai/gemini"
	"github.com/compass-dev/career-compass/internal/analyst"
	"github.com/compass-dev/career-compass/internal/jobsearch"
	"github.com/compass-dev/career-compass/internal/logger"
	"github.com/compass-dev/career-compass/internal/profile"
	"github.com/compass-dev/career-compass/internal/retry"
	"github.com/compass-dev/career-compass/internal/scout"
	"github.com/compass-dev/career-compass/internal/secrets"
	"github.com/compass-dev/career-compass/internal/session"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptShowMatches     = "Show matches again"
	PromptReportByCompany = "Report by companies"
	PromptMatchesToFile   = "Dump matches to file"
	PromptExit            = "Exit"
)

var errExit = errors.New("exit requested")

var actionPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowMatches, PromptReportByCompany, PromptMatchesToFile, PromptExit},
}

// defaultQuestions is the built-in quiz, used when the config does not
// provide its own.
var defaultQuestions = []string{
	"Tell us about a time you felt most successful or accomplished.",
	"How do you typically react when faced with high-pressure situations?",
	"Describe your ideal work environment and team dynamic.",
	"What types of problems or challenges energize you most?",
	"Tell us about your career aspirations and what success looks like to you.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the interactive career quiz and rank matching job postings",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("location", "l", "", "location appended to search queries")
	runCmd.Flags().IntP("top", "t", 5, "number of top matches to show")

	viper.BindPFlag("location", runCmd.Flags().Lookup("location"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting career-compass", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		config = &Config{}
	}

	orch, err := buildPipeline(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	id, err := orch.NewSession()
	if err != nil {
		logger.Fatal("creating a session", zap.Error(err))
	}

	questions := config.Questions
	if len(questions) == 0 {
		questions = defaultQuestions
	}

	state := runQuiz(ctx, orch, id, questions, logger)

	summary, err := orch.Summary(id)
	if err != nil {
		logger.Fatal("rendering the session summary", zap.Error(err))
	}
	fmt.Println()
	fmt.Print(summary)

	if state != session.StateComplete && state != session.StateAborted {
		logger.Info("exiting", zap.String("reason", "not enough profile signal to search"))
		return
	}

	topN, _ := cmd.Flags().GetInt("top")
	matches, err := orch.TopMatches(id, topN)
	if err != nil {
		logger.Fatal("getting top matches", zap.Error(err))
	}

	if len(matches) == 0 {
		logger.Info("exiting", zap.String("reason", "no matches produced"))
		return
	}

	printMatches(matches)

	for {
		_, action, err := actionPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, matches, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

// runQuiz walks the questions until the session settles in a terminal state
// or the questions run out.
func runQuiz(ctx context.Context, orch *session.Orchestrator, id string, questions []string, logger *zap.Logger) session.WorkflowState {
	state := session.WorkflowState("")

	for i, question := range questions {
		fmt.Printf("\n[Question %d/%d]\n%s\n", i+1, len(questions), question)

		answerPrompt := promptui.Prompt{Label: "Your response"}
		answer, err := answerPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if strings.TrimSpace(answer) == "" {
			fmt.Println("(skipping empty response)")
			continue
		}

		state, err = orch.SubmitTurn(ctx, id, question, answer)
		if err != nil {
			if errors.Is(err, session.ErrSessionAborted) {
				logger.Warn("session aborted after repeated failures, showing partial results")
				break
			}
			logger.Fatal("submitting the answer", zap.Error(err))
		}

		if state == session.StateComplete {
			break
		}
	}

	return state
}

func buildPipeline(ctx context.Context, config *Config, logger *zap.Logger) (*session.Orchestrator, error) {
	if config.AI == nil || config.AI.Gemini == nil {
		return nil, errors.New("ai.gemini configuration is required")
	}
	if provider := strings.TrimSpace(strings.ToLower(config.AI.Provider)); provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.AI.Provider)
	}
	if config.Search == nil {
		return nil, errors.New("search configuration is required")
	}

	geminiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: config.AI.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	searchKey, err := secrets.Load(secrets.Source{
		Name: "search api key",
		File: config.Search.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set search.api-key-file or SEARCH_API_KEY_FILE)", err)
	}

	engineID := strings.TrimSpace(config.Search.EngineID)
	if engineID == "" {
		return nil, errors.New("search.engine-id is required (or SEARCH_ENGINE_ID)")
	}

	generator, err := gemini.NewGenerator(ctx, geminiKey, config.AI.Gemini.Model)
	if err != nil {
		return nil, fmt.Errorf("building the gemini generator: %w", err)
	}

	extractorLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", generator.Model()),
	)
	extractor := gemini.NewExtractor(generator, extractorLogger, config.AI.Gemini.MaxLogLength)

	searchClient := jobsearch.New(logger, searchKey, engineID, config.Search.MaxResults)

	policy := retry.Policy{Logger: logger}
	if config.Retry != nil {
		policy.MaxAttempts = config.Retry.MaxAttempts
		policy.Backoff = config.Retry.Backoff
		policy.Timeout = config.Retry.Timeout
	}

	scoutCfg := scout.Config{ExcludeCompanies: config.ExcludeCompanies}
	abortThreshold := 0
	if config.Session != nil {
		scoutCfg.MinTraits = config.Session.MinTraits
		scoutCfg.MinConfidence = config.Session.MinConfidence
		scoutCfg.MaxTurns = config.Session.MaxTurns
		scoutCfg.TopTraits = config.Session.TopTraits
		scoutCfg.MaxPostings = config.Session.MaxPostings
		abortThreshold = config.Session.AbortThreshold
	}

	deps := session.Deps{
		Profiler: profile.NewAccumulator(extractor, policy, profile.Config{}, logger),
		Searcher: scout.New(searchClient, policy, scoutCfg, logger),
		Scorer:   analyst.New(extractor, policy, analyst.Config{}, logger),
		Logger:   logger,
	}

	return session.NewOrchestrator(deps, session.NewMemoryStore(), session.Config{
		Location:       viper.GetString("location"),
		AbortThreshold: abortThreshold,
	}), nil
}

func handleAction(action string, matches []*analyst.MatchCard, logger *zap.Logger) error {
	switch action {
	case PromptShowMatches:
		printMatches(matches)
		return nil
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(matchedPostings(matches).ReportByCompany(), "", "  ")
		logger.Info(string(pretty), zap.Int("matches count", len(matches)))
		return nil
	case PromptMatchesToFile:
		filename, err := analyst.DumpToTmpFile(matches)
		if err != nil {
			return fmt.Errorf("dump matches to file: %w", err)
		}
		logger.Info("dumping matches to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func printMatches(matches []*analyst.MatchCard) {
	fmt.Println("\nTop matches:")
	for i, match := range matches {
		fmt.Printf("%d. %s\n", i+1, match.Reasoning)
	}
}

func matchedPostings(matches []*analyst.MatchCard) *jobsearch.Postings {
	postings := &jobsearch.Postings{}
	for _, match := range matches {
		postings.Append(match.Posting)
	}
	return postings
}
