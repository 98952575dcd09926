package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/heartmatch/heartmatch/internal/logger"
	"github.com/heartmatch/heartmatch/internal/matching"
	"github.com/heartmatch/heartmatch/internal/profile"
	"github.com/heartmatch/heartmatch/internal/store"
)

const (
	PromptShowResults   = "Show ranked results"
	PromptExportResults = "Export results to file"
	PromptExit          = "Exit"
)

var errExit = errors.New("exit requested")

var matchPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowResults, PromptExportResults, PromptExit},
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank candidate families for a child from the roster",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("child", "c", "", "identifier of the child to match. Prompted when unset.")
	matchCmd.Flags().StringP("export-file", "o", "", "write ranked results to this file and exit without the menu")
	matchCmd.Flags().Bool("init-sample", false, "write the built-in sample roster to the store path and exit")
	matchCmd.Flags().Int("top-k", 0, "how many ranked families to return")

	viper.BindPFlag("matching.top-k", matchCmd.Flags().Lookup("top-k"))
}

// match is the main matching command for the cli.
func match(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the heartmatch matcher", zap.String("version", version))

	storePath := config.storePath()

	if cmd.Flag("init-sample").Value.String() == "true" {
		if err := store.SampleRoster().Save(storePath); err != nil {
			logger.Fatal("writing sample roster", zap.Error(err))
		}
		logger.Info("sample roster written", zap.String("path", storePath))
		return
	}

	roster, err := store.Load(storePath)
	if err != nil {
		logger.Fatal("loading roster",
			zap.Error(err),
			zap.String("hint", "run 'heartmatch match --init-sample' to create a starter roster"),
		)
	}

	child, err := selectChild(cmd, roster)
	if err != nil {
		logger.Fatal("selecting a child", zap.Error(err))
	}

	families := availableFamilies(roster)
	if len(families) == 0 {
		logger.Info("exiting", zap.String("reason", "no available families in the roster"))
		return
	}

	generator, err := newGenerator(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the model gateway", zap.Error(err))
	}

	matcher := matching.NewMatcher(generator, rubricFromConfig(config), logger)

	opts := matching.Options{Models: config.models()}
	if config.Matching != nil {
		opts.TopK = config.Matching.TopK
		opts.Workers = config.Matching.Workers
	}

	logger.Info("scoring candidate families",
		zap.String("child_id", child.ID),
		zap.Int("candidates", len(families)),
	)

	results, err := matcher.Match(ctx, child, families, opts)
	if err != nil {
		logger.Fatal("matching failed", zap.Error(err))
	}

	printResults(results)

	if exportFile := cmd.Flag("export-file").Value.String(); exportFile != "" {
		if err := exportResults(results, exportFile); err != nil {
			logger.Fatal("exporting results", zap.Error(err))
		}
		logger.Info("results exported", zap.String("filename", exportFile))
		return
	}

	for {
		_, action, err := matchPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleMatchAction(action, results, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleMatchAction(action string, results []matching.MatchResult, logger *zap.Logger) error {
	switch action {
	case PromptShowResults:
		printResults(results)
		return nil
	case PromptExportResults:
		filename := fmt.Sprintf("heartmatch-results-%s.json", time.Now().Format("20060102-150405"))
		if err := exportResults(results, filename); err != nil {
			return fmt.Errorf("export results to file: %w", err)
		}
		logger.Info("results exported", zap.String("filename", filename))
		return nil
	case PromptExit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func selectChild(cmd *cobra.Command, roster *store.Roster) (*profile.ChildProfile, error) {
	if childID := cmd.Flag("child").Value.String(); childID != "" {
		child, ok := roster.Child(childID)
		if !ok {
			return nil, fmt.Errorf("no child %q in the roster", childID)
		}
		return child, nil
	}

	children := roster.Children()
	if len(children) == 0 {
		return nil, errors.New("the roster has no children; add a child document to the store file")
	}

	items := make([]string, 0, len(children))
	for _, child := range children {
		items = append(items, fmt.Sprintf("%s / age %d / %s", child.ID, child.Age, child.Region))
	}

	childPrompt := promptui.Select{
		Label: "Choose a child and press ENTER",
		Items: items,
	}

	idx, _, err := childPrompt.Run()
	if err != nil {
		return nil, err
	}
	return children[idx], nil
}

func availableFamilies(roster *store.Roster) []*profile.FamilyProfile {
	families := make([]*profile.FamilyProfile, 0)
	for _, family := range roster.Families() {
		if family.Available {
			families = append(families, family)
		}
	}
	return families
}

func rubricFromConfig(config *Config) matching.Rubric {
	rubric := matching.DefaultRubric()
	if config == nil || config.Matching == nil {
		return rubric
	}
	if len(config.Matching.Criteria) > 0 {
		rubric.Criteria = config.Matching.Criteria
	}
	if config.Matching.MaxPromptChars > 0 {
		rubric.MaxPromptChars = config.Matching.MaxPromptChars
	}
	return rubric
}

func printResults(results []matching.MatchResult) {
	fmt.Printf("\nTop %d matches:\n", len(results))
	for i, result := range results {
		marker := ""
		if result.Unavailable {
			marker = " (model unavailable, neutral default)"
		} else if !result.WellFormed {
			marker = " (no parsable score, neutral default)"
		}
		fmt.Printf("%2d. %-8s score %3d%s\n    %s\n", i+1, result.FamilyID, result.Score, marker, result.Rationale)
	}
	fmt.Println()
}

func exportResults(results []matching.MatchResult, path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
