package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/nkhaldi/jobradar/internal/jobboard"
	"github.com/nkhaldi/jobradar/internal/logger"
	"github.com/nkhaldi/jobradar/internal/pipeline"
	"github.com/nkhaldi/jobradar/internal/profile"
	"github.com/nkhaldi/jobradar/internal/scoring"
	"github.com/nkhaldi/jobradar/internal/secrets"
	"github.com/nkhaldi/jobradar/internal/utils"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptShowMatches     = "Show ranked matches"
	PromptShowDetails     = "Show posting details"
	PromptReportByCompany = "Report by companies"
	PromptPostingsToFile  = "Dump postings to file"
	PromptExit            = "Exit"
	PromptBack            = "Back"

	defaultUserAgent = "jobradar/cli (github.com/nkhaldi/jobradar)"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowMatches, PromptShowDetails, PromptReportByCompany, PromptPostingsToFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the jobradar match pipeline",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("profile", "p", "", "path to the parsed CV profile JSON. Overrides the config value.")
	runCmd.Flags().StringP("output", "o", "", "write the match result JSON to this file")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not prompt for follow-up actions after the run")

	viper.BindPFlag("profile", runCmd.Flags().Lookup("profile"))
	viper.BindPFlag("output", runCmd.Flags().Lookup("output"))
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

	logger.Info("starting the jobradar", zap.String("version", version))

	if config == nil {
		logger.Fatal("config is required")
	}

	if len(config.Sources) == 0 {
		logger.Fatal("at least one job board source is required under the sources key")
	}

	profilePath := strings.TrimSpace(viper.GetString("profile"))
	if profilePath == "" {
		logger.Fatal("profile path is required",
			zap.String("hint", "pass --profile or set the 'profile' key in the configuration file"),
		)
	}

	prof, err := profile.FromFile(profilePath)
	if err != nil {
		logger.Fatal("loading profile", zap.Error(err))
	}

	logger.Info("loaded profile",
		zap.String("candidate", prof.Name),
		zap.Int("domains", len(prof.Domains)),
		zap.Int("skills", len(prof.Skills)),
		zap.Int("locations", len(prof.Locations)),
	)

	sources, err := prepareSources(config, logger)
	if err != nil {
		logger.Fatal("preparing job board sources", zap.Error(err))
	}

	runner := pipeline.New(config.Match, scoring.NewEngine(resolveWeights(config)), sources, logger)

	runCtx := ctx
	if config.Fetch != nil && config.Fetch.TimeoutSec > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(config.Fetch.TimeoutSec)*time.Second)
		defer cancel()
	}

	result, err := runner.Run(runCtx, prof)
	if err != nil {
		logger.Fatal("match pipeline failed", zap.Error(err))
	}

	logger.Info("match run completed",
		zap.String("run_id", result.RunID),
		zap.Int("matches", len(result.Matches)),
		zap.Int("total_fetched", result.TotalFetched),
		zap.Int("total_blocked", result.TotalBlocked),
		zap.Int("total_errored", result.TotalErrored),
	)

	if output := strings.TrimSpace(viper.GetString("output")); output != "" {
		if err := writeResult(result, output); err != nil {
			logger.Fatal("writing result file", zap.Error(err))
		}
		logger.Info("wrote match result", zap.String("path", output))
	}

	if len(result.Matches) == 0 {
		logger.Info("exiting", zap.String("reason", "no postings matched"),
			zap.Int("blocked_queries", result.TotalBlocked),
			zap.Int("errored_queries", result.TotalErrored),
		)
		return
	}

	if cmd.Flag("auto-approve").Value.String() == "true" {
		printMatches(result, logger)
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, result); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, logger *zap.Logger, result *pipeline.Result) error {
	switch action {
	case PromptShowMatches:
		printMatches(result, logger)
		return nil
	case PromptShowDetails:
		return showDetails(result, logger)
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(result.MatchedPostings().ReportByCompany(), "", "  ")
		logger.Info(string(pretty), zap.Int("postings count", len(result.Matches)))
		return nil
	case PromptPostingsToFile:
		filename, err := result.MatchedPostings().DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump postings to file: %w", err)
		}
		logger.Info("dumping postings to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// showDetails lets the user pick one matched posting and prints its full record.
func showDetails(result *pipeline.Result, logger *zap.Logger) error {
	postings := result.MatchedPostings()

	for {
		items := make([]string, 0, postings.Len())
		for _, posting := range postings.Items {
			items = append(items, fmt.Sprintf("%s %s / %s / %s",
				posting.ID, posting.Title, posting.Company, posting.URL,
			))
		}

		detailsPrompt := promptui.Select{
			Label: "Choose a posting and press ENTER",
			Items: append(items, PromptBack),
		}

		_, selected, err := detailsPrompt.Run()
		if err != nil {
			return err
		}

		if selected == PromptBack {
			return nil
		}

		postingID := strings.Split(selected, " ")[0]
		posting := postings.FindByID(postingID)
		if posting == nil {
			return fmt.Errorf("there is no such posting id %s", postingID)
		}

		logger.Info(posting.Title,
			zap.String("company", posting.Company),
			zap.String("location", posting.Location),
			zap.String("source", posting.Source),
			zap.String("url", posting.URL),
			zap.String("description", utils.TruncateForLog(posting.Description, 300)),
		)
	}
}

func printMatches(result *pipeline.Result, logger *zap.Logger) {
	for i, match := range result.Matches {
		logger.Info(fmt.Sprintf("%d. [%.1f] %s", i+1, match.Score, match.Posting.Title),
			zap.String("company", match.Posting.Company),
			zap.String("location", match.Posting.Location),
			zap.String("source", match.Posting.Source),
			zap.String("url", match.Posting.URL),
			zap.Any("breakdown", match.Breakdown),
		)
	}
}

// prepareSources builds one retrying fetcher per configured board.
func prepareSources(config *Config, logger *zap.Logger) ([]*pipeline.Source, error) {
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	policy := resolveRetryPolicy(config.Fetch)

	token, err := resolveToken(config)
	if err != nil {
		return nil, err
	}

	sources := make([]*pipeline.Source, 0, len(config.Sources))
	for _, src := range config.Sources {
		if strings.TrimSpace(src.Name) == "" || strings.TrimSpace(src.URL) == "" {
			return nil, fmt.Errorf("every source needs a name and a url")
		}

		var transport jobboard.Transport
		switch strings.ToLower(strings.TrimSpace(src.Kind)) {
		case "", "api":
			transport = jobboard.NewAPITransport(src.Name, src.URL, userAgent, token)
		case "html":
			if src.Selectors == nil {
				return nil, fmt.Errorf("source %q: html sources need selectors", src.Name)
			}
			transport = jobboard.NewHTMLTransport(src.Name, src.URL, userAgent, *src.Selectors)
		case "rss":
			transport = jobboard.NewRSSTransport(src.Name, src.URL, userAgent)
		default:
			return nil, fmt.Errorf("source %q: unsupported kind %q", src.Name, src.Kind)
		}

		sources = append(sources, &pipeline.Source{
			Name:    src.Name,
			Fetcher: jobboard.NewFetcher(transport, policy, logger),
		})
	}

	return sources, nil
}

// resolveToken loads the optional job board API token. Boards without
// authentication simply leave token-file unset.
func resolveToken(config *Config) (string, error) {
	tokenFile := strings.TrimSpace(config.TokenFile)
	if tokenFile == "" {
		tokenFile = strings.TrimSpace(viper.GetString("token-file"))
	}

	if tokenFile == "" {
		return "", nil
	}

	return secrets.Load(secrets.Source{
		Name: "job board token",
		File: tokenFile,
	})
}

func resolveRetryPolicy(cfg *FetchConfig) jobboard.RetryPolicy {
	policy := jobboard.DefaultRetryPolicy()
	if cfg == nil {
		return policy
	}

	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries
	}
	if cfg.BaseBackoffMS > 0 {
		policy.BaseDelay = time.Duration(cfg.BaseBackoffMS) * time.Millisecond
	}
	policy.Jitter = cfg.Jitter

	return policy
}

func resolveWeights(config *Config) scoring.Weights {
	if config.Weights == nil {
		return scoring.DefaultWeights()
	}
	return *config.Weights
}

func writeResult(result *pipeline.Result, path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
