package cmd

import (
	"log"

	"github.com/nkhaldi/jobradar/internal/jobboard"
	"github.com/nkhaldi/jobradar/internal/pipeline"
	"github.com/nkhaldi/jobradar/internal/scoring"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "jobradar"
)

type Config struct {
	Profile   string           `mapstructure:"profile"`
	Output    string           `mapstructure:"output"`
	UserAgent string           `mapstructure:"user-agent"`
	TokenFile string           `mapstructure:"token-file"`
	Sources   []*SourceConfig  `mapstructure:"sources"`
	Match     *pipeline.Config `mapstructure:"match"`
	Fetch     *FetchConfig     `mapstructure:"fetch"`
	Weights   *scoring.Weights `mapstructure:"weights"`
}

// SourceConfig describes one job board to search. Kind selects the transport:
// "api" for JSON search APIs, "html" for server-rendered listing pages,
// "rss" for search feeds.
type SourceConfig struct {
	Name      string              `mapstructure:"name"`
	Kind      string              `mapstructure:"kind"`
	URL       string              `mapstructure:"url"`
	Selectors *jobboard.Selectors `mapstructure:"selectors"`
}

type FetchConfig struct {
	MaxRetries    int  `mapstructure:"max-retries"`
	BaseBackoffMS int  `mapstructure:"base-backoff-ms"`
	Jitter        bool `mapstructure:"jitter"`
	TimeoutSec    int  `mapstructure:"timeout-seconds"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobradar is a simple cli for matching a parsed CV profile against job board postings",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("token-file", "JOBRADAR_TOKEN_FILE"); err != nil {
		log.Fatalf("binding JOBRADAR_TOKEN_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobradar.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
