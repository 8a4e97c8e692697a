package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const configHierarchy = `Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (QUADAS_*, OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY, OLLAMA_BASE_URL)
  3. Config file (~/.quadas-agent/config.yaml)
  4. Defaults
`

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage quadas-agent configuration",
	Long: `Manage quadas-agent configuration files and settings.

` + configHierarchy,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Display the configuration after applying defaults, the config file, environment variables and flags. API keys are redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		data, err := renderConfig(cfg, true)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, string(data))
		fmt.Fprintln(out)
		fmt.Fprint(out, configHierarchy)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.quadas-agent/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		path := filepath.Join(home, ".quadas-agent", "config.yaml")
		if err := writeDefaultConfig(path); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", path)
		fmt.Fprintf(out, "\nTo view the configuration:\n  quadas-agent config show\n")
		fmt.Fprintf(out, "\nTo customize, edit the file with your preferred editor:\n  $EDITOR %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// renderConfig marshals cfg to YAML, optionally with the API key redacted
func renderConfig(cfg *model.Config, redact bool) ([]byte, error) {
	shown := *cfg
	if redact && shown.LLM.APIKey != "" {
		shown.LLM.APIKey = "********"
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return nil, fmt.Errorf("error marshaling config: %w", err)
	}
	return data, nil
}

// writeDefaultConfig creates path with the default configuration. An
// existing file is never overwritten.
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'quadas-agent config show' to view it, or delete it first to recreate", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := renderConfig(model.DefaultConfig(), false)
	if err != nil {
		return err
	}

	header := "# quadas-agent configuration file\n#\n"
	for _, line := range strings.Split(strings.TrimSuffix(configHierarchy, "\n"), "\n") {
		header += "# " + line + "\n"
	}
	footer := "\n# API keys are best supplied through the environment or a .env file:\n" +
		"#   OPENAI_API_KEY=sk-...\n" +
		"#   ANTHROPIC_API_KEY=sk-ant-...\n" +
		"#   GEMINI_API_KEY=...\n" +
		"#   OLLAMA_BASE_URL=http://localhost:11434\n"

	content := header + "\n" + string(data) + footer
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}
