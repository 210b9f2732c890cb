package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexcodex/delver/agents"
)

// configField binds one dotted key to the typed config. A nil set marks the
// key read-only.
type configField struct {
	get func(cfg *agents.Config) string
	set func(cfg *agents.Config, raw string) error
}

// configFields is every key `config get/set` accepts. Unknown keys are
// rejected so a typo cannot plant a dead entry in config.yaml.
var configFields = map[string]configField{
	"version": {
		get: func(cfg *agents.Config) string { return cfg.Version },
	},
	"models": {
		get: func(cfg *agents.Config) string { return strings.Join(cfg.Models, ", ") },
		set: func(cfg *agents.Config, raw string) error {
			var models []string
			for _, m := range strings.Split(raw, ",") {
				if m = strings.TrimSpace(m); m != "" {
					models = append(models, m)
				}
			}
			if len(models) == 0 {
				return fmt.Errorf("models needs at least one model id")
			}
			cfg.Models = models
			return nil
		},
	},
	"endpoint": {
		get: func(cfg *agents.Config) string { return cfg.Endpoint },
		set: func(cfg *agents.Config, raw string) error { cfg.Endpoint = raw; return nil },
	},
	"temperature": {
		get: func(cfg *agents.Config) string { return strconv.FormatFloat(cfg.Temperature, 'g', -1, 64) },
		set: func(cfg *agents.Config, raw string) error {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("temperature must be a number, got %q", raw)
			}
			cfg.Temperature = v
			return nil
		},
	},
	"outputs_dir": {
		get: func(cfg *agents.Config) string { return cfg.OutputsDir },
		set: func(cfg *agents.Config, raw string) error { cfg.OutputsDir = raw; return nil },
	},
	"max_tokens":          intField(func(cfg *agents.Config) *int { return &cfg.MaxTokens }),
	"max_iterations":      intField(func(cfg *agents.Config) *int { return &cfg.MaxIterations }),
	"preview_limit":       intField(func(cfg *agents.Config) *int { return &cfg.PreviewLimit }),
	"logging.llm_debug":   boolField(func(cfg *agents.Config) *bool { return &cfg.Logging.LLM }),
	"logging.agent_debug": boolField(func(cfg *agents.Config) *bool { return &cfg.Logging.Agent }),
}

func intField(ptr func(*agents.Config) *int) configField {
	return configField{
		get: func(cfg *agents.Config) string { return strconv.Itoa(*ptr(cfg)) },
		set: func(cfg *agents.Config, raw string) error {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				return fmt.Errorf("value must be a positive integer, got %q", raw)
			}
			*ptr(cfg) = v
			return nil
		},
	}
}

func boolField(ptr func(*agents.Config) *bool) configField {
	return configField{
		get: func(cfg *agents.Config) string { return strconv.FormatBool(*ptr(cfg)) },
		set: func(cfg *agents.Config, raw string) error {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("value must be true or false, got %q", raw)
			}
			*ptr(cfg) = v
			return nil
		},
	}
}

func knownConfigKeys() []string {
	keys := make([]string, 0, len(configFields))
	for key := range configFields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key %q; known keys: %s", key, strings.Join(knownConfigKeys(), ", "))
}

// newConfigCmd registers subcommands that inspect or mutate config.yaml.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or modify config.yaml",
	}
	cmd.AddCommand(newConfigGetCmd(), newConfigSetCmd(), newConfigListCmd())
	return cmd
}

// newConfigGetCmd prints the value of one known key.
func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Read a config value by dotted key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, ok := configFields[args[0]]
			if !ok {
				return unknownKeyError(args[0])
			}
			loaded, err := agents.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), field.get(loaded))
			return nil
		},
	}
}

// newConfigSetCmd validates and persists a new value for one known key.
func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Update a config value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, ok := configFields[args[0]]
			if !ok {
				return unknownKeyError(args[0])
			}
			if field.set == nil {
				return fmt.Errorf("config key %q is read-only", args[0])
			}
			loaded, err := agents.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			if err := field.set(loaded, args[1]); err != nil {
				return err
			}
			if err := agents.SaveConfig(cfgFile, loaded); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	}
}

// newConfigListCmd prints every key with its current value.
func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all config keys and their current values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := agents.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			for _, key := range knownConfigKeys() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, configFields[key].get(loaded))
			}
			return nil
		},
	}
}
