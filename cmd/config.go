package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/secaudit/pkg/assist"
	"github.com/user/secaudit/pkg/audit"
	"github.com/user/secaudit/pkg/config"
	"github.com/user/secaudit/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit ~/.secaudit/config.yaml (identity, assistant)",
}

// updateConfig loads the config, applies edit and saves the result
func updateConfig(edit func(cfg *config.Config) error) *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		fail("Error loading config", err)
	}
	if err := edit(cfg); err != nil {
		fail("Invalid setting", err)
	}
	if err := config.SaveConfig(cfg); err != nil {
		fail("Error saving config", err)
	}
	return cfg
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (API keys masked)",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fail("Error loading config", err)
		}
		path, _ := config.GetConfigPath()

		fmt.Printf("%s %s\n", ui.FolderEmoji, path)
		fmt.Printf("  database:  %s\n", cfg.DatabasePath)
		fmt.Printf("  trail:     %s\n", cfg.TrailPath)
		fmt.Printf("  actor:     %s (%s)\n", cfg.Actor.ID, cfg.Actor.Role)
		fmt.Printf("  scan:      timeout %s, max %d files, parallel %v\n", cfg.Scan.Timeout, cfg.Scan.MaxFiles, cfg.Scan.Parallel)
		fmt.Printf("  assistant: %s / %s\n", cfg.SelectedProvider, cfg.SelectedModel)
		for _, p := range assist.Providers {
			if p == assist.ProviderOffline {
				continue
			}
			fmt.Printf("  %s key: %s\n", p, maskKey(cfg.GetAPIKey(p)))
		}
	},
}

func maskKey(key string) string {
	if key == "" {
		return "not set"
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Store the API key of an assistant provider",
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("provider")
		key, _ := cmd.Flags().GetString("key")

		var provider string
		updateConfig(func(cfg *config.Config) (err error) {
			provider, err = setProviderKey(cfg, name, key)
			return err
		})
		ui.PrintSuccess(fmt.Sprintf("Stored %s key (SECAUDIT_%s_API_KEY overrides it)", provider, strings.ToUpper(provider)))
	},
}

// setProviderKey stores key for the named provider and returns the normalized name
func setProviderKey(cfg *config.Config, name, key string) (string, error) {
	provider, err := assist.ParseProvider(name)
	if err != nil {
		return "", err
	}
	if provider == assist.ProviderOffline {
		return "", fmt.Errorf("the %s provider takes no key", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("--key is required")
	}
	cfg.SetAPIKey(provider, key)
	return provider, nil
}

var setModelCmd = &cobra.Command{
	Use:   "set-model",
	Short: "Choose the assistant provider and model used by 'finding refine'",
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")

		cfg := updateConfig(func(cfg *config.Config) error {
			if cmd.Flags().Changed("provider") {
				provider, err := assist.ParseProvider(name)
				if err != nil {
					return err
				}
				cfg.SelectedProvider = provider
			}
			if model != "" {
				cfg.SelectedModel = model
			}
			return nil
		})
		ui.PrintSuccess(fmt.Sprintf("Assistant: %s / %s", cfg.SelectedProvider, cfg.SelectedModel))
	},
}

var setActorCmd = &cobra.Command{
	Use:   "set-actor",
	Short: "Set the identity and role recorded for audit operations",
	Run: func(cmd *cobra.Command, args []string) {
		id, _ := cmd.Flags().GetString("id")
		role, _ := cmd.Flags().GetString("role")

		cfg := updateConfig(func(cfg *config.Config) error {
			if id != "" {
				cfg.Actor.ID = id
			}
			if role != "" {
				r, err := audit.ParseRole(role)
				if err != nil {
					return err
				}
				cfg.Actor.Role = string(r)
			}
			return nil
		})
		ui.PrintSuccess(fmt.Sprintf("Acting as %s (%s)", cfg.Actor.ID, cfg.Actor.Role))
	},
}

var listModelsCmd = &cobra.Command{
	Use:   "list-models",
	Short: "List the models the selected assistant provider offers",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fail("Error loading config", err)
		}
		provider, err := assist.ParseProvider(cfg.SelectedProvider)
		if err != nil {
			fail("Invalid provider in config", err)
		}
		if provider != assist.ProviderOffline && cfg.GetAPIKey(provider) == "" {
			fail("No API key", fmt.Errorf("%w: run 'secaudit config set-key --provider %s'", assist.ErrOffline, provider))
		}

		ctx := rootContext()
		p, err := assist.NewProvider(ctx, provider, cfg.GetAPIKey(provider), "")
		if err != nil {
			fail("Error initializing provider", err)
		}
		if closer, ok := p.(interface{ Close() }); ok {
			defer closer.Close()
		}

		ui.PrintProgress(fmt.Sprintf("Fetching %s models", provider))
		models, err := p.ListModels(ctx)
		if err != nil {
			fail("Error fetching models", err)
		}
		for _, m := range models {
			mark := " "
			if m == cfg.SelectedModel {
				mark = "*"
			}
			fmt.Printf("%s %s\n", mark, m)
		}
	},
}

func init() {
	providers := strings.Join(assist.Providers, ", ")

	setKeyCmd.Flags().StringP("provider", "p", assist.ProviderGemini, "Provider ("+providers+")")
	setKeyCmd.Flags().StringP("key", "k", "", "API key")

	setModelCmd.Flags().StringP("provider", "p", "", "Provider ("+providers+")")
	setModelCmd.Flags().StringP("model", "m", "", "Model name, e.g. "+assist.DefaultGeminiModel)

	setActorCmd.Flags().String("id", "", "Actor identifier")
	setActorCmd.Flags().String("role", "", "ADMIN or AUDITOR")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(setActorCmd)
	configCmd.AddCommand(listModelsCmd)
	rootCmd.AddCommand(configCmd)
}
