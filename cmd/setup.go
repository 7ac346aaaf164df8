package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/secaudit/pkg/assist"
	"github.com/user/secaudit/pkg/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for the refinement assistant",
	Run: func(cmd *cobra.Command, args []string) {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Println("Welcome to secaudit Setup Wizard")
		fmt.Println("--------------------------------")

		// 1. Identity
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}
		fmt.Printf("Step 1: Your auditor ID [%s]\n", cfg.Actor.ID)
		fmt.Print("> ")
		scanner.Scan()
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			cfg.Actor.ID = id
		}

		// 2. API key
		provider := assist.ProviderGemini
		fmt.Printf("\nStep 2: Enter API Key for %s (leave empty to run offline)\n", provider)
		fmt.Print("> ")
		scanner.Scan()
		apiKey := strings.TrimSpace(scanner.Text())

		selectedModel := cfg.SelectedModel
		if apiKey != "" {
			// 3. Models
			fmt.Println("\nStep 3: Validating key and fetching available models...")
			ctx := rootContext()
			p, err := assist.NewProvider(ctx, provider, apiKey, "")
			if err != nil {
				fmt.Printf("Error initializing provider: %v\n", err)
				return
			}
			if closer, ok := p.(interface{ Close() }); ok {
				defer closer.Close()
			}

			models, err := p.ListModels(ctx)
			if err != nil || len(models) == 0 {
				fmt.Printf("Warning: Could not fetch models from API: %v\n", err)
				fmt.Printf("Please enter model name manually [%s]:\n", assist.DefaultGeminiModel)
				fmt.Print("> ")
				scanner.Scan()
				selectedModel = strings.TrimSpace(scanner.Text())
				if selectedModel == "" {
					selectedModel = assist.DefaultGeminiModel
				}
			} else {
				fmt.Printf("Successfully retrieved %d models.\n", len(models))
				for i, m := range models {
					fmt.Printf("%d. %s\n", i+1, m)
				}
				fmt.Print("Select Model (number) > ")
				scanner.Scan()
				selIdx, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
				if err != nil || selIdx < 1 || selIdx > len(models) {
					fmt.Println("Invalid selection. Using first available model.")
					selectedModel = models[0]
				} else {
					selectedModel = models[selIdx-1]
				}
			}
			cfg.SetAPIKey(provider, apiKey)
		}

		// 4. Save
		fmt.Println("\nStep 4: Saving Configuration...")
		cfg.SelectedProvider = provider
		cfg.SelectedModel = selectedModel
		if err := config.SaveConfig(cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}

		fmt.Println("--------------------------------")
		fmt.Println("Setup Complete!")
		fmt.Printf("Actor:    %s (%s)\n", cfg.Actor.ID, cfg.Actor.Role)
		fmt.Printf("Provider: %s\n", provider)
		fmt.Printf("Model:    %s\n", selectedModel)
		fmt.Println("You can now run 'secaudit project create'")
	},
}

func init() {
	configCmd.AddCommand(setupCmd)
}
