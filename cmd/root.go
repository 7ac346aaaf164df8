package cmd

import (
	"github.com/spf13/cobra"

	"github.com/user/secaudit/pkg/config"
	"github.com/user/secaudit/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "secaudit",
	Short: "Security audit engagement tracker with a built-in static scanner",
	Long: `secaudit tracks security audit engagements (projects, scans, findings, reports)
and ships a heuristic scanning engine for Node.js/TypeScript codebases.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.DebugEnabled = DebugMode
		config.ConfigDirOverride = ConfigDir
	},
}

var (
	DebugMode bool
	ConfigDir string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer logger.Flush()
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&ConfigDir, "config", "", "Configuration directory (default ~/.secaudit)")
}
