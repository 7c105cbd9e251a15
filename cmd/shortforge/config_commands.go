package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"shortforge/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and bootstrap configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fmt.Printf("config file: %s\n\n", ctx.cfgPath)
			fmt.Printf("staging_dir: %s\n", cfg.Paths.StagingDir)
			fmt.Printf("library_dir: %s\n", cfg.Paths.LibraryDir)
			fmt.Printf("data_dir:    %s\n", cfg.Paths.DataDir)
			fmt.Printf("log_dir:     %s\n", cfg.Paths.LogDir)
			fmt.Printf("api_bind:    %s\n", cfg.Paths.APIBind)
			fmt.Printf("tts voice:   %s\n", cfg.TTS.DefaultVoiceID)
			fmt.Printf("frame:       %dx%d@%d\n", cfg.Compose.Width, cfg.Compose.Height, cfg.Compose.FPS)
			fmt.Printf("workers:     %d (encode slots %d)\n", cfg.Workflow.Workers, cfg.Workflow.EncodeSlots)
			return nil
		},
	}

	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	return configCmd
}
