package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shortforge/internal/api"
	"shortforge/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var voiceID string
	var music string
	var query string

	cmd := &cobra.Command{
		Use:   "submit <script-id>",
		Short: "Queue a video generation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg.Paths.APIBind)

			request := api.GenerateRequest{
				ScriptID:        args[0],
				VoiceID:         voiceID,
				BackgroundMusic: music,
				BRollQuery:      query,
			}
			var job api.JobView
			if err := client.postJSON("/videos/generate", request, &job); err != nil {
				return err
			}
			fmt.Printf("queued job %s\n", job.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&voiceID, "voice", "", "Voice identifier (defaults to the configured voice)")
	cmd.Flags().StringVar(&music, "music", "", "Path to a background music track")
	cmd.Flags().StringVar(&query, "query", "", "Stock footage search query (defaults to the script topic)")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg.Paths.APIBind)

			var job api.JobView
			if err := client.getJSON("/videos/"+args[0], &job); err != nil {
				return err
			}
			printJob(job)
			return nil
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg.Paths.APIBind)

			var response api.JobListResponse
			if err := client.getJSON(fmt.Sprintf("/videos?limit=%d", limit), &response); err != nil {
				return err
			}
			if len(response.Jobs) == 0 {
				fmt.Println("no jobs")
				return nil
			}
			renderJobTable(response.Jobs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs to show")
	return cmd
}

func newScriptCommand(ctx *commandContext) *cobra.Command {
	scriptCmd := &cobra.Command{
		Use:   "script",
		Short: "Manage narration scripts",
	}

	var topic string
	addCmd := &cobra.Command{
		Use:   "add <text-file>",
		Short: "Store a narration script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			text, err := readScriptFile(args[0])
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			script, err := store.AddScript(cmd.Context(), "", topic, text)
			if err != nil {
				return err
			}
			fmt.Printf("stored script %s\n", script.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&topic, "topic", "", "Topic used as the fallback footage query")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			scripts, err := store.ListScripts(cmd.Context(), 50)
			if err != nil {
				return err
			}
			if len(scripts) == 0 {
				fmt.Println("no scripts")
				return nil
			}
			for _, script := range scripts {
				fmt.Printf("%s  %s\n", script.ID, script.Topic)
			}
			return nil
		},
	}

	scriptCmd.AddCommand(addCmd)
	scriptCmd.AddCommand(listCmd)
	return scriptCmd
}
