package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/tmplsync/internal/cli/config"
	"github.com/leapstack-labs/tmplsync/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new tmplsync project",
		Long: `Initialize a new tmplsync project with a jobs directory and configuration.

This creates:
  - jobs/ directory, one sub-directory per job holding its job.yaml
  - tmplsync.yaml configuration file
  - .gitignore excluding the local state database

Use --example to also create a sample template and a plain job.`,
		Example: `  # Initialize in current directory
  tmplsync init

  # Initialize with an example template
  tmplsync init --example

  # Initialize in a new directory
  tmplsync init my-jobs --example

  # Force overwrite existing config
  tmplsync init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

			name := "minimal"
			if example {
				name = "example"
			}
			return runInit(r, dir, name, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Create an example template and job")

	return cmd
}

func runInit(r *output.Renderer, dir, templateName string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	tmpl, err := loadProjectTemplate(templateName)
	if err != nil {
		return err
	}
	files, err := tmpl.Files()
	if err != nil {
		return fmt.Errorf("failed to read project template: %w", err)
	}
	written, err := tmpl.Install(dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}
	created := make(map[string]bool, len(written))
	for _, f := range written {
		created[f] = true
	}

	configFiles, jobFiles := groupFiles(files)
	for _, group := range []struct {
		title string
		files []string
	}{{"Configuration", configFiles}, {"Jobs", jobFiles}} {
		r.Header(2, group.title)
		for _, f := range group.files {
			if created[f] {
				r.StatusLine(f, "success", "created")
			} else {
				r.StatusLine(f, "unchanged", "kept existing file")
			}
		}
		r.Println("")
	}

	r.Success("tmplsync project initialized!")
	r.Println("")
	r.Println("Next steps:")
	if templateName == "example" {
		r.Println("  tmplsync vars web                                  Show the template's variables")
		r.Println("  tmplsync render web web-eu --var REGION=eu --var ENV=prod --var BRANCH=main")
		r.Println("  tmplsync sync web                                  Push template edits to implementations")
	} else {
		r.Println("  1. Create a template with 'tmplsync new <name> --kind template'")
		r.Println("  2. Use $$NAME placeholders in its job.yaml")
		r.Println("  3. Run 'tmplsync render <template> <implementation> --var NAME=value'")
	}

	return nil
}
