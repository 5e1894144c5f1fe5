package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewNewCommand creates the new command.
func NewNewCommand() *cobra.Command {
	var kind string
	var file string

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a job",
		Long: `Create a job directory holding a job.yaml document.

Without --file a minimal document of the given kind is written. With --file
the document is copied as is and its own kind line decides what it is.`,
		Example: `  # Create an empty template
  tmplsync new web --kind template

  # Create a job from an existing document
  tmplsync new nightly -f nightly.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var doc io.Reader
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", file, err)
				}
				defer func() { _ = f.Close() }()
				doc = f
			} else {
				switch kind {
				case "template", "implementation", "job":
				default:
					return fmt.Errorf("unknown kind %q (want template, implementation or job)", kind)
				}
				doc = strings.NewReader("kind: " + kind + "\n")
			}

			item, err := cmdCtx.Engine.CreateItem(args[0], doc)
			if err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("created %s %s", item.Kind(), item.Name()))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "job", "Kind of the new job (template|implementation|job)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Initial job document")
	_ = cmd.RegisterFlagCompletionFunc("kind", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"template", "implementation", "job"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}
