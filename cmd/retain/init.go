package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/retain/internal/config"
	"github.com/vango-dev/retain/internal/errors"
)

const starterComponent = `# The root component. {{title}} is replaced by the "title" prop.
tag: main
props:
  class: app
children:
  - tag: h1
    children: ["{{title}}"]
  - tag: slot
`

func initCmd() *cobra.Command {
	var (
		format string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a retain project",
		Long: `Create retain.yaml (or retain.json) and a starter root component.

Examples:
  retain init
  retain init dashboard --format=json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, dir, format, force)
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Config format: yaml or json")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")

	return cmd
}

func runInit(cmd *cobra.Command, dir, format string, force bool) error {
	var name string
	switch format {
	case "yaml":
		name = "retain.yaml"
	case "json":
		name = "retain.json"
	default:
		return errors.Newf(errors.CategoryCLI, "unknown format %q (want yaml or json)", format)
	}
	if config.Exists(dir) && !force {
		return errors.Newf(errors.CategoryCLI, "%s already has a config; use --force to overwrite", dir)
	}

	cfg := config.New()
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	cfg.Name = filepath.Base(abs)
	cfg.Root = "app"
	cfg.Props = map[string]any{"title": cfg.Name}

	componentsDir := filepath.Join(dir, cfg.Loader.Dir)
	if err := os.MkdirAll(componentsDir, 0755); err != nil {
		return err
	}
	appPath := filepath.Join(componentsDir, "app.yaml")
	if _, err := os.Stat(appPath); os.IsNotExist(err) || force {
		if err := os.WriteFile(appPath, []byte(starterComponent), 0644); err != nil {
			return err
		}
	}
	if err := cfg.SaveTo(filepath.Join(dir, name)); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	success(w, "Created %s", filepath.Join(dir, name))
	info(w, "Root component: %s", appPath)
	info(w, "Run 'retain serve -C %s' to start", dir)
	return nil
}
