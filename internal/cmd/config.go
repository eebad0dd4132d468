package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmgilman/xcmd/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "View and modify configuration",
	Long: `View and modify xcmd configuration.

With no arguments, displays all configuration.
With one argument, displays the value for the specified key.
With two arguments, sets the value for the specified key.

Every key can also be set from the environment as XCMD_<KEY>, with dots
replaced by underscores (XCMD_EXECUTION_DEFAULT_TIMEOUT=60).`,
	Example: `  # Show all config
  xcmd config

  # Show value for a specific key
  xcmd config execution.mode

  # Set a value
  xcmd config execution.default_timeout 60

  # List every key
  xcmd config --keys

  # Open config file in editor
  xcmd config --edit`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if keys, _ := cmd.Flags().GetBool("keys"); keys {
			return runListKeys(out)
		}

		loader, err := configLoaderFor(cmd)
		if err != nil {
			return err
		}

		if edit, _ := cmd.Flags().GetBool("edit"); edit {
			return runEdit(loader)
		}

		switch len(args) {
		case 0:
			return runShowAll(out, loader)
		case 1:
			return runShowKey(out, loader, args[0])
		case 2:
			return runSetKey(out, loader, args[0], args[1])
		}

		return nil
	},
}

// configLoaderFor returns the loader set up by initConfig, or a fresh one
// when loading failed there so the file can still be inspected and fixed.
func configLoaderFor(cmd *cobra.Command) (*config.Loader, error) {
	if loader := LoaderFromContext(cmd.Context()); loader != nil {
		return loader, nil
	}

	var (
		loader *config.Loader
		err    error
	)
	if configFile != "" {
		loader, err = config.NewLoaderAt(configFile)
	} else {
		loader, err = config.NewLoader()
	}
	if err != nil {
		return nil, fmt.Errorf("init config loader: %w", err)
	}
	return loader, nil
}

func runEdit(loader *config.Loader) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return config.ErrNoEditor
	}

	// Ensure config exists (Load creates it if missing)
	if _, err := loader.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	editorCmd := exec.Command(editor, loader.Path())
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

func runListKeys(out io.Writer) error {
	keys := config.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintln(out, k)
	}
	return nil
}

func runShowAll(out io.Writer, loader *config.Loader) error {
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Fprint(out, string(data))
	return nil
}

func runShowKey(out io.Writer, loader *config.Loader, key string) error {
	if err := config.ValidateKey(key); err != nil {
		return err
	}

	if _, err := loader.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	value, err := loader.Get(key)
	if err != nil {
		return err
	}

	switch v := value.(type) {
	case nil:
		fmt.Fprintln(out, "")
	case string:
		fmt.Fprintln(out, v)
	case map[string]any, []any, []string:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal value: %w", err)
		}
		fmt.Fprint(out, string(data))
	default:
		fmt.Fprintln(out, value)
	}

	return nil
}

func runSetKey(out io.Writer, loader *config.Loader, key, value string) error {
	if _, err := loader.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := loader.Set(key, value); err != nil {
		return err
	}

	fmt.Fprintf(out, "Set %s = %s\n", key, value)
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().Bool("edit", false, "open config file in $EDITOR")
	configCmd.Flags().Bool("keys", false, "list every configuration key")
}
