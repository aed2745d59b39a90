package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the config file path",
	Long: `Print the path to the monitor360 configuration file.

  monitor360 config         Print config file path and mode
  monitor360 config edit    Open config.toml in $EDITOR
  monitor360 config path    Print the config directory path`,
	RunE: runConfig,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config.toml in $EDITOR",
	RunE:  runConfigEdit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config directory path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfgPath := resolvedConfigPath()

	fmt.Fprintf(os.Stdout, "Config: %s\n", cfgPath)
	if info, err := os.Stat(cfgPath); err == nil {
		fmt.Fprintf(os.Stdout, "  %s  %s\n", info.Mode().Perm(), cfgPath)
	} else {
		fmt.Fprintf(os.Stdout, "  (not created yet — run 'monitor360 setup')\n")
	}

	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"nano", "vim", "vi"} {
			if _, err := exec.LookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found — set $EDITOR")
	}

	c := exec.Command(editor, resolvedConfigPath())
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	if err := c.Run(); err != nil {
		return fmt.Errorf("editor exited: %w", err)
	}

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(filepath.Dir(resolvedConfigPath()))
	return nil
}
