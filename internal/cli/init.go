package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aegischain/aegisd/internal/config"
	"github.com/aegischain/aegisd/internal/threatdb"
)

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

var initCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Bootstrap the aegisd configuration directory",
	Long: "Creates ~/.aegisd with a commented config.yaml and the built-in\n" +
		"threat patterns as an editable threats.yaml. Existing files are left\n" +
		"alone unless --force is set.",
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}

	var created []string

	if wrote, err := writeIfMissing(path, config.DefaultConfigYAML()); err != nil {
		return err
	} else if wrote {
		created = append(created, path)
	}

	threatsPath := filepath.Join(filepath.Dir(path), "threats.yaml")
	threatsContent, err := defaultThreatsYAML()
	if err != nil {
		return fmt.Errorf("generate default threat patterns: %w", err)
	}
	if wrote, err := writeIfMissing(threatsPath, threatsContent); err != nil {
		return err
	} else if wrote {
		created = append(created, threatsPath)
	}

	fmt.Println("aegisd init complete.")
	fmt.Println()
	if len(created) > 0 {
		fmt.Println("Created:")
		for _, p := range created {
			fmt.Printf("  %s\n", p)
		}
	} else {
		fmt.Println("All files already exist (use --force to overwrite).")
	}
	fmt.Println()
	fmt.Println("Start the daemon:")
	fmt.Println("  aegisd serve")
	return nil
}

// writeIfMissing writes content to path unless it exists and --force is unset.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// defaultThreatsYAML renders the built-in patterns as a commented overlay.
func defaultThreatsYAML() (string, error) {
	data, err := yaml.Marshal(threatdb.DefaultPatterns())
	if err != nil {
		return "", err
	}
	header := "# aegisd threat patterns.\n" +
		"# Sections here overlay the built-in defaults; delete a section to\n" +
		"# keep the stock values. The daemon hot-reloads this file on change.\n\n"
	return header + string(data), nil
}
