package main

import (
	"fmt"
	"os"
	"strings"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/protocol"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// catalogFile is the seed format for the exercise catalog.
//
//	media_base: https://media.example.com/exercises/
//	exercises:
//	  - name: Supino Reto
//	    media: supino-reto.gif
//	    muscle_group: chest
type catalogFile struct {
	MediaBase string `yaml:"media_base"`
	Exercises []struct {
		Name        string `yaml:"name"`
		Media       string `yaml:"media"`
		MuscleGroup string `yaml:"muscle_group"`
	} `yaml:"exercises"`
}

func loadCatalog(path string) ([]domain.CatalogEntry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	entries := make([]domain.CatalogEntry, 0, len(f.Exercises))
	for i, e := range f.Exercises {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("catalog %s: exercise %d has no name", path, i+1)
		}
		url := e.Media
		if url != "" && !strings.Contains(url, "://") {
			url = strings.TrimSuffix(f.MediaBase, "/") + "/" + strings.TrimPrefix(url, "/")
		}
		entries = append(entries, domain.CatalogEntry{
			CanonicalName: e.Name,
			MediaKey:      e.Media,
			MediaURL:      url,
			MuscleGroup:   e.MuscleGroup,
		})
	}
	return entries, nil
}

func matchCmd() *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "match <exercise name>...",
		Short: "Show which catalog media each exercise name resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}
			m := protocol.NewMatcher(catalog, nil)
			normalizer := protocol.DefaultNormalizer()
			out := cmd.OutOrStdout()

			missed := 0
			for _, name := range args {
				url, ok := m.Match(name)
				if !ok {
					missed++
					fmt.Fprintf(out, "%s  %q (normalized %q)\n", color.New(color.FgYellow).Sprint("MISS"), name, normalizer.Normalize(name))
					continue
				}
				fmt.Fprintf(out, "%s  %q -> %s\n", color.New(color.FgGreen).Sprint("HIT "), name, url)
			}
			if missed > 0 {
				return errFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&catalogPath, "catalog", "c", "catalog.yaml", "Catalog seed file")
	return cmd
}
