package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/protocol"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func validateCmd() *cobra.Command {
	var (
		typeFlag    string
		contextFile string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "validate <file|->",
		Short: "Validate a protocol document against its checklist",
		Long: `Reads a protocol document (raw generator output is accepted, code fences
included) and runs the same checklist the server applies before storing it.
Exits non-zero when any criterion fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domain.ParseProtocolType(typeFlag)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			doc, err := protocol.ParseDocument(raw)
			if err != nil {
				return err
			}

			var sched *protocol.Schedule
			if contextFile != "" {
				uc, err := readUserContext(contextFile)
				if err != nil {
					return err
				}
				sched = protocol.ScheduleFromContext(uc)
			}

			res := protocol.ValidateWithSchedule(doc, t, sched)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				printValidation(out, t, res)
			}
			if !res.Valid {
				return errFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Protocol type: workout, nutrition or mindset")
	cmd.Flags().StringVar(&contextFile, "context", "", "JSON file with the intake answers (enables the schedule check)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func printValidation(w io.Writer, t domain.ProtocolType, res protocol.ValidationResult) {
	ok := color.New(color.FgGreen).Sprint("PASS")
	bad := color.New(color.FgRed).Sprint("FAIL")
	for _, name := range protocol.Checklist(t) {
		mark := ok
		if !res.Criteria[name] {
			mark = bad
		}
		fmt.Fprintf(w, "  %s  %s\n", mark, name)
	}
	if len(res.Errors) > 0 {
		fmt.Fprintln(w)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	fmt.Fprintln(w)
	if res.Valid {
		fmt.Fprintln(w, color.New(color.FgGreen, color.Bold).Sprintf("%s protocol is valid", t))
		return
	}
	fmt.Fprintln(w, color.New(color.FgRed, color.Bold).Sprintf("%s protocol failed %d of %d criteria", t, len(res.FailedCriteria), len(res.Criteria)))
}

func readInput(cmd *cobra.Command, name string) (string, error) {
	if name == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(b), nil
}

func readUserContext(path string) (protocol.UserContext, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var uc protocol.UserContext
	if err := json.Unmarshal(b, &uc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return uc, nil
}
