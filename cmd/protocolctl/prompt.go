package main

import (
	"fmt"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/protocol"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func promptCmd() *cobra.Command {
	var (
		typeFlag    string
		contextFile string
		adjustments string
	)
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Render the generation prompts for an intake",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domain.ParseProtocolType(typeFlag)
			if err != nil {
				return err
			}
			var uc protocol.UserContext
			if contextFile != "" {
				if uc, err = readUserContext(contextFile); err != nil {
					return err
				}
			}
			system, user, err := protocol.NewTemplatePrompts().Build(t, uc, adjustments)
			if err != nil {
				return err
			}
			heading := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, heading.Sprint("--- system ---"))
			fmt.Fprintln(out, system)
			fmt.Fprintln(out, heading.Sprint("--- user ---"))
			fmt.Fprintln(out, user)
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Protocol type: workout, nutrition or mindset")
	cmd.Flags().StringVar(&contextFile, "context", "", "JSON file with the intake answers")
	cmd.Flags().StringVar(&adjustments, "adjustments", "", "Reviewer adjustments appended to the prompt")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
