package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dispatchlab/rtdcheck/internal/scenario"
)

var validateSuite string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a suite file against the suite schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateSuite == "" {
			return errors.New("--suite is required")
		}
		suite, err := scenario.Load(validateSuite)
		if err != nil {
			var schemaErrs scenario.SchemaErrors
			if errors.As(err, &schemaErrs) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", failLabel("INVALID"), validateSuite)
				fmt.Fprintln(cmd.ErrOrStderr(), schemaErrs.Error())
				return errFailures
			}
			return err
		}
		enabled := 0
		for _, sc := range suite.Scenarios {
			if !sc.Disabled {
				enabled++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: suite %q, %d scenarios (%d enabled)\n",
			passLabel("OK"), validateSuite, suite.Name, len(suite.Scenarios), enabled)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSuite, "suite", "", "suite YAML file")
}
