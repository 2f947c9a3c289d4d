package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nao1215/capilint/internal/config"
	"github.com/nao1215/capilint/internal/log"
	"github.com/nao1215/capilint/internal/model"
	"github.com/nao1215/capilint/internal/rules"
)

// NewRulesCmd creates the rules command.
func NewRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the active rules",
		Long: `Rules prints the deny-listed symbols that check would use with the same
configuration file and rule flags.

Examples:
  # Show the active rules as a table
  capilint rules

  # Print the built-in rule table as YAML, to start a custom table
  capilint rules --defaults > my_rules.yaml

  # Explain the kinds of findings
  capilint rules --contexts`,
		Args: cobra.NoArgs,
		RunE: runRulesCmd,
	}

	cmd.Flags().StringP("rules", "r", "",
		"Additional YAML rule table")
	cmd.Flags().Bool("no-default-rules", false,
		"Do not load the built-in rule table")
	cmd.Flags().StringSliceP("disable", "d", nil,
		"Rule name or category to disable (repeatable)")

	cmd.Flags().BoolP("json", "j", false,
		"Output rules as JSON")
	cmd.Flags().Bool("defaults", false,
		"Print the built-in rule table as YAML")
	cmd.Flags().Bool("contexts", false,
		"Describe the finding contexts instead of listing rules")

	return cmd
}

// runRulesCmd executes the rules command.
func runRulesCmd(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	if boolFlag(cmd, "defaults") {
		_, err := out.Write(rules.DefaultYAML())
		return err
	}
	if boolFlag(cmd, "contexts") {
		return writeContextTable(out)
	}

	cfg := config.NewConfig()
	cfg.ConfigFilePath = stringFlag(cmd, "config")
	if err := loadConfigFile(cfg); err != nil {
		return err
	}
	if err := applyRuleFlags(cmd, cfg); err != nil {
		return err
	}

	rs, err := loadRuleSet(cfg)
	if err != nil {
		return err
	}
	logger := log.NewLogger(cmd.ErrOrStderr(),
		log.LevelFor(boolFlag(cmd, "verbose"), boolFlag(cmd, "quiet")), boolFlag(cmd, "log-json"))
	warnUnknownDisables(logger, rs, cfg)
	rs = rs.Without(cfg.Disable...)

	if boolFlag(cmd, "json") {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rs.Rules())
	}
	return writeRuleTable(out, rs)
}

// writeRuleTable renders rs as a text table.
func writeRuleTable(w io.Writer, rs *rules.RuleSet) error {
	table := tablewriter.NewWriter(w)
	table.Header("Symbol", "Replacement", "Address Of", "Category", "Origin")

	for _, r := range rs.Rules() {
		addressOf := "denied"
		if r.AllowedAddressOf {
			addressOf = "allowed"
		}
		if err := table.Append([]string{
			r.Name,
			orDash(r.Replacement),
			addressOf,
			orDash(r.Category),
			r.Origin,
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%s rule(s) active\n", strconv.Itoa(rs.Len()))
	return err
}

// writeContextTable describes each finding context.
func writeContextTable(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.Header("Context", "Meaning", "Impact", "Recommendation")

	for _, c := range []model.Context{model.Assignment, model.AddressOf, model.Increment} {
		info := model.GetContextInfo(c)
		if err := table.Append([]string{c.String(), info.Title, info.Impact, info.Recommendation}); err != nil {
			return err
		}
	}
	return table.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
