package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lingoloop/lingoloop/internal/llm"
	"github.com/lingoloop/lingoloop/internal/store"
	"github.com/lingoloop/lingoloop/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect recorded LLM requests and their cost",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		failedOnly, _ := cmd.Flags().GetBool("failed")

		s, err := openEventStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), store.QueryOpts{Limit: limit, Purpose: purpose})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		if failedOnly {
			events = slices.DeleteFunc(events, func(e store.LLMEvent) bool { return e.Success })
		}
		if len(events) == 0 {
			fmt.Println("No LLM events found.")
			return nil
		}

		rows := make([][]string, 0, len(events))
		for _, e := range events {
			status := ui.Good.Render("ok")
			if !e.Success {
				status = ui.Bad.Render(truncate(e.ErrorMessage, 24))
			}
			rows = append(rows, []string{
				strconv.FormatInt(e.ID, 10),
				e.Timestamp.Local().Format(timeLayout),
				e.Purpose,
				truncate(e.Model, 28),
				fmt.Sprintf("%d/%d", e.InputTokens, e.OutputTokens),
				(time.Duration(e.LatencyMs) * time.Millisecond).String(),
				eventCost(e.Model, e.InputTokens, e.OutputTokens),
				status,
			})
		}
		fmt.Println(ui.Table([]string{"ID", "Time", "Purpose", "Model", "Tokens in/out", "Latency", "Cost", "Status"}, rows))
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View the full request and response of an LLM event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, err := openEventStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		fmt.Println(ui.Field("ID", strconv.FormatInt(e.ID, 10)))
		fmt.Println(ui.Field("Time", e.Timestamp.Local().Format(timeLayout)))
		fmt.Println(ui.Field("Provider", e.Provider))
		fmt.Println(ui.Field("Model", e.Model))
		fmt.Println(ui.Field("Purpose", e.Purpose))
		fmt.Println(ui.Field("Tokens", fmt.Sprintf("%d in / %d out", e.InputTokens, e.OutputTokens)))
		fmt.Println(ui.Field("Cost", eventCost(e.Model, e.InputTokens, e.OutputTokens)))
		fmt.Println(ui.Field("Latency", (time.Duration(e.LatencyMs) * time.Millisecond).String()))
		if e.Success {
			fmt.Println(ui.Field("Status", ui.Good.Render("ok")))
		} else {
			fmt.Println(ui.Field("Status", ui.Bad.Render(e.ErrorMessage)))
		}

		printBody("REQUEST", e.RequestBody)
		printBody("RESPONSE", e.ResponseBody)
		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated token usage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openEventStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		stats, err := s.EventRepo().LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		if len(stats) == 0 {
			fmt.Println("No LLM usage recorded yet.")
			return nil
		}

		var total store.PurposeUsage
		rows := make([][]string, 0, len(stats)+1)
		for _, st := range stats {
			rows = append(rows, []string{
				st.Purpose,
				strconv.Itoa(st.Calls),
				failureRate(st.Failures, st.Calls),
				strconv.Itoa(st.InputTokens),
				strconv.Itoa(st.OutputTokens),
				(time.Duration(st.AvgLatencyMs) * time.Millisecond).String(),
			})
			total.Calls += st.Calls
			total.Failures += st.Failures
			total.InputTokens += st.InputTokens
			total.OutputTokens += st.OutputTokens
		}
		rows = append(rows, []string{"TOTAL", strconv.Itoa(total.Calls), failureRate(total.Failures, total.Calls),
			strconv.Itoa(total.InputTokens), strconv.Itoa(total.OutputTokens), ""})

		fmt.Println(ui.Title.Render("Usage by purpose"))
		fmt.Println(ui.Table([]string{"Purpose", "Calls", "Failed", "Input", "Output", "Avg latency"}, rows))

		modelUsage, err := s.EventRepo().LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		if len(modelUsage) == 0 {
			return nil
		}

		var totalCost float64
		var unknownModels []string
		costRows := make([][]string, 0, len(modelUsage)+1)
		for _, mu := range modelUsage {
			cost := "?"
			if mc := llm.LookupCost(mu.Model); mc != nil {
				c := mc.Cost(mu.InputTokens, mu.OutputTokens)
				totalCost += c
				cost = formatCost(c)
			} else {
				unknownModels = append(unknownModels, mu.Model)
			}
			costRows = append(costRows, []string{
				truncate(mu.Model, 32),
				strconv.Itoa(mu.Calls),
				strconv.Itoa(mu.InputTokens),
				strconv.Itoa(mu.OutputTokens),
				cost,
			})
		}
		label := "TOTAL"
		if len(unknownModels) > 0 {
			label = "TOTAL (partial)"
		}
		costRows = append(costRows, []string{label, "", "", "", formatCost(totalCost)})

		fmt.Println(ui.Title.Render("Estimated cost (USD)"))
		fmt.Println(ui.Table([]string{"Model", "Calls", "Input", "Output", "Cost"}, costRows))
		if len(unknownModels) > 0 {
			fmt.Println(ui.Hint.Render("Pricing unavailable for: " + strings.Join(unknownModels, ", ")))
		}
		return nil
	},
}

// openEventStore opens the database without requiring the rest of the
// server configuration to be valid.
func openEventStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openStore(cmd, cfg)
}

// printBody prints a stored body, indenting it when it is JSON.
func printBody(title, body string) {
	fmt.Println()
	fmt.Println(ui.Title.Render(title))
	if body == "" {
		fmt.Println(ui.Hint.Render("(not captured)"))
		return
	}
	var buf bytes.Buffer
	if json.Indent(&buf, []byte(body), "", "  ") == nil {
		body = buf.String()
	}
	fmt.Println(body)
}

func eventCost(model string, in, out int) string {
	mc := llm.LookupCost(model)
	if mc == nil {
		return "?"
	}
	return formatCost(mc.Cost(in, out))
}

func failureRate(failures, calls int) string {
	if calls == 0 || failures == 0 {
		return "0"
	}
	return fmt.Sprintf("%d (%.0f%%)", failures, 100*float64(failures)/float64(calls))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().Bool("failed", false, "Only show failed requests")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose ("+
		strings.Join([]string{llm.PurposeChat, llm.PurposeCurriculum, llm.PurposeJudge}, ", ")+")")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
