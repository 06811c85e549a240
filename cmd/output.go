package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	aireg_protocol "aireg-cli/solana"

	"github.com/dustin/go-humanize"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

func jsonOutput() bool { return viper.GetBool(jsonOutputKey) }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func field(w io.Writer, label, value string) {
	fmt.Fprintln(w, labelStyle.Render(label), value)
}

func renderStatus(s aireg_protocol.Status) string {
	if style, ok := statusStyles[s.String()]; ok {
		return style.Render(s.String())
	}
	return s.String()
}

// formatTokenAmount renders base units as tokens with thousands separators,
// e.g. 1234500000000 -> "1,234.5".
func formatTokenAmount(units uint64) string {
	text := aireg_protocol.FormatTokens(units)
	whole, frac, hasFrac := strings.Cut(text, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return text
	}
	out := humanize.Comma(n)
	if hasFrac {
		out += "." + frac
	}
	return out
}

func formatSOL(lamports uint64) string {
	return humanize.FormatFloat("#,###.#########", float64(lamports)/float64(solana.LAMPORTS_PER_SOL))
}

func printAgent(w io.Writer, e *aireg_protocol.AgentEntry) {
	field(w, "Agent ID", e.AgentID)
	field(w, "Name", e.Name)
	if e.Description != "" {
		field(w, "Description", e.Description)
	}
	field(w, "Owner", e.Owner.String())
	field(w, "Status", renderStatus(e.Status))
	if e.MetadataURI != nil {
		field(w, "Metadata", *e.MetadataURI)
	}
	if len(e.Tags) > 0 {
		field(w, "Tags", strings.Join(e.Tags, ", "))
	}
	for _, s := range e.Skills {
		skill := fmt.Sprintf("%s (%s)", s.Name, s.ID)
		if len(s.Tags) > 0 {
			skill += " [" + strings.Join(s.Tags, ", ") + "]"
		}
		field(w, "Skill", skill)
	}
	field(w, "Created", humanize.Time(e.Created()))
	field(w, "Updated", humanize.Time(e.Updated()))
}

func printMcpServer(w io.Writer, e *aireg_protocol.McpServerEntry) {
	field(w, "Server ID", e.ServerID)
	field(w, "Name", e.Name)
	field(w, "Version", e.Version)
	field(w, "Endpoint", e.EndpointURL)
	field(w, "Owner", e.Owner.String())
	field(w, "Status", renderStatus(e.Status))
	if e.MetadataURI != nil {
		field(w, "Metadata", *e.MetadataURI)
	}
	if len(e.Tags) > 0 {
		field(w, "Tags", strings.Join(e.Tags, ", "))
	}
	field(w, "Created", humanize.Time(e.Created()))
	field(w, "Updated", humanize.Time(e.Updated()))
}

func printHistory(w io.Writer, events []aireg_protocol.HistoryEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, promptStyle.Render("No transactions found."))
		return
	}
	for _, ev := range events {
		when := "unknown time"
		if ev.Timestamp != nil {
			when = humanize.Time(*ev.Timestamp)
		}
		mark := successStyle.Render("ok")
		if ev.Failed {
			mark = warningStyle.Render("failed")
		}
		ops := strings.Join(ev.Operations, "; ")
		if ops == "" {
			ops = "-"
		}
		fmt.Fprintf(w, "%s  slot %s  %s  %s\n  %s\n", mark, humanize.Comma(int64(ev.Slot)), when, ops, ev.Signature)
	}
}

func printResult(w io.Writer, what string, res *aireg_protocol.Result) error {
	if jsonOutput() {
		return printJSON(w, map[string]any{
			"signature": res.Signature.String(),
			"attempts":  res.Attempts,
		})
	}
	fmt.Fprintln(w, successStyle.Render("✅ "+what))
	field(w, "Signature", res.Signature.String())
	if res.Attempts > 1 {
		field(w, "Attempts", strconv.Itoa(res.Attempts))
	}
	return nil
}
