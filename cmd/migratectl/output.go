package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"

	"sprinkle-migrator/internal/domain"
	"sprinkle-migrator/internal/usecase"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printIDs は操作対象となった識別子を出力する。
func printIDs(w io.Writer, format, operation, label string, ids []domain.MigrationID) error {
	if format == "json" {
		migrations := make([]string, len(ids))
		for i, id := range ids {
			migrations[i] = id.String()
		}
		return writeJSON(w, map[string]interface{}{
			"operation":  operation,
			"migrations": migrations,
		})
	}

	if len(ids) == 0 {
		_, err := fmt.Fprintf(w, "Nothing to %s.\n", operation)
		return err
	}
	fmt.Fprintf(w, "%s %d migration(s):\n", label, len(ids))
	for _, id := range ids {
		fmt.Fprintf(w, "  %s\n", id)
	}
	return nil
}

// printPretend は実行されるはずのSQLをマイグレーションごとに出力する。
func printPretend(w io.Writer, format string, results []usecase.PretendResult) error {
	if format == "json" {
		type pretendJSON struct {
			Migration  string   `json:"migration"`
			Statements []string `json:"statements"`
		}
		out := make([]pretendJSON, len(results))
		for i, r := range results {
			out[i] = pretendJSON{Migration: r.Migration.String(), Statements: r.Statements}
			if out[i].Statements == nil {
				out[i].Statements = []string{}
			}
		}
		return writeJSON(w, out)
	}

	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "Nothing to run.")
		return err
	}
	for _, r := range results {
		fmt.Fprintf(w, "> %s\n", r.Migration)
		if len(r.Statements) == 0 {
			fmt.Fprintln(w, "  (no statements)")
		}
		for _, stmt := range r.Statements {
			fmt.Fprintf(w, "  %s;\n", stmt)
		}
	}
	return nil
}

// printTables はテーブル名の一覧を出力する。
func printTables(w io.Writer, format, label string, tables []string) error {
	if format == "json" {
		if tables == nil {
			tables = []string{}
		}
		return writeJSON(w, map[string]interface{}{"tables": tables})
	}

	if len(tables) == 0 {
		_, err := fmt.Fprintln(w, "No tables found.")
		return err
	}
	fmt.Fprintf(w, "%s %d table(s):\n", label, len(tables))
	for _, t := range tables {
		fmt.Fprintf(w, "  %s\n", t)
	}
	return nil
}

var stateColors = map[domain.MigrationState]*color.Color{
	domain.MigrationStateInstalled: color.New(color.FgGreen),
	domain.MigrationStatePending:   color.New(color.FgYellow),
	domain.MigrationStateStale:     color.New(color.FgRed),
}

func colorState(state domain.MigrationState) string {
	if c, ok := stateColors[state]; ok {
		return c.Sprint(state)
	}
	return string(state)
}

// printStatus はステータスをテーブル形式で出力する。状態列は端末出力時のみ色付けされる。
func printStatus(w io.Writer, format string, statuses []domain.MigrationStatus) error {
	if format == "json" {
		type statusJSON struct {
			Migration string `json:"migration"`
			Sprinkle  string `json:"sprinkle,omitempty"`
			Batch     int    `json:"batch,omitempty"`
			State     string `json:"state"`
		}
		out := make([]statusJSON, len(statuses))
		for i, s := range statuses {
			out[i] = statusJSON{Migration: s.Migration.String(), Sprinkle: s.Sprinkle, Batch: s.Batch, State: string(s.State)}
		}
		return writeJSON(w, out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "MIGRATION\tSPRINKLE\tBATCH\tSTATE")
	fmt.Fprintln(tw, "---------\t--------\t-----\t-----")

	for _, s := range statuses {
		sprinkle := s.Sprinkle
		if sprinkle == "" {
			sprinkle = "-"
		}
		batch := "-"
		if s.Batch > 0 {
			batch = strconv.Itoa(s.Batch)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Migration, sprinkle, batch, colorState(s.State))
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}
