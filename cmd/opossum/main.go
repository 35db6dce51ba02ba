package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/majortom/opossum/pkg/opossum"
	"github.com/majortom/opossum/recovery"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "opossum",
	Short: "Operate a filesystem-backed append-only event store",
}

func init() {
	rootCmd.PersistentFlags().String("root", ".", "Root directory under which the store lives")
	rootCmd.PersistentFlags().String("store", "", "Store name (required)")
	rootCmd.MarkPersistentFlagRequired("store")

	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(readLastCmd)
	rootCmd.AddCommand(deleteStoreCmd)
	rootCmd.AddCommand(orphansCmd)

	appendCmd.Flags().String("type", "", "Event type (required)")
	appendCmd.Flags().String("payload", "{}", "JSON payload")
	appendCmd.Flags().StringSlice("tag", nil, "Tag as key=value, repeatable")
	appendCmd.Flags().Uint64("after", 0, "AppendCondition.After baseline position (0 = unset)")
	appendCmd.MarkFlagRequired("type")

	readCmd.Flags().StringSlice("type", nil, "Event type filter, repeatable (OR)")
	readCmd.Flags().StringSlice("tag", nil, "Tag filter as key=value, repeatable (AND)")
	readCmd.Flags().Uint64("from", 0, "Only positions strictly greater than this")
	readCmd.Flags().Bool("descending", false, "Return highest position first")

	readLastCmd.Flags().StringSlice("type", nil, "Event type filter, repeatable (OR)")
	readLastCmd.Flags().StringSlice("tag", nil, "Tag filter as key=value, repeatable (AND)")
}

func openStore(cmd *cobra.Command) (*opossum.Store, error) {
	root, _ := cmd.Flags().GetString("root")
	name, _ := cmd.Flags().GetString("store")
	cfg, err := opossum.NewStoreConfig(root, name)
	if err != nil {
		return nil, err
	}
	return opossum.NewStore(cfg)
}

func parseTags(raw []string) ([]opossum.Tag, error) {
	tags := make([]opossum.Tag, 0, len(raw))
	for _, r := range raw {
		parts := strings.SplitN(r, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("tag %q is not in key=value form", r)
		}
		tags = append(tags, opossum.NewTag(parts[0], parts[1]))
	}
	return tags, nil
}

var appendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append one event to the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		eventType, _ := cmd.Flags().GetString("type")
		payload, _ := cmd.Flags().GetString("payload")
		rawTags, _ := cmd.Flags().GetStringSlice("tag")
		after, _ := cmd.Flags().GetUint64("after")

		tags, err := parseTags(rawTags)
		if err != nil {
			return err
		}

		cond := opossum.AppendCondition{}
		if after > 0 {
			cond.After = &after
		}

		pos, err := store.Append(context.Background(), []opossum.NewEvent{
			opossum.NewNewEvent(eventType, []byte(payload), tags...),
		}, cond)
		if err != nil {
			return err
		}

		fmt.Printf("appended at position %d\n", pos)
		return nil
	},
}

func buildQuery(cmd *cobra.Command) (opossum.Query, error) {
	types, _ := cmd.Flags().GetStringSlice("type")
	rawTags, _ := cmd.Flags().GetStringSlice("tag")
	tags, err := parseTags(rawTags)
	if err != nil {
		return opossum.Query{}, err
	}
	if len(types) == 0 && len(tags) == 0 {
		return opossum.QueryAll(), nil
	}
	return opossum.NewQuery(tags, types...), nil
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read events matching a query",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		q, err := buildQuery(cmd)
		if err != nil {
			return err
		}
		from, _ := cmd.Flags().GetUint64("from")
		descending, _ := cmd.Flags().GetBool("descending")

		events, err := store.Read(context.Background(), q, opossum.ReadOptions{
			FromPosition: from,
			Descending:   descending,
		})
		if err != nil {
			return err
		}
		return printEvents(events)
	},
}

var readLastCmd = &cobra.Command{
	Use:   "read-last",
	Short: "Read the highest-positioned event matching a query",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		q, err := buildQuery(cmd)
		if err != nil {
			return err
		}
		ev, found, err := store.ReadLast(context.Background(), q)
		if err != nil {
			return err
		}
		if !found {
			fmt.Println("no matching event")
			return nil
		}
		return printEvents([]opossum.SequencedEvent{ev})
	},
}

var deleteStoreCmd = &cobra.Command{
	Use:   "delete-store",
	Short: "Irrecoverably delete the entire store directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		if err := store.DeleteStore(context.Background()); err != nil {
			return err
		}
		fmt.Println("store deleted")
		return nil
	},
}

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List event files written past the ledger's committed position",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("root")
		name, _ := cmd.Flags().GetString("store")
		orphans, err := recovery.ListOrphanFiles(root, name)
		if err != nil {
			return err
		}
		if len(orphans) == 0 {
			fmt.Println("no orphan files")
			return nil
		}
		for _, p := range orphans {
			fmt.Println(p)
		}
		return nil
	},
}

func printEvents(events []opossum.SequencedEvent) error {
	type row struct {
		Position uint64         `json:"position"`
		Type     string         `json:"type"`
		Payload  map[string]any `json:"payload"`
		Tags     []opossum.Tag  `json:"tags,omitempty"`
	}
	rows := make([]row, len(events))
	for i, ev := range events {
		var payload map[string]any
		_ = json.Unmarshal(ev.Payload, &payload)
		rows[i] = row{Position: ev.Position, Type: ev.Type, Payload: payload, Tags: ev.Tags}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
