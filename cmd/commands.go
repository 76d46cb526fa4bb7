package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/torznab-title-mapper/internal/catalog"
	"github.com/MimeLyc/torznab-title-mapper/internal/mapping"
	"github.com/MimeLyc/torznab-title-mapper/internal/service"
)

func newReconcileCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Fill in missing catalog ids from Sonarr and save the mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.loadConfig()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			catalogClient, err := catalog.New(cfg.Catalog.APIKey, cfg.Catalog.APIURL, catalog.WithTimeout(cfg.CatalogTimeout()))
			if err != nil {
				return err
			}

			rec := service.NewReconciler(store, mapping.NewTable(nil), catalogClient)
			return runReconcile(cmd.Context(), cmd.OutOrStdout(), rec)
		},
	}
}

type reloader interface {
	Reload(ctx context.Context, trigger string) (mapping.ReconcileRun, error)
}

func runReconcile(ctx context.Context, out io.Writer, rec reloader) error {
	run, err := rec.Reload(ctx, service.TriggerCLI)
	fmt.Fprintf(out, "Run %s: %d resolved, %d unresolved, persisted=%t\n",
		run.ID, run.Resolved, run.Unresolved, run.Persisted)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	return nil
}

func newMappingsCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mappings",
		Short: "List title mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mappings, err := cc.loadMappings(cmd.Context())
			if err != nil {
				return err
			}
			printMappings(cmd.OutOrStdout(), mappings)
			return nil
		},
	}
}

func newResolveCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <title>",
		Short: "Show the mapping a search title resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mappings, err := cc.loadMappings(cmd.Context())
			if err != nil {
				return err
			}
			return resolveTitle(cmd.OutOrStdout(), mapping.NewTable(mappings), args[0])
		},
	}
}

func (cc *commandContext) loadMappings(ctx context.Context) ([]mapping.Mapping, error) {
	cfg, err := cc.loadConfig()
	if err != nil {
		return nil, err
	}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	mappings, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load mappings: %w", err)
	}
	return mappings, nil
}

func printMappings(out io.Writer, mappings []mapping.Mapping) {
	if len(mappings) == 0 {
		fmt.Fprintln(out, "No mappings")
		return
	}

	headers := []string{"#", "Canonical title", "Source title", "Lang", "Aliases", "Catalog ID"}
	rows := make([][]string, 0, len(mappings))
	for i, m := range mappings {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			m.CanonicalTitle,
			m.SourceTitle,
			mapping.DetectLanguage(m.SourceTitle).String(),
			strings.Join(m.Aliases, ", "),
			catalogIDText(m),
		})
	}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}
	fmt.Fprintln(out, renderTable(out, headers, rows, aligns))
}

func resolveTitle(out io.Writer, resolver service.MappingResolver, title string) error {
	m, err := resolver.Resolve(title)
	if err != nil {
		if errors.Is(err, mapping.ErrNotFound) {
			return fmt.Errorf("no mapping for %q", title)
		}
		return err
	}

	fmt.Fprintf(out, "Canonical title: %s\n", m.CanonicalTitle)
	fmt.Fprintf(out, "Source title:    %s\n", m.SourceTitle)
	fmt.Fprintf(out, "Aliases:         %s\n", strings.Join(m.Aliases, ", "))
	fmt.Fprintf(out, "Catalog ID:      %s\n", catalogIDText(m))
	return nil
}

func catalogIDText(m mapping.Mapping) string {
	if !m.HasCatalogID() {
		return "-"
	}
	return strconv.FormatInt(*m.CatalogID, 10)
}
