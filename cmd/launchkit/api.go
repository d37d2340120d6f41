package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"launchkit/api/internal/availability"
	"launchkit/api/internal/client"
	"launchkit/api/internal/config"
	"launchkit/api/internal/optimistic"
	"launchkit/api/internal/util"
)

func auditCmd() *cobra.Command {
	var filter client.AuditFilter
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the audit log (platform admins)",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent audit entries, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := apiClient(true)
			if err != nil {
				return err
			}
			entries, err := c.ListAuditLogs(cmd.Context(), filter)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tACTION\tACTOR\tTARGET\tIP")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s:%s\t%s\n",
					e.CreatedAt.Format(time.RFC3339), e.Action, orDash(e.ActorID),
					e.TargetEntityType, e.TargetEntityID, orDash(e.IPAddress))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&filter.ActorID, "actor", "", "filter by actor user id")
	list.Flags().StringVar(&filter.Action, "action", "", "filter by action, e.g. site.delete")
	list.Flags().StringVar(&filter.TargetType, "target-type", "", "filter by target entity type")
	list.Flags().StringVar(&filter.TargetID, "target-id", "", "filter by target entity id")
	list.Flags().IntVar(&filter.Limit, "limit", 50, "maximum entries")
	cmd.AddCommand(list)
	return cmd
}

func sitesCmd() *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "List, create and delete sites in a workspace",
	}
	cmd.PersistentFlags().StringVar(&workspaceID, "workspace", "", "workspace id")
	_ = cmd.MarkPersistentFlagRequired("workspace")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the workspace's sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := apiClient(true)
			if err != nil {
				return err
			}
			sites, err := c.ListSites(cmd.Context(), workspaceID)
			if err != nil {
				return err
			}
			return printSites(cmd.OutOrStdout(), sites)
		},
	})

	var name, sub, description string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := siteManager(cmd.Context(), workspaceID)
			if err != nil {
				return err
			}
			form := url.Values{
				"workspace_id": {workspaceID},
				"name":         {name},
				"subdomain":    {sub},
				"description":  {description},
			}
			if err := manager.HandleCreate(cmd.Context(), form, client.Site{WorkspaceID: workspaceID, Name: name, Subdomain: sub}); err != nil {
				return err
			}
			return printSites(cmd.OutOrStdout(), manager.Items())
		},
	}
	create.Flags().StringVar(&name, "name", "", "site name")
	create.Flags().StringVar(&sub, "subdomain", "", "site subdomain")
	create.Flags().StringVar(&description, "description", "", "site description")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete SITE_ID",
		Short: "Delete a site and everything under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !util.IsUUID(args[0]) {
				return fmt.Errorf("%q is not a site id", args[0])
			}
			manager, err := siteManager(cmd.Context(), workspaceID)
			if err != nil {
				return err
			}
			if err := manager.HandleDelete(cmd.Context(), url.Values{"id": {args[0]}, "site_id": {args[0]}}); err != nil {
				return err
			}
			return printSites(cmd.OutOrStdout(), manager.Items())
		},
	})
	return cmd
}

// siteManager loads the workspace's sites into an optimistic list whose
// mutations go through the site actions.
func siteManager(ctx context.Context, workspaceID string) (*optimistic.Manager[client.Site], error) {
	c, err := apiClient(true)
	if err != nil {
		return nil, err
	}
	initial, err := c.ListSites(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return optimistic.NewManager(initial,
		func(s client.Site) string { return s.ID },
		func(s client.Site, id string) client.Site { s.ID = id; return s },
		optimistic.Actions[client.Site]{
			Create: func(ctx context.Context, form url.Values) error {
				_, err := c.Action(ctx, "create-site", form)
				return err
			},
			Delete: func(ctx context.Context, form url.Values) error {
				_, err := c.Action(ctx, "delete-site", form)
				return err
			},
			Refresh: func(ctx context.Context) ([]client.Site, error) {
				return c.ListSites(ctx, workspaceID)
			},
		},
	), nil
}

func printSites(w io.Writer, sites []client.Site) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSUBDOMAIN\tCUSTOM DOMAIN")
	for _, s := range sites {
		domain := "-"
		if s.CustomDomain != nil {
			domain = *s.CustomDomain
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Subdomain, domain)
	}
	return tw.Flush()
}

func subdomainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subdomain",
		Short: "Subdomain helpers",
	}
	var siteID, initial string
	var debounce time.Duration
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Type candidate subdomains line by line and see live availability",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := apiClient(true)
			if err != nil {
				return err
			}
			if debounce <= 0 {
				if cfg, err := config.Load(); err == nil {
					debounce = cfg.SubdomainDebounce
				}
			}

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			checker := availability.NewChecker(cmd.Context(),
				func(ctx context.Context, value string) (bool, error) {
					return c.CheckSubdomain(ctx, value, siteID)
				},
				availability.Options{
					Debounce: debounce,
					Initial:  initial,
					OnChange: func(status availability.Status, value string) {
						mu.Lock()
						defer mu.Unlock()
						fmt.Fprintf(out, "%-12s %s\n", status, value)
					},
				},
			)
			defer checker.Reset()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				checker.Input(strings.TrimSpace(scanner.Text()))
			}
			if err := scanner.Err(); err != nil {
				return err
			}
			// Let the last scheduled check land before exiting.
			time.Sleep(debounce + 2*time.Second)
			return nil
		},
	}
	watch.Flags().StringVar(&siteID, "site", "", "site being edited; its own subdomain counts as available")
	watch.Flags().StringVar(&initial, "initial", "", "persisted subdomain; typing it back is not checked")
	watch.Flags().DurationVar(&debounce, "debounce", 0, "delay before checking (defaults to subdomain_debounce)")
	cmd.AddCommand(watch)
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
