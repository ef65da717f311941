package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/MrEthical07/goVolunteer/guard"
	"github.com/spf13/cobra"
)

func newNavigateCommand(o *rootOptions) *cobra.Command {
	var (
		route  string
		params map[string]string
	)

	cmd := &cobra.Command{
		Use:   "navigate [path...]",
		Short: "Check whether the current session may open the given pages",
		Long: `Run the navigation guard for each path (or for --route with --param values)
and report where the client would end up. The stored session is restored
first, exactly like a fresh page load.`,
		Example: `  volunteerhub navigate /dashboard /announcement/42
  volunteerhub navigate --route EditAnnouncement --param id=42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if route == "" && len(args) == 0 {
				return fmt.Errorf("give at least one path or --route")
			}
			app := o.app
			app.Bootstrap(cmd.Context())

			out := cmd.OutOrStdout()
			if route != "" {
				printDecision(out, app.Guard.NavigateTo(cmd.Context(), route, params))
			}
			for _, p := range args {
				printDecision(out, app.Guard.Navigate(cmd.Context(), p))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&route, "route", "", "route name to navigate to")
	cmd.Flags().StringToStringVar(&params, "param", nil, "route parameter, key=value (repeatable)")
	return cmd
}

func printDecision(w io.Writer, d guard.Decision) {
	if d.Allowed {
		fmt.Fprintf(w, "allowed  %s (%s)\n", d.Path, d.Route.Name)
		return
	}
	target := d.Route.Name
	if target == "" {
		target = "unknown route"
	}
	fmt.Fprintf(w, "denied   %s (%s) -> %s: %s\n", d.Path, target, d.Redirect.Path, d.Reason)
}

func newRoutesCommand(o *rootOptions) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the declared pages and their access requirements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := o.app
			if check {
				app.Bootstrap(cmd.Context())
			}
			snap := app.Store.Snapshot()
			landing := app.Routes.Landing().Name

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			header := "NAME\tPATH\tREQUIRES"
			if check {
				header += "\tACCESS"
			}
			fmt.Fprintln(tw, header)
			for _, r := range app.Routes.Routes() {
				name := r.Name
				if name == landing {
					name += "*"
				}
				line := fmt.Sprintf("%s\t%s\t%s", name, r.Path, r.Requires)
				if check {
					access := "yes"
					if reason := guard.Check(guard.Transition{Route: r, Session: snap}); reason != guard.ReasonNone {
						access = "no (" + reason.String() + ")"
					}
					line += "\t" + access
				}
				fmt.Fprintln(tw, line)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "restore the session and show which routes it may open")
	return cmd
}
