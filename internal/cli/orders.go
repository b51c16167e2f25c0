package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kicksideshop/orderapi/internal/api/dto"
	"github.com/kicksideshop/orderapi/internal/client"
	"github.com/kicksideshop/orderapi/internal/domain"
)

func newListCommand(a *app) *cobra.Command {
	var (
		status, search, from, to string
		limit, offset            int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := client.ListOptions{Search: search, Limit: limit, Offset: offset}
			if status != "" {
				opts.Status = domain.OrderStatus(status)
			}
			var err error
			if opts.From, err = parseDateFlag("from", from); err != nil {
				return err
			}
			if opts.To, err = parseDateFlag("to", to); err != nil {
				return err
			}

			data, err := a.client.ListOrders(cmd.Context(), a.sess, opts)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), data)
			}
			if len(data.Orders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No orders found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TRACKING\tSTATUS\tPRODUCT\tQTY\tTOTAL\tCUSTOMER\tCREATED")
			for _, o := range data.Orders {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					o.TrackingNumber, o.OrderStatus, o.ProductName, o.Quantity,
					o.FinalTotalPrice.StringFixed(2), o.Customer.FullNames, shortDate(o.CreatedAt))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only orders in this status")
	cmd.Flags().StringVar(&search, "search", "", "match tracking number, product or customer")
	cmd.Flags().StringVar(&from, "from", "", "created on or after (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "created on or before (YYYY-MM-DD or RFC3339)")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (server default 20)")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many orders")
	return cmd
}

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <order-id|tracking-number>",
		Short: "Show one order with its process log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := a.client.GetOrder(cmd.Context(), a.sess, args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), order)
			}
			printOrder(cmd.OutOrStdout(), order)
			return nil
		},
	}
}

func newHistoryCommand(a *app) *cobra.Command {
	var (
		search        string
		limit, offset int
	)
	cmd := &cobra.Command{
		Use:   "history <order-id|tracking-number>",
		Short: "Search an order's process history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.client.Processes(cmd.Context(), a.sess, args[0], search, limit, offset)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), page)
			}
			if len(page.OrderProcesses) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching process entries.")
				return nil
			}
			printProcesses(cmd.OutOrStdout(), page.OrderProcesses)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d entries\n", len(page.OrderProcesses), page.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive text to look for")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many entries")
	return cmd
}

func newTimelineCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <order-id|tracking-number>",
		Short: "Show the order's progress through the status flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tl, err := a.client.Timeline(cmd.Context(), a.sess, args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), tl)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status: %s (version %d)\n\n", tl.OrderStatus, tl.Version)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, s := range tl.Steps {
				mark := "[ ]"
				if s.Completed {
					mark = "[x]"
				}
				if s.Current {
					mark = "[>]"
				}
				reached := ""
				if s.ReachedAt != nil {
					reached = shortDate(*s.ReachedAt)
				}
				next := ""
				if s.Selectable {
					next = "selectable"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, s.Status, reached, next)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if tl.Cancellable {
				fmt.Fprintln(out, "\nThis order can still be cancelled.")
			}
			return nil
		},
	}
}

func newStatusesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "statuses",
		Short: "Show the status flow and allowed transitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.client.Statuses(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), data)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STATUS\tNEXT")
			for _, st := range data.StatusFlow {
				next := strings.Join(data.Allowed[st], ", ")
				if next == "" {
					next = "-"
				}
				fmt.Fprintf(w, "%s\t%s\n", st, next)
			}
			return w.Flush()
		},
	}
}

func printOrder(out io.Writer, o *dto.Order) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Order:\t%s\n", o.ID)
	fmt.Fprintf(w, "Tracking:\t%s\n", o.TrackingNumber)
	fmt.Fprintf(w, "Status:\t%s (version %d)\n", o.OrderStatus, o.Version)
	fmt.Fprintf(w, "Product:\t%s x%d\n", o.ProductName, o.Quantity)
	fmt.Fprintf(w, "Total:\t%s (unit %s, discount %s)\n",
		o.FinalTotalPrice.StringFixed(2), o.FinalUnitPrice.StringFixed(2), o.Discount.StringFixed(2))
	fmt.Fprintf(w, "Customer:\t%s\n", strings.TrimSpace(strings.Join([]string{o.Customer.FullNames, o.Customer.Phone, o.Customer.Email}, " ")))
	if o.Courier != nil {
		fmt.Fprintf(w, "Courier:\t%s %s\n", o.Courier.Name, o.Courier.TrackingNumber)
	}
	fmt.Fprintf(w, "Created:\t%s\n", shortDate(o.CreatedAt))
	_ = w.Flush()

	fmt.Fprintln(out)
	if len(o.OrderProcesses) == 0 {
		fmt.Fprintln(out, "No process entries.")
		return
	}
	printProcesses(out, o.OrderProcesses)
}

func printProcesses(out io.Writer, entries []dto.ProcessEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tDATE\tSTATUS\tPROCESS")
	for _, e := range entries {
		status := e.Status
		if status == "" {
			// entries written before the status tag existed
			if st, ok := e.ToDomain().EffectiveStatus(); ok {
				status = string(st)
			} else {
				status = "-"
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Sequence, shortDate(e.Date), status, e.Process)
	}
	_ = w.Flush()
}

func shortDate(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Local().Format("2006-01-02 15:04")
}

func parseDateFlag(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("--%s must be YYYY-MM-DD or RFC3339", name)
	}
	return &t, nil
}
