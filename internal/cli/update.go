package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kicksideshop/orderapi/internal/api/dto"
)

// courierFlags are shared by add-process and set-status.
type courierFlags struct {
	name     string
	tracking string
	eta      string
}

func (f *courierFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "courier", "", "courier name (required for Shipped)")
	cmd.Flags().StringVar(&f.tracking, "courier-tracking", "", "courier's tracking number")
	cmd.Flags().StringVar(&f.eta, "eta", "", "estimated delivery (YYYY-MM-DD or RFC3339)")
}

func (f *courierFlags) courier() (*dto.Courier, error) {
	if f.name == "" && f.tracking == "" && f.eta == "" {
		return nil, nil
	}
	c := &dto.Courier{Name: f.name, TrackingNumber: f.tracking}
	eta, err := parseDateFlag("eta", f.eta)
	if err != nil {
		return nil, err
	}
	c.EstimatedDelivery = eta
	return c, nil
}

// expectedVersion returns nil unless --expected-version was given.
func expectedVersion(cmd *cobra.Command, v int) *int {
	if !cmd.Flags().Changed("expected-version") {
		return nil
	}
	return &v
}

func newAddProcessCommand(a *app) *cobra.Command {
	var (
		status, note, date string
		images             []string
		version            int
		courier            courierFlags
	)
	cmd := &cobra.Command{
		Use:   "add-process <order-id|tracking-number>",
		Short: "Record a process entry and move the order to --status",
		Long: `Record a process entry and move the order to --status.

The note must be at least 20 characters. Shipping updates need --courier.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := courier.courier()
			if err != nil {
				return err
			}
			req := dto.AddProcessRequest{
				ID:              args[0],
				OrderStatus:     status,
				Process:         note,
				Courier:         c,
				Images:          images,
				ExpectedVersion: expectedVersion(cmd, version),
			}
			if date != "" {
				t, err := time.Parse(time.RFC3339, date)
				if err != nil {
					return fmt.Errorf("--date must be RFC3339")
				}
				req.Date = &t
			}

			order, err := a.client.AddOrderProcess(cmd.Context(), a.sess, req)
			if err != nil {
				return err
			}
			return a.printUpdated(cmd, order)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "target status")
	cmd.Flags().StringVar(&note, "note", "", "what happened (min 20 characters)")
	cmd.Flags().StringVar(&date, "date", "", "when it happened (RFC3339, default now)")
	cmd.Flags().StringSliceVar(&images, "image", nil, "image URL, repeatable")
	cmd.Flags().IntVar(&version, "expected-version", 0, "fail if the order changed since this version")
	courier.register(cmd)
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func newSetStatusCommand(a *app) *cobra.Command {
	var (
		version int
		courier courierFlags
	)
	cmd := &cobra.Command{
		Use:   "set-status <order-id|tracking-number> <status>",
		Short: "Change the status with a generated note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := courier.courier()
			if err != nil {
				return err
			}
			order, err := a.client.UpdateOrderStatus(cmd.Context(), a.sess, dto.UpdateStatusRequest{
				ID:              args[0],
				OrderStatus:     args[1],
				Courier:         c,
				ExpectedVersion: expectedVersion(cmd, version),
			})
			if err != nil {
				return err
			}
			return a.printUpdated(cmd, order)
		},
	}
	cmd.Flags().IntVar(&version, "expected-version", 0, "fail if the order changed since this version")
	courier.register(cmd)
	return cmd
}

func newCancelCommand(a *app) *cobra.Command {
	var (
		reason  string
		version int
	)
	cmd := &cobra.Command{
		Use:   "cancel <order-id|tracking-number>",
		Short: "Cancel an order that is not yet delivered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := a.client.CancelOrder(cmd.Context(), a.sess, dto.CancelRequest{
				ID:              args[0],
				Reason:          reason,
				ExpectedVersion: expectedVersion(cmd, version),
			})
			if err != nil {
				return err
			}
			return a.printUpdated(cmd, order)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the order is cancelled (min 20 characters)")
	cmd.Flags().IntVar(&version, "expected-version", 0, "fail if the order changed since this version")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (a *app) printUpdated(cmd *cobra.Command, order *dto.Order) error {
	if a.jsonOutput() {
		return printJSON(cmd.OutOrStdout(), order)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Order %s is now %s (version %d)\n", order.TrackingNumber, order.OrderStatus, order.Version)
	if n := len(order.OrderProcesses); n > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Latest entry: %s\n", order.OrderProcesses[n-1].Process)
	}
	return nil
}
