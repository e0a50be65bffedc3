package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/99minutos/orderdesk/internal/client/authz"
	"github.com/99minutos/orderdesk/internal/core/domain"
)

func (rt *runtime) ordersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List and place your orders",
	}
	cmd.AddCommand(rt.ordersListCommand(), rt.ordersCreateCommand())
	return cmd
}

func (rt *runtime) ordersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.enter(authz.OrdersView.Path); err != nil {
				return err
			}
			orders, err := rt.app.Orders(cmd.Context())
			if err != nil {
				return err
			}
			if rt.flags.jsonOutput {
				if orders == nil {
					orders = []domain.Order{}
				}
				return rt.printJSON(orders)
			}

			w := rt.table()
			fmt.Fprintln(w, "ID\tITEM\tADDRESS\tCREATED")
			for _, o := range orders {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", o.ID, o.Item, o.Address, o.CreatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func (rt *runtime) ordersCreateCommand() *cobra.Command {
	var in domain.CreateOrderInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Place an order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.enter(authz.OrdersView.Path); err != nil {
				return err
			}
			order, err := rt.app.CreateOrder(cmd.Context(), in)
			if err != nil {
				return err
			}
			if rt.flags.jsonOutput {
				return rt.printJSON(order)
			}
			fmt.Fprintf(rt.stdout(), "Created order %d: %s -> %s\n", order.ID, order.Item, order.Address)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Address, "address", "", "delivery address")
	cmd.Flags().StringVar(&in.Item, "item", "", "item to order")
	return cmd
}
