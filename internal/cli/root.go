// Package cli implements orderctl, the seller's command line over the order API.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/client"
)

const defaultAPIURL = "http://localhost:8080"

// app is the state shared by every command of one invocation.
type app struct {
	v      *viper.Viper
	client *client.Client
	sess   *client.Session
}

// NewRootCommand builds orderctl. Flags fall back to ORDERCTL_API_URL,
// ORDERCTL_API_KEY and ORDERCTL_TIMEOUT.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "orderctl",
		Short: "Manage KicksideShop orders from the terminal",
		Long: `orderctl talks to the order API as a seller.

It lists orders, shows their process history and timeline, and moves
them through Pending, Paid, Shipped and Delivered, or cancels them.

Examples:
  orderctl list --status Paid
  orderctl add-process KS-1001 --status Shipped --courier "DHL Express" \
    --note "Handed over at the Nairobi hub"
  orderctl cancel KS-1001 --reason "Customer cancelled before dispatch"`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("api-url", defaultAPIURL, "order API base URL")
	flags.String("api-key", "", "seller API key")
	flags.Duration("timeout", 30*time.Second, "request timeout")
	flags.Bool("json", false, "print raw JSON")

	a.v.SetEnvPrefix("ORDERCTL")
	a.v.AutomaticEnv()
	_ = a.v.BindPFlag("api_url", flags.Lookup("api-url"))
	_ = a.v.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = a.v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = a.v.BindPFlag("json", flags.Lookup("json"))

	root.AddCommand(
		newListCommand(a),
		newShowCommand(a),
		newHistoryCommand(a),
		newTimelineCommand(a),
		newStatusesCommand(a),
		newAddProcessCommand(a),
		newSetStatusCommand(a),
		newCancelCommand(a),
	)
	return root
}

// Execute runs orderctl and prints failures the way a seller should read them.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

func (a *app) init() error {
	httpClient := &http.Client{Timeout: a.v.GetDuration("timeout")}
	a.client = client.NewClient(a.v.GetString("api_url"), httpClient, zap.NewNop())
	a.sess = client.NewSession(a.v.GetString("api_key"))
	return nil
}

func (a *app) jsonOutput() bool {
	return a.v.GetBool("json")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printError(w io.Writer, err error) {
	var verr *client.ValidationError
	var apiErr *client.APIError
	switch {
	case errors.As(err, &verr):
		fmt.Fprintln(w, "Error: please fix the following:")
		printFields(w, verr.Fields)
	case errors.As(err, &apiErr):
		fmt.Fprintf(w, "Error: %s\n", apiErr.Message)
		printFields(w, apiErr.Fields)
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

func printFields(w io.Writer, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, fields[k])
	}
}
