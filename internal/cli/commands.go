package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storefront-backend/internal/app"
	"storefront-backend/internal/models"
	apierrors "storefront-backend/internal/pkg/errors"
	"storefront-backend/internal/services"
)

// NewReconcileCommand replays the purchase reconciler for one or more
// checkout sessions, e.g. after a missed webhook.
func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <session-id>...",
		Short: "Grant entitlements and record sales for paid checkout sessions",
		Long: `Reconcile paid checkout sessions. Safe to run any number of times.

Examples:
  storectl reconcile cs_test_a1b2c3
  storectl reconcile cs_1 cs_2 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				results := make([]*models.ReconcileResult, 0, len(args))
				for _, sessionID := range args {
					result, err := a.Reconciler.Reconcile(ctx, sessionID)
					if err != nil {
						return out.Fail(fmt.Sprintf("reconcile %s", sessionID), err)
					}
					results = append(results, result)
				}

				return out.Success(results, func(w io.Writer) {
					fmt.Fprintln(w, "SESSION\tUSER\tGRANTED\tALREADY OWNED\tSALES\tDUPLICATE")
					for _, r := range results {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\n",
							r.SessionID, r.UserID, joinOrDash(r.Granted), joinOrDash(r.AlreadyOwned), r.SalesWritten, r.Duplicate)
					}
				})
			})
		},
	}
}

func NewGamesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Moderate catalog submissions",
		Long: `Catalog moderation commands.

Examples:
  storectl games pending
  storectl games approve g_123
  storectl games reject g_123 --reason "missing screenshots"`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "pending",
		Short: "List games waiting for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				games, err := a.Catalog.ListPending(ctx)
				if err != nil {
					return out.Fail("list pending games", err)
				}
				return out.Success(games, func(w io.Writer) {
					printGames(w, games)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "approve <game-id>",
		Short: "Publish a game in the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				game, err := a.Catalog.Approve(ctx, args[0])
				if err != nil {
					return out.Fail("approve game", err)
				}
				return out.Success(game, func(w io.Writer) {
					printGames(w, []*models.Game{game})
				})
			})
		},
	})

	var reason string
	reject := &cobra.Command{
		Use:   "reject <game-id>",
		Short: "Reject a submission with a reason shown to the developer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				game, err := a.Catalog.Reject(ctx, args[0], reason)
				if err != nil {
					return out.Fail("reject game", err)
				}
				return out.Success(game, func(w io.Writer) {
					printGames(w, []*models.Game{game})
				})
			})
		},
	}
	reject.Flags().StringVarP(&reason, "reason", "r", "", "rejection reason (required)")
	_ = reject.MarkFlagRequired("reason")
	cmd.AddCommand(reject)

	return cmd
}

func NewUsersCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set-role <user-id> <user|dev|admin>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				user, err := a.Users.SetRole(ctx, args[0], models.Role(args[1]))
				if err != nil {
					return out.Fail("set role", err)
				}
				return out.Success(user, func(w io.Writer) {
					fmt.Fprintln(w, "USER\tROLE\tUPDATED")
					fmt.Fprintf(w, "%s\t%s\t%s\n", user.ID, user.Role, user.UpdatedAt.Format(time.RFC3339))
				})
			})
		},
	})

	return cmd
}

// LibraryGrant is the outcome of a manual grant.
type LibraryGrant struct {
	UserID          string  `json:"userId"`
	GameID          string  `json:"gameId"`
	PriceAtPurchase float64 `json:"priceAtPurchase"`
	Created         bool    `json:"created"`
}

func NewLibraryCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect and adjust user libraries",
		Long: `Library commands.

Examples:
  storectl library list 0xabc
  storectl library grant 0xabc g_123
  storectl library grant 0xabc g_123 --price 4.99`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <user-id>",
		Short: "List the games a user owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				entries, err := a.Entitlements.Library(ctx, services.NormalizeAddress(args[0]))
				if err != nil {
					return out.Fail("list library", err)
				}
				return out.Success(entries, func(w io.Writer) {
					fmt.Fprintln(w, "GAME\tPRICE\tSESSION\tPURCHASED")
					for _, e := range entries {
						session := e.SessionID
						if session == "" {
							session = "-"
						}
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
							e.GameID, models.FormatCurrency(e.PriceAtPurchase), session, e.PurchasedAt.Format(time.RFC3339))
					}
				})
			})
		},
	})

	var price float64
	grant := &cobra.Command{
		Use:   "grant <user-id> <game-id>",
		Short: "Add a game to a user's library without a payment",
		Long: `Grant a game outside checkout, e.g. a press copy or a support refund.
A game the user already owns is left untouched.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				userID, gameID := services.NormalizeAddress(args[0]), args[1]
				if _, err := a.Store.GetGame(ctx, gameID); err != nil {
					if errors.Is(err, services.ErrDocumentNotFound) {
						return out.Fail("grant game", apierrors.NewNotFoundError("Game"))
					}
					return out.Fail("grant game", apierrors.ErrStoreUnavailable.Wrap(err))
				}

				created, err := a.Entitlements.GrantEntitlement(ctx, userID, gameID, price)
				if err != nil {
					return out.Fail("grant game", err)
				}

				result := &LibraryGrant{UserID: userID, GameID: gameID, PriceAtPurchase: price, Created: created}
				return out.Success(result, func(w io.Writer) {
					fmt.Fprintln(w, "USER\tGAME\tPRICE\tCREATED")
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", result.UserID, result.GameID, models.FormatCurrency(result.PriceAtPurchase), result.Created)
				})
			})
		},
	}
	grant.Flags().Float64Var(&price, "price", 0, "price recorded on the library entry")
	cmd.AddCommand(grant)

	return cmd
}

func NewSalesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sales",
		Short: "Read the sales ledger",
	}

	var limit int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent sales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				sales, err := a.Admin.ListSales(ctx, limit)
				if err != nil {
					return out.Fail("list sales", err)
				}
				return out.Success(sales, func(w io.Writer) {
					var total float64
					fmt.Fprintln(w, "SALE\tGAME\tUSER\tPRICE\tAT")
					for _, s := range sales {
						total += s.PriceAtPurchase
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
							s.ID, s.GameID, s.UserID, models.FormatCurrency(s.PriceAtPurchase), s.CreatedAt.Format(time.RFC3339))
					}
					fmt.Fprintf(w, "\t\tTOTAL\t%s\t\n", models.FormatCurrency(total))
				})
			})
		},
	}
	list.Flags().Int64VarP(&limit, "limit", "n", 50, "maximum number of sales")
	cmd.AddCommand(list)

	return cmd
}

func NewDiagnosticsCommand(opts *RootOptions) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "denied",
		Short: "List recent permission-denied writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				denied, err := a.Diagnostics.List(ctx, limit)
				if err != nil {
					return out.Fail("list diagnostics", err)
				}
				return out.Success(denied, func(w io.Writer) {
					fmt.Fprintln(w, "AT\tOPERATION\tPATH\tUSER")
					for _, d := range denied {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.At.Format(time.RFC3339), d.Operation, d.Path, d.UserID)
					}
				})
			})
		},
	}
	cmd.Flags().Int64VarP(&limit, "limit", "n", 50, "maximum number of entries")

	return cmd
}

func printGames(w io.Writer, games []*models.Game) {
	fmt.Fprintln(w, "ID\tTITLE\tPRICE\tSTATUS\tDEVELOPER")
	for _, g := range games {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", g.ID, g.Title, models.FormatCurrency(g.Price), g.Status, g.DeveloperID)
	}
}

func joinOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ",")
}
