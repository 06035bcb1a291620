package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-coach-bot/internal/config"
	"github.com/tbourn/go-coach-bot/internal/domain"
	"github.com/tbourn/go-coach-bot/internal/services"
)

const timeLayout = "2006-01-02 15:04 MST"

// withEntitlements opens the configured store for one operator command.
func withEntitlements(cmd *cobra.Command, cfg config.Config, fn func(*services.EntitlementService) error) error {
	st, closeStore, err := openStore(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()
	return fn(services.NewEntitlementService(st, cfg.WindowDays))
}

func printRecord(cmd *cobra.Command, rec domain.EntitlementRecord, loc *time.Location) {
	fmt.Fprintf(cmd.OutOrStdout(), "user=%s order=%s expires=%s (%d)\n",
		rec.Principal, rec.OrderReference, rec.ExpiresAt.In(loc).Format(timeLayout), rec.ExpiresAtMillis())
}

func newRegisterCmd(cfg func() config.Config) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "register <user-id> <order-id>",
		Short: "Register or renew a subscription",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return errors.New("--days must be >= 0")
			}
			c := cfg()
			return withEntitlements(cmd, c, func(svc *services.EntitlementService) error {
				rec, err := svc.Register(cmd.Context(), args[0], args[1], days)
				if err != nil {
					return err
				}
				printRecord(cmd, rec, c.Location)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 0, "subscription length in days (0 uses ENTITLEMENT_WINDOW_DAYS)")
	return cmd
}

func newStatusCmd(cfg func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status <user-id>",
		Short: "Show the current subscription of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			return withEntitlements(cmd, c, func(svc *services.EntitlementService) error {
				rec, err := svc.Lookup(cmd.Context(), args[0])
				if errors.Is(err, services.ErrNotEntitled) {
					fmt.Fprintf(cmd.OutOrStdout(), "user=%s not entitled\n", args[0])
					return nil
				}
				if err != nil {
					return err
				}
				printRecord(cmd, rec, c.Location)
				return nil
			})
		},
	}
}

func newClassifyCmd(cfg func() config.Config) *cobra.Command {
	var image bool
	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Print the intent a message would be classified as",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := domain.InboundEvent{Kind: domain.KindText}
			if len(args) == 1 {
				ev.Text = args[0]
			}
			if image {
				ev = domain.InboundEvent{Kind: domain.KindImage, MessageID: "cli"}
			}
			c := newClassifier(cfg())
			in := c.Classify(ev)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "intent=%s", in)
			if code, ok := c.OrderCode(ev); ok {
				fmt.Fprintf(out, " order=%s", code)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&image, "image", false, "classify an image message instead of text")
	return cmd
}
