package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-tvbridge/internal/auth"
	"github.com/nerrad567/gray-logic-tvbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tvbridge/internal/remote"
)

// errUnreachable is returned when the control channel cannot be opened.
var errUnreachable = errors.New("TV is not reachable (is it on and paired?)")

func newPairCmd(configPath *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Pair with the TV, reading the PIN from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			pins := remote.NewPromptPinProvider(cmd.InOrStdin(), cmd.OutOrStdout())
			r, err := a.newRemote(pins)
			if err != nil {
				return err
			}
			defer r.Close() //nolint:errcheck // One-shot command

			if force {
				// Drop the stored token so the handshake runs again
				if err := remote.NewSQLiteTokenStore(a.db).DeleteToken(cmd.Context(), a.cfg.Device.Key); err != nil {
					return fmt.Errorf("deleting stored token: %w", err)
				}
				r.Forget()
			}
			ok, err := r.Open(cmd.Context())
			if err != nil {
				return fmt.Errorf("pairing: %w", err)
			}
			out := cmd.OutOrStdout()
			justPaired := r.Status().Pairing == remote.PairingPaired.String()
			switch {
			case justPaired:
				fmt.Fprintln(out, "Paired. The token is stored in the database.")
				fmt.Fprintf(out, "token: %s\n", r.Token())
				if !ok {
					fmt.Fprintln(out, "The TV was switched on only to pair and is off again.")
				}
			case ok:
				fmt.Fprintln(out, "Already paired and connected. Use --force to pair again.")
			default:
				return errUnreachable
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "discard the stored token and pair again")
	return cmd
}

func newSendCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "send KEY...",
		Short:   "Send one or more remote keys, e.g. KEY_VOLUP",
		Example: "  tvbridge send KEY_HOME KEY_DOWN KEY_ENTER",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOpenRemote(cmd, *configPath, func(ctx context.Context, r *remote.Remote) error {
				for _, key := range args {
					key = strings.ToUpper(key)
					if !r.Control(ctx, key) {
						return fmt.Errorf("sending %s failed", key)
					}
				}
				return nil
			})
		},
	}
}

func newTextCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "text TEXT",
		Short: "Type text into the focused field on the TV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOpenRemote(cmd, *configPath, func(ctx context.Context, r *remote.Remote) error {
				if !r.InputText(ctx, args[0]) {
					return errors.New("text input failed")
				}
				return nil
			})
		},
	}
}

// withOpenRemote opens the control channel with the stored token, runs fn
// and closes the channel. It never pairs.
func withOpenRemote(cmd *cobra.Command, configPath string, fn func(context.Context, *remote.Remote) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	r, err := a.newRemote(nil)
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck // One-shot command

	ok, err := r.Open(ctx)
	if err != nil {
		if errors.Is(err, remote.ErrPairingUnavailable) {
			return errors.New("not paired yet, run \"tvbridge pair\" first")
		}
		return err
	}
	if !ok {
		return errUnreachable
	}
	return fn(ctx, r)
}

func newPowerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "power on|off|toggle",
		Short:     "Switch the TV on or off",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			r, err := a.newRemote(nil)
			if err != nil {
				return err
			}
			defer r.Close() //nolint:errcheck // One-shot command

			ctx := cmd.Context()
			var ok bool
			switch args[0] {
			case "toggle":
				ok = r.Control(ctx, remote.KeyPower)
			default:
				ok, err = r.SetPower(ctx, args[0] == "on")
				if err != nil {
					return fmt.Errorf("power %s: %w", args[0], err)
				}
			}
			if !ok {
				return fmt.Errorf("power %s: TV did not reach the requested state", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "power: %s\n", onOff(r.Power(ctx)))
			return nil
		},
	}
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe the TV and print its status as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			r, err := a.newRemote(nil)
			if err != nil {
				return err
			}
			r.Power(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(r.Status())
		},
	}
}

func newTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if !auth.IsValidRole(auth.Role(role)) {
				return fmt.Errorf("%w: %q", auth.ErrInvalidRole, role)
			}
			if ttl == 0 {
				ttl = time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
			}

			token, err := auth.GenerateToken(subject, auth.Role(role), cfg.Security.JWT.Secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject, e.g. a panel or script name")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "viewer, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default security.jwt.access_token_ttl minutes)")
	//nolint:errcheck // Flag is defined above
	cmd.MarkFlagRequired("subject")
	return cmd
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
