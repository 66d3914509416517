package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"dilse/backend/internal/models"
	"dilse/backend/internal/storage"

	"github.com/spf13/cobra"
)

var flagLimit int

var banCmd = &cobra.Command{
	Use:   "ban <anon_id> [reason...]",
	Short: "Ban a user and disconnect them; repeated bans escalate in duration",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason := "manual"
		if len(args) > 1 {
			reason = strings.Join(args[1:], " ")
		}
		d, err := store.BanUser(args[0], reason)
		if err != nil {
			return fmt.Errorf("ban %s: %w", args[0], err)
		}
		level, err := store.BanLevel(args[0])
		if err != nil {
			return fmt.Errorf("read ban level: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(
			fmt.Sprintf("User %s banned for %s (level %d).", args[0], d, level)))

		evt := models.PairEvent{Kind: models.UserBanned, Users: []string{args[0]}, Reason: reason, At: time.Now().UTC()}
		if err := store.PublishPairEvent(evt); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), WarningStyle.Render(
				fmt.Sprintf("Could not notify servers (%v); the user stays connected until they reconnect.", err)))
		}
		return nil
	},
}

var unbanCmd = &cobra.Command{
	Use:   "unban <anon_id>",
	Short: "Lift an active ban",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		banned, err := store.IsUserBanned(args[0])
		if err != nil {
			return err
		}
		if !banned {
			fmt.Fprintln(cmd.OutOrStdout(), MutedStyle.Render(fmt.Sprintf("User %s is not banned.", args[0])))
			return nil
		}
		if err := store.UnbanUser(args[0]); err != nil {
			return fmt.Errorf("unban %s: %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("User %s has been unbanned.", args[0])))
		return nil
	},
}

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "List recently archived pairs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagLimit <= 0 {
			return fmt.Errorf("--limit must be positive")
		}
		rooms, err := store.GetRecentRooms(flagLimit)
		if err != nil {
			return err
		}
		if len(rooms) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), MutedStyle.Render("No archived pairs."))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), roomsTable(rooms))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <room_id>",
	Short: "Print the archived chat of a pair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := store.GetRoomByID(args[0])
		if errors.Is(err, storage.ErrRoomNotFound) {
			return fmt.Errorf("room %s not found", args[0])
		}
		if err != nil {
			return err
		}
		msgs, err := store.GetChatHistory(room.RoomID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("Room %s (%s, %s)", room.RoomID, room.User1ID, room.User2ID)))
		if len(msgs) == 0 {
			fmt.Fprintln(out, MutedStyle.Render("No archived messages. Is HISTORY_PERSIST enabled?"))
			return nil
		}
		fmt.Fprintln(out, historyTable(msgs))
		return nil
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List connections currently waiting for a partner",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := store.GetSearchingUsers()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), MutedStyle.Render("Nobody is waiting."))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), queueTable(ids))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail pair opened/closed events until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, MutedStyle.Render("Watching pair events, Ctrl+C to stop."))
		for evt := range store.SubscribePairEvents(ctx) {
			fmt.Fprintln(out, formatPairEvent(evt))
		}
		return nil
	},
}

func init() {
	pairsCmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "number of pairs to show")

	rootCmd.AddCommand(banCmd, unbanCmd, pairsCmd, historyCmd, queueCmd, watchCmd)
}
