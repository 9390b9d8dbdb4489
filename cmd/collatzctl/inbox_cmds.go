package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/spf13/cobra"
)

var refreshChats bool

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Inbox.ListConversations(ctx, &collatzv1.ListConversationsRequest{Refresh: refreshChats})
		if err != nil {
			return err
		}
		emit(resp, func() {
			if len(resp.Conversations) == 0 {
				fmt.Println("No conversations.")
				return
			}
			for _, c := range resp.Conversations {
				fmt.Printf("%-36s  %-20s  %-16s  %s\n", c.ID, truncate(c.DisplayName, 20), formatMillis(c.LastMessageAtUnixMs), truncate(c.LastMessagePreview, 40))
			}
		})
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <username>",
	Short: "Find or create the direct conversation with a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Inbox.StartChat(ctx, &collatzv1.StartChatRequest{Username: args[0]})
		if err != nil {
			return err
		}
		emit(resp, func() { fmt.Printf("%s  %s\n", resp.Conversation.ID, resp.Conversation.DisplayName) })
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open <conversation-id>",
	Short: "Open a conversation and print its timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Inbox.OpenConversation(ctx, &collatzv1.OpenConversationRequest{ConversationID: args[0]})
		if err != nil {
			return err
		}
		emit(resp, func() { printTimeline(resp) })
		return nil
	},
}

var sendTo string

var sendCmd = &cobra.Command{
	Use:   "send <text...>",
	Short: "Send a text message to the active conversation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := activate(ctx, sendTo); err != nil {
			return err
		}
		resp, err := daemonClient.Inbox.SendMessage(ctx, &collatzv1.SendMessageRequest{Text: strings.Join(args, " ")})
		if err != nil {
			return err
		}
		emit(resp, func() { fmt.Printf("queued #%d (%s)\n", resp.Entry.TempID, resp.Entry.State) })
		return nil
	},
}

var imageCaption string

var sendImageCmd = &cobra.Command{
	Use:   "send-image <path>",
	Short: "Upload an image and send it to the active conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := activate(ctx, sendTo); err != nil {
			return err
		}
		resp, err := daemonClient.Inbox.SendImage(ctx, &collatzv1.SendImageRequest{Path: args[0], Caption: imageCaption})
		if err != nil {
			return err
		}
		emit(resp, func() { fmt.Printf("queued #%d %s\n", resp.Entry.TempID, resp.Entry.Text) })
		return nil
	},
}

// activate opens the conversation with username when one is given.
func activate(ctx context.Context, username string) error {
	if username == "" {
		return nil
	}
	chat, err := daemonClient.Inbox.StartChat(ctx, &collatzv1.StartChatRequest{Username: username})
	if err != nil {
		return err
	}
	_, err = daemonClient.Inbox.OpenConversation(ctx, &collatzv1.OpenConversationRequest{ConversationID: chat.Conversation.ID})
	return err
}

func parseTempID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid temp id %q", s)
	}
	return id, nil
}

var retryCmd = &cobra.Command{
	Use:   "retry <temp-id>",
	Short: "Resend a failed message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTempID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if _, err := daemonClient.Inbox.RetryMessage(ctx, &collatzv1.RetryMessageRequest{TempID: id}); err != nil {
			return err
		}
		emit(map[string]int64{"retried": id}, func() { fmt.Printf("retrying #%d\n", id) })
		return nil
	},
}

var discardCmd = &cobra.Command{
	Use:   "discard <temp-id>",
	Short: "Drop a failed message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTempID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if _, err := daemonClient.Inbox.DiscardMessage(ctx, &collatzv1.DiscardMessageRequest{TempID: id}); err != nil {
			return err
		}
		emit(map[string]int64{"discarded": id}, func() { fmt.Printf("discarded #%d\n", id) })
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if _, err := daemonClient.Inbox.DeleteConversation(ctx, &collatzv1.DeleteConversationRequest{ConversationID: args[0]}); err != nil {
			return err
		}
		emit(map[string]string{"deleted": args[0]}, func() { fmt.Println("Deleted.") })
		return nil
	},
}

var contactsLimit int32

var contactsCmd = &cobra.Command{
	Use:   "contacts <query>",
	Short: "Search users by username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Inbox.SearchUsers(ctx, &collatzv1.SearchUsersRequest{Query: args[0], Limit: contactsLimit})
		if err != nil {
			return err
		}
		emit(resp, func() {
			for _, u := range resp.Users {
				fmt.Printf("%-36s  %s\n", u.ID, u.Username)
			}
		})
		return nil
	},
}

var interestCmd = &cobra.Command{
	Use:   "interest <hackathon-id>",
	Short: "Message a hackathon's creator about joining",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Inbox.MarkInterest(ctx, &collatzv1.MarkInterestRequest{HackathonID: args[0]})
		if err != nil {
			return err
		}
		emit(resp, func() { fmt.Printf("sent interest to %s (%s)\n", resp.Conversation.DisplayName, resp.Conversation.ID) })
		return nil
	},
}

var (
	searchChat  string
	searchLimit int32
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Full-text search over cached messages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Inbox.SearchMessages(ctx, &collatzv1.SearchMessagesRequest{
			Query:          strings.Join(args, " "),
			ConversationID: searchChat,
			Limit:          searchLimit,
		})
		if err != nil {
			return err
		}
		emit(resp, func() {
			if len(resp.Results) == 0 {
				fmt.Println("No matches.")
				return
			}
			for _, h := range resp.Results {
				fmt.Printf("%s  %-16s  %s\n", formatMillis(h.CreatedAtUnixMs), truncate(h.SenderName, 16), h.Snippet)
			}
		})
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream timeline change events until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		stream, err := daemonClient.Inbox.WatchTimeline(cmd.Context(), &collatzv1.WatchTimelineRequest{})
		if err != nil {
			return err
		}
		for {
			evt, err := stream.Recv()
			if err != nil {
				return err
			}
			emit(evt, func() {
				fmt.Printf("%s  %-22s %s %s\n", formatMillis(evt.AtUnixMs), evt.Kind, evt.ConversationID, evt.ClientRef)
			})
		}
	},
}

func printTimeline(tl *collatzv1.GetTimelineResponse) {
	if len(tl.Entries) == 0 {
		fmt.Println("(no messages)")
	}
	for _, e := range tl.Entries {
		who := e.SenderName
		if e.FromMe {
			who = "me"
		}
		mark := ""
		switch e.State {
		case "pending":
			mark = fmt.Sprintf(" [sending #%d]", e.TempID)
		case "failed":
			mark = fmt.Sprintf(" [failed #%d: %s]", e.TempID, e.Error)
		}
		fmt.Printf("%s  %-16s %s%s\n", formatMillis(e.CreatedAtUnixMs), truncate(who, 16), e.Text, mark)
	}
	if tl.Draft != "" {
		fmt.Printf("draft: %s\n", tl.Draft)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	chatsCmd.Flags().BoolVar(&refreshChats, "refresh", false, "reload the list from the backend")
	sendCmd.Flags().StringVar(&sendTo, "to", "", "open the chat with this username first")
	sendImageCmd.Flags().StringVar(&sendTo, "to", "", "open the chat with this username first")
	sendImageCmd.Flags().StringVar(&imageCaption, "caption", "", "text shown with the image")
	contactsCmd.Flags().Int32Var(&contactsLimit, "limit", 10, "maximum results")
	searchCmd.Flags().StringVar(&searchChat, "chat", "", "restrict to one conversation id")
	searchCmd.Flags().Int32Var(&searchLimit, "limit", 20, "maximum results")

	rootCmd.AddCommand(chatsCmd, chatCmd, openCmd, sendCmd, sendImageCmd, retryCmd, discardCmd,
		deleteCmd, contactsCmd, interestCmd, searchCmd, watchCmd)
}
