package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"visra.app/studio/internal/core"
	"visra.app/studio/internal/datauri"
	"visra.app/studio/internal/store"
)

var (
	sendImage   string
	sendMask    string
	sendNewChat bool
	sendSave    string
)

var (
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
)

var sendCmd = &cobra.Command{
	Use:   "send [text]",
	Short: "Send a message to the current chat and print the reply as it is revealed",
	Long: `Send a message, optionally with a room photo and a mask, to the current chat.
The reply is printed as it is revealed. Press Ctrl+C to stop the generation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in core.SendInput
		if len(args) == 1 {
			in.Text = args[0]
		}
		var err error
		if sendImage != "" {
			if in.Image, err = fileDataURI(sendImage); err != nil {
				return err
			}
		}
		if sendMask != "" {
			if in.Mask, err = fileDataURI(sendMask); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		ws, _, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		gen, err := ws.NewGenerator(ctx)
		if err != nil {
			return err
		}
		conv := ws.Conversation(gen)
		if sendNewChat {
			conv.NewChat()
		}

		out := cmd.OutOrStdout()
		printer := &revealPrinter{out: out, errOut: cmd.ErrOrStderr()}
		unsubscribe := conv.Subscribe(printer.handle)
		defer unsubscribe()

		fmt.Fprintf(out, "%s %s\n", boldGreen("You:"), in.Text)
		g, err := conv.Send(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprint(out, boldCyan("Visra: "))

		select {
		case <-g.Done():
		case <-ctx.Done():
			conv.Stop()
			<-g.Done()
		}
		fmt.Fprintln(out)

		if err := g.Err(); err != nil && !errors.Is(err, core.ErrGenerationStopped) {
			return err
		}
		if sendSave != "" {
			return saveReplyImage(out, conv.Snapshot().Messages, sendSave)
		}
		return nil
	},
}

// revealPrinter writes only the newly revealed characters of the reply.
type revealPrinter struct {
	out     io.Writer
	errOut  io.Writer
	replyID string
	printed int
}

func (p *revealPrinter) handle(ev core.Event) {
	switch ev.Kind {
	case core.EventNotice:
		fmt.Fprintln(p.errOut, red(ev.Notice))
	case core.EventState:
		n := len(ev.State.Messages)
		if n == 0 {
			return
		}
		last := ev.State.Messages[n-1]
		if last.Role != store.RoleAssistant {
			return
		}
		if last.ID != p.replyID {
			p.replyID, p.printed = last.ID, 0
		}
		runes := []rune(last.Content)
		if len(runes) > p.printed {
			fmt.Fprint(p.out, string(runes[p.printed:]))
			p.printed = len(runes)
		}
	}
}

func saveReplyImage(out io.Writer, msgs []store.Message, path string) error {
	if n := len(msgs); n == 0 || msgs[n-1].Role != store.RoleAssistant || msgs[n-1].Image == "" {
		fmt.Fprintln(out, "The reply has no image to save.")
		return nil
	}
	_, data, err := datauri.Decode(msgs[len(msgs)-1].Image)
	if err != nil {
		return fmt.Errorf("failed to decode reply image: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(out, "Saved image to %s\n", path)
	return nil
}

func init() {
	sendCmd.Flags().StringVar(&sendImage, "image", "", "Room photo to send")
	sendCmd.Flags().StringVar(&sendMask, "mask", "", "Mask image marking the area to change")
	sendCmd.Flags().BoolVar(&sendNewChat, "new", false, "Start a new chat before sending")
	sendCmd.Flags().StringVar(&sendSave, "save", "", "Write the reply image to this file")
	rootCmd.AddCommand(sendCmd)
}
