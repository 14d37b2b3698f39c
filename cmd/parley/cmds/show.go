package cmds

import (
	"fmt"

	"github.com/go-go-golems/parley/pkg/history"
	"github.com/go-go-golems/parley/pkg/transcript"
	"github.com/spf13/cobra"
)

var ShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Show the interactions of a stored chat session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := history.LoadFile(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		title := record.ChatTitle
		if title == "" {
			title = transcript.FallbackTitle
		}
		fmt.Fprintf(out, "Session:  %s\n", record.ID)
		fmt.Fprintf(out, "Model:    %s\n", record.ChatModel)
		fmt.Fprintf(out, "Title:    %s\n\n", title)

		for _, interaction := range record.Interactions {
			printMessage(cmd, interaction.HumanMessage)
			if interaction.AssistantMessage != nil {
				printMessage(cmd, *interaction.AssistantMessage)
			} else {
				fmt.Fprintln(out, "[assistant]: (awaiting response)")
			}
		}
		return nil
	},
}

func printMessage(cmd *cobra.Command, msg transcript.Message) {
	out := cmd.OutOrStdout()
	text := msg.DisplayText
	if text == "" {
		text = msg.Text
	}
	fmt.Fprintf(out, "[%s]: %s\n", msg.Speaker, text)
	if msg.Error != nil {
		fmt.Fprintf(out, "[%s]: generation failed: %s\n", msg.Speaker, msg.Error.Error())
	}
}
