package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfrund/sigrelay/internal/message"
)

var (
	sendTopic string
	sendType  string
	sendValue string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Publish a single signal",
	Long: `Publish one signal and exit.

Examples:
  sigrelay send --topic temp --type float --value 21.5
  sigrelay send --topic door --type bool --value true`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendTopic, "topic", "t", "", "topic to publish on")
	sendCmd.Flags().StringVar(&sendType, "type", "int", "value type: int, float or bool")
	sendCmd.Flags().StringVarP(&sendValue, "value", "v", "", "value to publish")
	sendCmd.MarkFlagRequired("topic")
	sendCmd.MarkFlagRequired("value")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	kind, err := message.ParseKind(sendType)
	if err != nil {
		return err
	}
	v, err := message.ParseValue(kind, sendValue)
	if err != nil {
		return err
	}

	c, err := dial(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Publish(sendTopic, v); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", message.NewSignal(sendTopic, v))
	return nil
}
