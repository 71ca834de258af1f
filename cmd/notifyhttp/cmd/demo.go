package cmd

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/lupppig/notifyhttp/internal/domain"
)

const defaultDemoURL = "http://httpbin.org/post"

var demoMessages = []string{
	"System update completed successfully.",
	"New user registered: Samuel Arandia",
	"Database backup was successful.",
	"Server rebooted without issues.",
	"New comment posted on the blog.",
	"User login detected from a new device.",
	"Password change request received.",
	"Scheduled maintenance completed.",
	"Payment received for order ID: 12345.",
	"New order placed with ID: 12345.",
}

var (
	demoURL     string
	demoMessage string
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "POST a random sample message",
	RunE: func(cmd *cobra.Command, args []string) error {
		message := demoMessage
		if message == "" {
			message = randomMessage()
		}
		body, err := json.Marshal(map[string]string{"message": message})
		if err != nil {
			return fmt.Errorf("encode demo body: %w", err)
		}

		return runDispatch(cmd, "demo", map[string]string{
			domain.ConfigKeyURL:         demoURL,
			domain.ConfigKeyMethod:      string(domain.MethodPost),
			domain.ConfigKeyBody:        string(body),
			domain.ConfigKeyContentType: domain.DefaultContentType,
		})
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().StringVar(&demoURL, "url", defaultDemoURL, "Target URL")
	demoCmd.Flags().StringVar(&demoMessage, "message", "", "Message to send instead of a random one")
}

func randomMessage() string {
	return demoMessages[rand.Intn(len(demoMessages))]
}
