package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lupppig/notifyhttp/internal/dispatch"
	"github.com/lupppig/notifyhttp/internal/domain"
)

var (
	sendURL         string
	sendMethod      string
	sendBody        string
	sendContentType string
	sendTrigger     string
)

type sendOutput struct {
	OK           bool   `json:"ok"`
	Kind         string `json:"kind"`
	Detail       string `json:"detail,omitempty"`
	Attempts     int    `json:"attempts"`
	StatusCode   int    `json:"status_code,omitempty"`
	ResponseBody string `json:"response_body,omitempty"`
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a notification",
	RunE: func(cmd *cobra.Command, args []string) error {
		notification := map[string]string{}
		setIfPresent(notification, domain.ConfigKeyURL, sendURL)
		setIfPresent(notification, domain.ConfigKeyMethod, sendMethod)
		setIfPresent(notification, domain.ConfigKeyBody, sendBody)
		setIfPresent(notification, domain.ConfigKeyContentType, sendContentType)

		return runDispatch(cmd, sendTrigger, notification)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendURL, "url", "", "Target URL")
	sendCmd.Flags().StringVarP(&sendMethod, "method", "X", "POST", "HTTP method (GET, POST, PUT, DELETE)")
	sendCmd.Flags().StringVarP(&sendBody, "body", "d", "", "Request body")
	sendCmd.Flags().StringVar(&sendContentType, "content-type", "", "Content-Type for the body (default application/json)")
	sendCmd.Flags().StringVar(&sendTrigger, "trigger", "manual", "Trigger name recorded with the request")
}

func setIfPresent(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func runDispatch(cmd *cobra.Command, trigger string, notification map[string]string) error {
	ctx, cancel := NewCommandContext(context.Background())
	defer cancel()

	d, sink, err := newDispatcher(ctx)
	if err != nil {
		return err
	}
	defer sink.Close()

	res := d.Run(ctx, trigger, map[string]any{}, notification)
	if err := printResult(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("notification failed (%s): %s", res.Kind, res.Detail)
	}
	return nil
}

func printResult(w io.Writer, res dispatch.Result) error {
	if IsJSONOutput() {
		data, err := json.MarshalIndent(sendOutput{
			OK:           res.OK,
			Kind:         string(res.Kind),
			Detail:       res.Detail,
			Attempts:     res.Outcome.Attempts,
			StatusCode:   res.Outcome.StatusCode,
			ResponseBody: res.Outcome.ResponseBody,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	if res.OK {
		fmt.Fprintf(w, "Notification sent (status %d, %d attempt(s))\n", res.Outcome.StatusCode, res.Outcome.Attempts)
	} else {
		fmt.Fprintf(w, "Notification not sent after %d attempt(s)\n", res.Outcome.Attempts)
	}
	return nil
}
