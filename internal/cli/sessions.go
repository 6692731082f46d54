package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/cobra"

	"github.com/sessionguard/sessionguard/internal/config"
)

var saveName string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved browser sessions",
	Long:  `Save, list, restore, and delete browser sessions via the running daemon.`,
}

var sessionsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the current browser session",
	RunE:  runSessionsSave,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved sessions",
	RunE:  runSessionsList,
}

var sessionsRestoreCmd = &cobra.Command{
	Use:   "restore <session-id>",
	Short: "Restore a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsRestore,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsSaveCmd.Flags().StringVar(&saveName, "name", "", "session name (defaults to a timestamp)")

	sessionsCmd.AddCommand(sessionsSaveCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsRestoreCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// rpcResponse mirrors the gateway's JSON-RPC response shape.
type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// callDaemon sends a single-shot JSON-RPC request to the daemon's HTTP
// endpoint, authenticated with the configured shared secret.
func callDaemon(method string, params map[string]interface{}) (json.RawMessage, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Gateway.SharedSecret == "" {
		return nil, fmt.Errorf("gateway shared_secret is not configured")
	}

	id, _ := gonanoid.New()
	body, err := json.Marshal(map[string]interface{}{
		"id":      id,
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/rpc", cfg.Gateway.Port)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-SessionGuard-Secret", cfg.Gateway.SharedSecret)

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable (is it running?): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("daemon rejected the shared secret")
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%s (code %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}

	return rpcResp.Result, nil
}

func runSessionsSave(cmd *cobra.Command, args []string) error {
	params := map[string]interface{}{}
	if saveName != "" {
		params["name"] = saveName
	}

	result, err := callDaemon("saveSession", params)
	if err != nil {
		return err
	}

	var payload struct {
		Session struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Windows []struct {
				Tabs []json.RawMessage `json:"tabs"`
			} `json:"windows"`
		} `json:"session"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return fmt.Errorf("unexpected response: %w", err)
	}

	tabs := 0
	for _, w := range payload.Session.Windows {
		tabs += len(w.Tabs)
	}

	fmt.Printf("Saved session %q (%s): %d window(s), %d tab(s)\n",
		payload.Session.Name, payload.Session.ID, len(payload.Session.Windows), tabs)
	return nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	result, err := callDaemon("getAllSessions", map[string]interface{}{})
	if err != nil {
		return err
	}

	var payload struct {
		Sessions []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			Timestamp int64  `json:"timestamp"`
			Kind      string `json:"kind"`
			Windows   []struct {
				Tabs []json.RawMessage `json:"tabs"`
			} `json:"windows"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return fmt.Errorf("unexpected response: %w", err)
	}

	if len(payload.Sessions) == 0 {
		fmt.Println("No saved sessions")
		return nil
	}

	for _, s := range payload.Sessions {
		tabs := 0
		for _, w := range s.Windows {
			tabs += len(w.Tabs)
		}
		when := time.UnixMilli(s.Timestamp).Format("2006-01-02 15:04:05")
		fmt.Printf("%-16s  %-8s  %s  %d window(s), %d tab(s)  %s\n",
			s.ID, s.Kind, when, len(s.Windows), tabs, s.Name)
	}
	return nil
}

func runSessionsRestore(cmd *cobra.Command, args []string) error {
	if _, err := callDaemon("restoreSession", map[string]interface{}{"sessionId": args[0]}); err != nil {
		return err
	}
	fmt.Printf("Session %s restored\n", args[0])
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	if _, err := callDaemon("deleteSession", map[string]interface{}{"sessionId": args[0]}); err != nil {
		return err
	}
	fmt.Printf("Session %s deleted\n", args[0])
	return nil
}
