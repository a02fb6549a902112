package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// Operations CLI for the payment admin API. Cancels, refunds and status
// syncs go through the running service so every state transition uses the
// same code path and audit trail as the HTTP surface.
func main() {
	var (
		baseURL   = flag.String("base", envOr("ADMIN_BASE_URL", "http://localhost:8080"), "Payment service base URL")
		action    = flag.String("action", "", "Action to perform: get, list, cancel, refund, sync")
		paymentID = flag.String("payment", "", "Payment id (get, cancel, refund, sync)")
		userID    = flag.String("user", "", "User id (list)")
		amount    = flag.Int64("amount", 0, "Refund amount in minor units (refund)")
	)
	flag.Parse()

	if *action == "" {
		fmt.Println("Usage: admin -action=<action> [options]")
		fmt.Println("Actions:")
		fmt.Println("  get     - Show a payment with its consent trail and raw bank payloads")
		fmt.Println("  list    - List a user's payments")
		fmt.Println("  cancel  - Reverse a succeeded payment before settlement")
		fmt.Println("  refund  - Draw back part or all of a succeeded payment")
		fmt.Println("  sync    - Reconcile the local status with the bank's view")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	cli := &adminCLI{baseURL: *baseURL, client: client}

	var err error
	switch *action {
	case "get":
		err = cli.do(http.MethodGet, "/api/v1/admin/payments/"+required(*paymentID, "-payment"), nil)
	case "list":
		err = cli.do(http.MethodGet, "/api/v1/admin/users/"+required(*userID, "-user")+"/payments", nil)
	case "cancel":
		err = cli.do(http.MethodPost, "/api/v1/admin/payments/"+required(*paymentID, "-payment")+"/cancel", nil)
	case "refund":
		if *amount <= 0 {
			log.Fatal("refund requires -amount > 0 (minor units)")
		}
		err = cli.do(http.MethodPost, "/api/v1/admin/payments/"+required(*paymentID, "-payment")+"/refund",
			map[string]int64{"amount": *amount})
	case "sync":
		err = cli.do(http.MethodPost, "/api/v1/admin/payments/"+required(*paymentID, "-payment")+"/sync", nil)
	default:
		log.Fatalf("unknown action %q", *action)
	}
	if err != nil {
		log.Fatal(err)
	}
}

type adminCLI struct {
	baseURL string
	client  *http.Client
}

func (c *adminCLI) do(method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		raw = pretty.Bytes()
	}
	fmt.Printf("%s %s -> %s\n%s\n", method, path, resp.Status, raw)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}

func required(v, name string) string {
	if v == "" {
		log.Fatalf("%s is required for this action", name)
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
