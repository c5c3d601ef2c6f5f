package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/spf13/cobra"

	"github.com/iho/cardtrade/internal/adapter/http/dto"
	"github.com/iho/cardtrade/internal/infrastructure/auth"
)

var (
	baseURL string
	timeout time.Duration
	account string
	token   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cardtrade-cli",
		Short:         "CardTrade CLI tool",
		Long:          `A command line interface for negotiating and settling card trades.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the CardTrade API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&account, "as", "", "Act as this account (servers with auth disabled)")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("CARDTRADE_TOKEN"), "Bearer token")

	rootCmd.AddCommand(tradeCmd(), accountCmd(), grantCmd(), tokenCmd())

	return rootCmd
}

// itemFlags collects bundle items from repeatable flags.
type itemFlags struct {
	cards   []string
	selects []string
	tokens  int64
	shards  []string
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.cards, "card", nil, "Card as NAME,RARITY,SET[,QTY] (repeatable)")
	cmd.Flags().StringArrayVar(&f.selects, "select", nil, "Catalog selection value, one copy (repeatable)")
	cmd.Flags().Int64Var(&f.tokens, "tokens", 0, "Token amount")
	cmd.Flags().StringArrayVar(&f.shards, "shards", nil, "Shards as SETID:AMOUNT (repeatable)")
}

func (f *itemFlags) items() ([]dto.ItemRequest, error) {
	var items []dto.ItemRequest

	for _, c := range f.cards {
		item, err := parseCard(c)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	for _, s := range f.selects {
		items = append(items, dto.ItemRequest{Type: "card", Selection: s, Quantity: 1})
	}

	if f.tokens > 0 {
		items = append(items, dto.ItemRequest{Type: "currency", Currency: "token", Amount: f.tokens})
	}

	for _, s := range f.shards {
		item, err := parseShards(s)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("at least one item is required")
	}

	return items, nil
}

func parseCard(s string) (dto.ItemRequest, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 3 || len(parts) > 4 {
		return dto.ItemRequest{}, fmt.Errorf("card %q: expected NAME,RARITY,SET[,QTY]", s)
	}

	item := dto.ItemRequest{
		Type:     "card",
		Name:     strings.TrimSpace(parts[0]),
		Rarity:   strings.TrimSpace(parts[1]),
		Set:      strings.TrimSpace(parts[2]),
		Quantity: 1,
	}

	if len(parts) == 4 {
		qty, err := strconv.ParseInt(strings.TrimSpace(parts[3]), 10, 64)
		if err != nil || qty <= 0 {
			return dto.ItemRequest{}, fmt.Errorf("card %q: invalid quantity", s)
		}
		item.Quantity = qty
	}

	return item, nil
}

func parseShards(s string) (dto.ItemRequest, error) {
	setPart, amountPart, ok := strings.Cut(s, ":")
	if !ok {
		return dto.ItemRequest{}, fmt.Errorf("shards %q: expected SETID:AMOUNT", s)
	}

	setID, err := strconv.ParseInt(setPart, 10, 32)
	if err != nil || setID <= 0 {
		return dto.ItemRequest{}, fmt.Errorf("shards %q: invalid set id", s)
	}

	amount, err := strconv.ParseInt(amountPart, 10, 64)
	if err != nil || amount <= 0 {
		return dto.ItemRequest{}, fmt.Errorf("shards %q: invalid amount", s)
	}

	return dto.ItemRequest{Type: "currency", Currency: "shards", SetID: int32(setID), Amount: amount}, nil
}

func tradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Trade operations",
	}

	var (
		to   string
		note string
		give itemFlags
		get  itemFlags
	)

	proposeCmd := &cobra.Command{
		Use:   "propose",
		Short: "Offer items to another account",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := give.items()
			if err != nil {
				return err
			}
			return request(http.MethodPost, "/api/v1/trades/", dto.ProposeTradeRequest{ReceiverID: to, Give: items, Note: note})
		},
	}
	proposeCmd.Flags().StringVar(&to, "to", "", "Receiving account")
	proposeCmd.Flags().StringVar(&note, "note", "", "Note for the receiver")
	_ = proposeCmd.MarkFlagRequired("to")
	give.register(proposeCmd)

	respondCmd := &cobra.Command{
		Use:   "respond ID",
		Short: "Name what you give in return",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := get.items()
			if err != nil {
				return err
			}
			return request(http.MethodPost, "/api/v1/trades/"+args[0]+"/respond", dto.RespondTradeRequest{Get: items})
		},
	}
	get.register(respondCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List your recent trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			var trades []dto.TradeResponse
			if err := fetch(http.MethodGet, "/api/v1/trades/", nil, &trades); err != nil {
				return err
			}
			printTrades(trades)
			return nil
		},
	}

	cmd.AddCommand(
		proposeCmd,
		respondCmd,
		simpleTradeCmd("confirm", "Confirm the current terms", http.MethodPost, "/confirm"),
		simpleTradeCmd("cancel", "Cancel a trade", http.MethodPost, "/cancel"),
		simpleTradeCmd("show", "Show a trade", http.MethodGet, ""),
		simpleTradeCmd("history", "Show the events recorded for a trade", http.MethodGet, "/events"),
		&cobra.Command{
			Use:   "active",
			Short: "Show your open trade",
			RunE: func(cmd *cobra.Command, args []string) error {
				return request(http.MethodGet, "/api/v1/trades/active", nil)
			},
		},
		listCmd,
	)

	return cmd
}

func simpleTradeCmd(use, short, method, suffix string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("invalid trade id %q", args[0])
			}
			return request(method, "/api/v1/trades/"+args[0]+suffix, nil)
		},
	}
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Holdings of an account",
	}

	for _, view := range []string{"inventory", "wallet"} {
		cmd.AddCommand(&cobra.Command{
			Use:   view + " [ACCOUNT]",
			Short: "Show the " + view + " of an account, yours by default",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				target := "me"
				if len(args) == 1 {
					target = args[0]
				}
				return request(http.MethodGet, "/api/v1/accounts/"+target+"/"+cmd.Name(), nil)
			},
		})
	}

	return cmd
}

func grantCmd() *cobra.Command {
	var items itemFlags

	cmd := &cobra.Command{
		Use:   "grant ACCOUNT",
		Short: "Credit items to an account (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := items.items()
			if err != nil {
				return err
			}
			return request(http.MethodPost, "/api/v1/admin/accounts/"+args[0]+"/grant", dto.GrantRequest{Items: list})
		},
	}
	items.register(cmd)

	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Token utilities",
	}

	var (
		secret string
		ttl    time.Duration
		admin  bool
	)

	mintCmd := &cobra.Command{
		Use:   "mint ACCOUNT",
		Short: "Mint a bearer token for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := snowflake.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid account %q: %w", args[0], err)
			}
			if secret == "" {
				return fmt.Errorf("a signing secret is required (--secret or JWT_SECRET)")
			}

			signed, err := auth.NewJWTManager(secret, ttl).Generate(id, admin)
			if err != nil {
				return err
			}

			fmt.Println(signed)
			return nil
		},
	}
	mintCmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret")
	mintCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	mintCmd.Flags().BoolVar(&admin, "admin", false, "Grant admin rights")

	cmd.AddCommand(mintCmd)

	return cmd
}

// request sends body and prints the JSON reply.
func request(method, path string, body any) error {
	var out json.RawMessage
	if err := fetch(method, path, body, &out); err != nil {
		return err
	}

	printJSON(out)
	return nil
}

func fetch(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, strings.TrimRight(baseURL, "/")+path, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		req.Header.Set("X-Account-ID", account)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr dto.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s (status %d): %s", apiErr.Error, resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, string(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

func printTrades(trades []dto.TradeResponse) {
	if len(trades) == 0 {
		fmt.Println("No trades.")
		return
	}

	fmt.Printf("%-8s %-18s %-40s %-40s\n", "ID", "STATUS", "GIVE", "GET")
	for _, t := range trades {
		fmt.Printf("%-8d %-18s %-40s %-40s\n", t.ID, t.Status, truncate(t.GiveSummary, 40), truncate(t.GetSummary, 40))
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Error encoding response: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
