package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/NitishMaximus/ghost-curve/internal/models"
)

// subscribeRequest is the single subscription payload naming every tracked
// wallet.
type subscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys"`
}

const subscribeMethod = "subscribeAccountTrade"

// tradeMessage is the raw upstream DTO. Unknown fields are tolerated;
// amounts arrive as JSON numbers and are re-parsed as decimals.
type tradeMessage struct {
	Signature             string      `json:"signature"`
	Mint                  string      `json:"mint"`
	TraderPublicKey       string      `json:"traderPublicKey"`
	TxType                string      `json:"txType"`
	TokenAmount           json.Number `json:"tokenAmount"`
	SolAmount             json.Number `json:"solAmount"`
	NewTokenBalance       json.Number `json:"newTokenBalance"`
	BondingCurveKey       string      `json:"bondingCurveKey"`
	VTokensInBondingCurve json.Number `json:"vTokensInBondingCurve"`
	VSolInBondingCurve    json.Number `json:"vSolInBondingCurve"`
	MarketCapSol          json.Number `json:"marketCapSol"`
	Pool                  string      `json:"pool"`
}

// Client maintains the upstream trade stream. It owns the connection and
// the dedup ring; the ingest driver owns reconnect scheduling.
type Client struct {
	url   string
	dedup *DedupRing

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

func NewClient(url string, dedupSize int) *Client {
	return &Client{
		url:   url,
		dedup: NewDedupRing(dedupSize),
	}
}

// ConnectAndSubscribe opens the stream and subscribes to every tracked
// wallet in one payload. The connection is torn down when ctx is canceled
// so a blocked read returns early.
func (c *Client) ConnectAndSubscribe(ctx context.Context, trackedWallets []string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	sub := subscribeRequest{Method: subscribeMethod, Keys: trackedWallets}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-watchCtx.Done()
		conn.Close()
	}()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()

	log.Info().
		Str("url", c.url).
		Int("wallets", len(trackedWallets)).
		Msg("subscribed to trade feed")
	return nil
}

// Receive reads one upstream message. It returns (nil, nil) for messages
// that decode to nothing actionable (invalid, duplicate, unknown shape) and
// a non-nil error when the transport is gone and the driver must reopen.
func (c *Client) Receive(ctx context.Context) (*models.TradeEvent, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("receive: not connected")
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read: %w", err)
	}

	var msg tradeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Msg("undecodable feed message dropped")
		return nil, nil
	}

	event, ok := c.mapMessage(&msg)
	if !ok {
		return nil, nil
	}
	return event, nil
}

// mapMessage validates the DTO and maps it into a live TradeEvent. The
// received_at stamp defines the event's position in the log order.
func (c *Client) mapMessage(msg *tradeMessage) (*models.TradeEvent, bool) {
	if msg.Signature == "" || msg.Mint == "" || msg.TraderPublicKey == "" ||
		msg.TxType == "" || msg.BondingCurveKey == "" {
		log.Debug().Str("sig", msg.Signature).Msg("feed message missing required fields")
		return nil, false
	}
	if !validKey(msg.Mint) || !validKey(msg.TraderPublicKey) {
		log.Debug().Str("sig", msg.Signature).Msg("feed message with malformed keys")
		return nil, false
	}
	if c.dedup.Contains(msg.Signature) {
		return nil, false
	}

	tokenAmount, err1 := parseAmount(msg.TokenAmount)
	solAmount, err2 := parseAmount(msg.SolAmount)
	newBalance, err3 := parseAmount(msg.NewTokenBalance)
	vTokens, err4 := parseAmount(msg.VTokensInBondingCurve)
	vSol, err5 := parseAmount(msg.VSolInBondingCurve)
	marketCap, err6 := parseAmount(msg.MarketCapSol)
	for _, err := range []error{err1, err2, err3, err4, err5, err6} {
		if err != nil {
			log.Debug().Err(err).Str("sig", msg.Signature).Msg("feed message with bad amounts")
			return nil, false
		}
	}

	side := models.SideSell
	if strings.EqualFold(msg.TxType, "buy") {
		side = models.SideBuy
	}

	c.dedup.Add(msg.Signature)

	return &models.TradeEvent{
		Signature:       msg.Signature,
		Mint:            msg.Mint,
		Trader:          msg.TraderPublicKey,
		Side:            side,
		TokenAmount:     tokenAmount,
		SolAmount:       solAmount,
		NewTokenBalance: newBalance,
		CurveKey:        msg.BondingCurveKey,
		VTokensPost:     vTokens,
		VSolPost:        vSol,
		MarketCapSol:    marketCap,
		Pool:            msg.Pool,
		ReceivedAt:      time.Now().UTC(),
		Source:          models.SourceLive,
	}, true
}

// Close tears down the current connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func validKey(key string) bool {
	_, err := base58.Decode(key)
	return err == nil
}

// parseAmount converts a JSON number into a decimal, treating an absent
// field as zero.
func parseAmount(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(n.String())
}
