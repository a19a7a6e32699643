// Package lightning provides a gRPC client wrapper for the Lightning
// Network Daemon (LND), narrowed to what the invoice watcher (spec §4.10)
// and wallet funding need: subscribing to settled invoices, decoding a
// BOLT11 string, and issuing invoices.
package lightning

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"saturn/config"

	"github.com/lightningnetwork/lnd/lnrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// SettledInvoice is the subset of an lnrpc.Invoice update the watcher acts
// on: a confirmed settlement of a previously issued invoice.
type SettledInvoice struct {
	RHash      string
	AmountSats int64
}

// DecodedInvoice is the result of decoding a BOLT11 payment request
// without paying it.
type DecodedInvoice struct {
	PaymentHash string
	AmountSats  int64
	Expiry      int64
}

// Client wraps the LND gRPC Lightning service.
type Client struct {
	conn     *grpc.ClientConn
	lnClient lnrpc.LightningClient
}

// macaroonCredential implements grpc.PerRPCCredentials, attaching the
// hex-encoded macaroon as gRPC metadata on every RPC call.
type macaroonCredential struct {
	macaroon string
}

func (m macaroonCredential) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"macaroon": m.macaroon}, nil
}

func (m macaroonCredential) RequireTransportSecurity() bool {
	return true
}

// NewClient dials the configured LND node over TLS with macaroon auth and
// validates the connection with a GetInfo call.
func NewClient(cfg config.LightningConfig) (*Client, error) {
	creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertPath, "")
	if err != nil {
		return nil, fmt.Errorf("load tls cert from %s: %w", cfg.TLSCertPath, err)
	}

	macaroonBytes, err := os.ReadFile(cfg.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("read macaroon file %s: %w", cfg.MacaroonPath, err)
	}
	macaroonCreds := macaroonCredential{macaroon: hex.EncodeToString(macaroonBytes)}

	url := cfg.GRPCHost + ":" + cfg.GRPCPort
	conn, err := grpc.NewClient(url, grpc.WithTransportCredentials(creds), grpc.WithPerRPCCredentials(macaroonCreds))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	lnClient := lnrpc.NewLightningClient(conn)

	if _, err := lnClient.GetInfo(context.Background(), &lnrpc.GetInfoRequest{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect to LND (is it running? wallet unlocked?): %w", err)
	}

	return &Client{conn: conn, lnClient: lnClient}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// SubscribeInvoices opens LND's invoice event stream and delivers each
// confirmed settlement on the returned channel. The channel is closed
// when ctx is cancelled or the stream ends; callers should treat either
// as a signal to reconnect.
func (c *Client) SubscribeInvoices(ctx context.Context) (<-chan SettledInvoice, <-chan error) {
	out := make(chan SettledInvoice)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)

		stream, err := c.lnClient.SubscribeInvoices(ctx, &lnrpc.InvoiceSubscription{})
		if err != nil {
			errCh <- fmt.Errorf("subscribe invoices: %w", err)
			return
		}

		for {
			update, err := stream.Recv()
			if err != nil {
				errCh <- err
				return
			}
			if update.State != lnrpc.Invoice_SETTLED {
				continue
			}
			select {
			case out <- SettledInvoice{
				RHash:      hex.EncodeToString(update.RHash),
				AmountSats: update.AmtPaidSat,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}

// DecodeInvoice decodes a BOLT11 payment request without paying it.
func (c *Client) DecodeInvoice(ctx context.Context, bolt11 string) (*DecodedInvoice, error) {
	resp, err := c.lnClient.DecodePayReq(ctx, &lnrpc.PayReqString{PayReq: bolt11})
	if err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	return &DecodedInvoice{
		PaymentHash: resp.PaymentHash,
		AmountSats:  resp.NumSatoshis,
		Expiry:      resp.Expiry,
	}, nil
}

// AddInvoice creates a new Lightning invoice for amountSats, used by the
// wallet funding endpoint.
func (c *Client) AddInvoice(ctx context.Context, amountSats int64, memo string) (paymentRequest, rHash string, err error) {
	resp, err := c.lnClient.AddInvoice(ctx, &lnrpc.Invoice{Value: amountSats, Memo: memo})
	if err != nil {
		return "", "", fmt.Errorf("add invoice: %w", err)
	}
	return resp.PaymentRequest, hex.EncodeToString(resp.RHash), nil
}
