package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var walletAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsWalletAddress reports whether s looks like an EVM address.
func IsWalletAddress(s string) bool {
	return walletAddressPattern.MatchString(strings.TrimSpace(s))
}

// BlockscoutWalletProfiler checks a wallet's transaction count on a set of
// Blockscout instances, one per chain.
type BlockscoutWalletProfiler struct {
	client    *http.Client
	instances map[string]string
	tracer    trace.Tracer
}

// NewBlockscoutWalletProfiler takes a chain -> base URL map. Chains are
// normalized the same way candidate chains are.
func NewBlockscoutWalletProfiler(tracer trace.Tracer, instances map[string]string) *BlockscoutWalletProfiler {
	normalized := make(map[string]string, len(instances))
	for chain, baseURL := range instances {
		chain = NormalizeChain(chain)
		baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if chain == "" || baseURL == "" {
			continue
		}
		normalized[chain] = baseURL
	}
	return &BlockscoutWalletProfiler{
		client:    &http.Client{Timeout: 5 * time.Second},
		instances: normalized,
		tracer:    tracer,
	}
}

// ActiveChains returns the sorted chains where the wallet has at least one
// transaction. Chains that fail to answer are skipped; an error is returned
// only when every instance failed.
func (p *BlockscoutWalletProfiler) ActiveChains(ctx context.Context, wallet string) ([]string, error) {
	ctx, span := p.tracer.Start(ctx, "wallet.blockscout.active-chains")
	defer span.End()

	wallet = strings.ToLower(strings.TrimSpace(wallet))
	if !IsWalletAddress(wallet) {
		return nil, fmt.Errorf("invalid wallet address %q", wallet)
	}
	if len(p.instances) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		active   []string
		failures int
		lastErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	for chain, baseURL := range p.instances {
		g.Go(func() error {
			count, err := p.transactionCount(gctx, baseURL, wallet)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				lastErr = fmt.Errorf("%s: %w", chain, err)
				return nil
			}
			if count > 0 {
				active = append(active, chain)
			}
			return nil
		})
	}
	_ = g.Wait()

	if failures == len(p.instances) {
		return nil, lastErr
	}
	sort.Strings(active)
	return active, nil
}

func (p *BlockscoutWalletProfiler) transactionCount(ctx context.Context, baseURL, wallet string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v2/addresses/"+wallet+"/counters", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("blockscout error %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		TransactionsCount any `json:"transactions_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode blockscout counters: %w", err)
	}
	return asFloat(payload.TransactionsCount), nil
}
