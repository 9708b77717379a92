// Package inventory looks up fuel-token ownership through a hosted NFT
// indexing API.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PageSize is the number of tokens requested per lookup.
const PageSize = 100

// Client queries the indexer's getNFTsForOwner endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient returns a client for the indexer at baseURL, which already
// carries any API key path segment.
func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type ownedResponse struct {
	OwnedNFTs []struct {
		ID struct {
			TokenID string `json:"tokenId"`
		} `json:"id"`
	} `json:"ownedNfts"`
}

// Owned returns the ids of tokens of contract held by owner, in the order
// the indexer lists them. Entries that are not hexadecimal numbers are
// dropped.
func (c *Client) Owned(ctx context.Context, owner, contract common.Address) ([]*big.Int, error) {
	q := url.Values{}
	q.Set("owner", owner.Hex())
	q.Set("contractAddresses[]", contract.Hex())
	q.Set("withMetadata", "false")
	q.Set("pageSize", fmt.Sprint(PageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/getNFTsForOwner?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer error %d", resp.StatusCode)
	}

	var out ownedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode indexer response: %w", err)
	}

	ids := make([]*big.Int, 0, len(out.OwnedNFTs))
	for _, n := range out.OwnedNFTs {
		if id, ok := ParseTokenID(n.ID.TokenID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ParseTokenID parses a hexadecimal token id with or without 0x prefix.
// Leading zeros are allowed.
func ParseTokenID(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	if s == "" || s[0] == '-' || s[0] == '+' {
		return nil, false
	}
	return new(big.Int).SetString(s, 16)
}
