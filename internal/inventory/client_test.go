package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	contract = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func serve(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/key/getNFTsForOwner", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, owner.Hex(), q.Get("owner"))
		assert.Equal(t, contract.Hex(), q.Get("contractAddresses[]"))
		assert.Equal(t, "false", q.Get("withMetadata"))
		assert.Equal(t, "100", q.Get("pageSize"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func ids(t *testing.T, c *Client) []string {
	t.Helper()
	got, err := c.Owned(context.Background(), owner, contract)
	require.NoError(t, err)
	out := make([]string, len(got))
	for i, id := range got {
		out[i] = id.String()
	}
	return out
}

func TestOwnedParsesHexInOrder(t *testing.T) {
	srv := serve(t, `{"ownedNfts":[{"id":{"tokenId":"0x1"}},{"id":{"tokenId":"0x5"}}]}`, http.StatusOK)
	c := NewClient(srv.URL+"/v3/key/", srv.Client())
	assert.Equal(t, []string{"1", "5"}, ids(t, c))
}

func TestOwnedDropsNonNumeric(t *testing.T) {
	body := `{"ownedNfts":[
		{"id":{"tokenId":"0x000000000000000000000000000000000000000000000000000000000000000a"}},
		{"id":{"tokenId":"not-a-number"}},
		{"id":{"tokenId":""}},
		{"id":{"tokenId":"1f"}}
	]}`
	srv := serve(t, body, http.StatusOK)
	c := NewClient(srv.URL+"/v3/key", srv.Client())
	assert.Equal(t, []string{"10", "31"}, ids(t, c))
}

func TestOwnedEmpty(t *testing.T) {
	srv := serve(t, `{}`, http.StatusOK)
	c := NewClient(srv.URL+"/v3/key", srv.Client())
	assert.Empty(t, ids(t, c))
}

func TestOwnedHTTPError(t *testing.T) {
	srv := serve(t, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	c := NewClient(srv.URL+"/v3/key", srv.Client())
	_, err := c.Owned(context.Background(), owner, contract)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestParseTokenID(t *testing.T) {
	id, ok := ParseTokenID("0XFF")
	require.True(t, ok)
	assert.Equal(t, int64(255), id.Int64())

	_, ok = ParseTokenID("0x")
	assert.False(t, ok)
	_, ok = ParseTokenID("0xg1")
	assert.False(t, ok)
}
