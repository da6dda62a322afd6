package rpc

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"veritasor/core/state"
	"veritasor/native/access"
	"veritasor/native/attest"
	"veritasor/native/fees"
	"veritasor/native/multisig"
	"veritasor/storage"
)

type openAuth struct{}

func (openAuth) Authenticate(principal [20]byte) bool { return true }

type noopTransfer struct{}

func (noopTransfer) Transfer(token, from, to [20]byte, amount *big.Int) error { return nil }

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

type fixture struct {
	server   *httptest.Server
	attest   *attest.Engine
	access   *access.Engine
	fees     *fees.Engine
	multisig *multisig.Engine
	admin    [20]byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	admin := addr(1)

	accessEngine := access.NewEngine()
	accessEngine.SetState(manager)
	accessEngine.SetAuthenticator(openAuth{})
	require.NoError(t, accessEngine.Initialize(admin))

	feeEngine := fees.NewEngine()
	feeEngine.SetState(manager)
	feeEngine.SetAccess(accessEngine)
	feeEngine.SetTransfer(noopTransfer{})

	attestEngine := attest.NewEngine()
	attestEngine.SetState(manager)
	attestEngine.SetAccess(accessEngine)
	attestEngine.SetFees(feeEngine)
	attestEngine.SetAuthenticator(openAuth{})

	multisigEngine := multisig.NewEngine()
	multisigEngine.SetState(manager)
	multisigEngine.SetAuthenticator(openAuth{})
	multisigEngine.SetAccess(accessEngine)
	multisigEngine.SetFees(feeEngine)
	require.NoError(t, multisigEngine.Initialize([][20]byte{admin}, 1))

	server := NewServer(attestEngine, feeEngine, accessEngine, multisigEngine, nil)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return &fixture{
		server:   ts,
		attest:   attestEngine,
		access:   accessEngine,
		fees:     feeEngine,
		multisig: multisigEngine,
		admin:    admin,
	}
}

func (f *fixture) get(t *testing.T, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func hexAddr(a [20]byte) string { return hex.EncodeToString(a[:]) }

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.get(t, "/healthz", nil))
}

func TestStatusReflectsPause(t *testing.T) {
	f := newFixture(t)

	var status map[string]bool
	require.Equal(t, http.StatusOK, f.get(t, "/v1/status", &status))
	require.True(t, status["initialized"])
	require.False(t, status["paused"])

	require.NoError(t, f.access.Pause(f.admin))
	require.Equal(t, http.StatusOK, f.get(t, "/v1/status", &status))
	require.True(t, status["paused"])
}

func TestAttestationLookup(t *testing.T) {
	f := newFixture(t)
	business := addr(2)
	var root [32]byte
	root[31] = 7
	require.NoError(t, f.attest.Submit(business, "2026-01", root, 1700000000, 1))

	var body map[string]interface{}
	code := f.get(t, "/v1/attestations/"+hexAddr(business)+"/2026-01", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "2026-01", body["period"])
	require.Equal(t, hex.EncodeToString(root[:]), body["root"])
	require.Equal(t, float64(1), body["version"])
	require.Equal(t, false, body["revoked"])

	require.NoError(t, f.attest.Revoke(f.admin, business, "2026-01", "restated"))
	code = f.get(t, "/v1/attestations/"+hexAddr(business)+"/2026-01", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["revoked"])
}

func TestAttestationNotFound(t *testing.T) {
	f := newFixture(t)
	code := f.get(t, "/v1/attestations/"+hexAddr(addr(2))+"/2026-01", nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestInvalidBusinessParam(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusBadRequest, f.get(t, "/v1/attestations/nothex/2026-01", nil))
	require.Equal(t, http.StatusBadRequest, f.get(t, "/v1/attestations/abcd/2026-01", nil))
}

func TestBusinessParamAcceptsHexPrefix(t *testing.T) {
	f := newFixture(t)
	business := addr(2)
	var root [32]byte
	require.NoError(t, f.attest.Submit(business, "2026-01", root, 100, 1))
	code := f.get(t, "/v1/attestations/0x"+hexAddr(business)+"/2026-01", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestMetadataLookup(t *testing.T) {
	f := newFixture(t)
	business := addr(2)
	var root [32]byte
	require.NoError(t, f.attest.SubmitWithMetadata(business, "2026-01", root, 100, 1, "USD", true))

	var body map[string]interface{}
	code := f.get(t, "/v1/attestations/"+hexAddr(business)+"/2026-01/metadata", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "USD", body["currency"])
	require.Equal(t, true, body["net"])

	// Legacy records report 404, not an error.
	require.NoError(t, f.attest.Submit(business, "2026-02", root, 100, 1))
	code = f.get(t, "/v1/attestations/"+hexAddr(business)+"/2026-02/metadata", nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestBusinessCount(t *testing.T) {
	f := newFixture(t)
	business := addr(2)
	var root [32]byte

	code := f.get(t, "/v1/businesses/"+hexAddr(business)+"/count", nil)
	require.Equal(t, http.StatusNotFound, code)

	require.NoError(t, f.attest.Submit(business, "2026-01", root, 100, 1))
	var body map[string]uint64
	code = f.get(t, "/v1/businesses/"+hexAddr(business)+"/count", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, uint64(1), body["count"])
}

func TestFeeQuote(t *testing.T) {
	f := newFixture(t)
	business := addr(2)

	var body map[string]string
	code := f.get(t, "/v1/fees/quote/"+hexAddr(business), &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "0", body["fee"])

	cfg := fees.Config{Token: addr(10), Collector: addr(11), BaseFee: big.NewInt(1000), Enabled: true}
	require.NoError(t, f.fees.Configure(f.admin, cfg))
	code = f.get(t, "/v1/fees/quote/"+hexAddr(business), &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "1000", body["fee"])
}

func TestProposalLookup(t *testing.T) {
	f := newFixture(t)
	id, err := f.multisig.CreateProposal(f.admin, multisig.Action{Kind: multisig.ActionPause})
	require.NoError(t, err)

	var body map[string]interface{}
	code := f.get(t, "/v1/multisig/proposals/1", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(id), body["id"])
	require.Equal(t, "pause", body["action"])
	require.Equal(t, "pending", body["status"])

	require.Equal(t, http.StatusNotFound, f.get(t, "/v1/multisig/proposals/99", nil))
	require.Equal(t, http.StatusBadRequest, f.get(t, "/v1/multisig/proposals/abc", nil))
}

func TestRateLimiterThrottles(t *testing.T) {
	f := newFixture(t)
	server := NewServer(f.attest, f.fees, f.access, f.multisig, nil)
	ts := httptest.NewServer(server.Router(NewRateLimiter(60, 2).Middleware))
	t.Cleanup(ts.Close)

	codes := make(map[int]int)
	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/v1/status")
		require.NoError(t, err)
		resp.Body.Close()
		codes[resp.StatusCode]++
	}
	require.Equal(t, 2, codes[http.StatusOK], "burst of two must pass")
	require.Equal(t, 3, codes[http.StatusTooManyRequests])

	// Health endpoint stays outside the throttled group.
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
