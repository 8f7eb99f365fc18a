package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/casperliquid/liquidstake/internal/events"
	"github.com/casperliquid/liquidstake/internal/ledger"
	"github.com/casperliquid/liquidstake/internal/storage"
	"github.com/casperliquid/liquidstake/pkg/crypto"
	"github.com/casperliquid/liquidstake/pkg/types"
)

type testEnv struct {
	t       *testing.T
	srv     *Server
	ts      *httptest.Server
	ledger  *ledger.Ledger
	journal *events.Journal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := storage.NewMemory()
	l, err := ledger.Open(ledger.NewStore(storage.NewPrefixDB(db, []byte("l/"))), ledger.DefaultMetadata())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	j, err := events.Open(storage.NewPrefixDB(db, []byte("e/")))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	l.SetEventSink(j)

	auth := NewAuthenticator(storage.NewPrefixDB(db, []byte("a/")))
	srv := New("127.0.0.1:0", l, auth)
	srv.SetJournal(j)

	ts := httptest.NewServer(http.HandlerFunc(srv.handleRequest))
	t.Cleanup(ts.Close)

	return &testEnv{t: t, srv: srv, ts: ts, ledger: l, journal: j}
}

// call posts a JSON-RPC request and decodes the response.
func (e *testEnv) call(method string, params interface{}) *Response {
	e.t.Helper()

	body, err := json.Marshal(Request{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		e.t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(e.ts.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		e.t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		e.t.Fatalf("decode response: %v", err)
	}
	return &out
}

// result decodes a successful response's result into target.
func (e *testEnv) result(resp *Response, target interface{}) {
	e.t.Helper()
	if resp.Error != nil {
		e.t.Fatalf("rpc error: %d %s", resp.Error.Code, resp.Error.Message)
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		e.t.Fatalf("marshal result: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		e.t.Fatalf("unmarshal result: %v", err)
	}
}

// signer wraps a key with its derived account address.
type testSigner struct {
	key  *crypto.PrivateKey
	addr types.Address
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &testSigner{key: key, addr: crypto.AddressFromPubKey(key.PublicKey())}
}

// stake performs a signed ledger_stake and fails the test on error.
func (e *testEnv) stake(s *testSigner, amount string, nonce uint64) {
	e.t.Helper()
	auth, err := SignRequest(s.key, "ledger_stake", []string{amount}, nonce)
	if err != nil {
		e.t.Fatalf("sign: %v", err)
	}
	resp := e.call("ledger_stake", StakeParam{Amount: amount, Auth: auth})
	if resp.Error != nil {
		e.t.Fatalf("stake: %d %s", resp.Error.Code, resp.Error.Message)
	}
}

func TestGetInfo(t *testing.T) {
	e := newTestEnv(t)

	var info InfoResult
	e.result(e.call("ledger_getInfo", struct{}{}), &info)
	if info.Symbol != "stCSPR" || info.Decimals != 9 {
		t.Fatalf("info = %+v", info)
	}
	if info.TotalSupply != "0" || info.Custody != "0" {
		t.Fatalf("fresh ledger info = %+v", info)
	}
}

func TestSignedStakeFlow(t *testing.T) {
	e := newTestEnv(t)
	alice := newTestSigner(t)

	e.stake(alice, "1000", 0)

	var bal AmountResult
	e.result(e.call("ledger_balanceOf", BalanceParam{Account: alice.addr.String()}), &bal)
	if bal.Amount != "1000" {
		t.Fatalf("balance = %s, want 1000", bal.Amount)
	}

	var supply AmountResult
	e.result(e.call("ledger_totalSupply", struct{}{}), &supply)
	if supply.Amount != "1000" {
		t.Fatalf("supply = %s", supply.Amount)
	}

	var nonce NonceResult
	e.result(e.call("ledger_getNonce", NonceParam{Account: alice.addr.String()}), &nonce)
	if nonce.Nonce != 1 {
		t.Fatalf("nonce = %d, want 1", nonce.Nonce)
	}
}

func TestReplayIsRejected(t *testing.T) {
	e := newTestEnv(t)
	alice := newTestSigner(t)

	auth, err := SignRequest(alice.key, "ledger_stake", []string{"100"}, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	params := StakeParam{Amount: "100", Auth: auth}

	if resp := e.call("ledger_stake", params); resp.Error != nil {
		t.Fatalf("first call: %+v", resp.Error)
	}
	resp := e.call("ledger_stake", params)
	if resp.Error == nil || resp.Error.Code != CodeUnauthorized {
		t.Fatalf("replay accepted: %+v", resp)
	}

	var bal AmountResult
	e.result(e.call("ledger_balanceOf", BalanceParam{Account: alice.addr.String()}), &bal)
	if bal.Amount != "100" {
		t.Fatalf("balance = %s, want 100 (replay must not double-mint)", bal.Amount)
	}
}

func TestTamperedSignatureRejected(t *testing.T) {
	e := newTestEnv(t)
	alice := newTestSigner(t)

	// Sign for 100, submit 900.
	auth, err := SignRequest(alice.key, "ledger_stake", []string{"100"}, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	resp := e.call("ledger_stake", StakeParam{Amount: "900", Auth: auth})
	if resp.Error == nil || resp.Error.Code != CodeUnauthorized {
		t.Fatalf("tampered amount accepted: %+v", resp)
	}
}

func TestFailedOperationDoesNotConsumeNonce(t *testing.T) {
	e := newTestEnv(t)
	alice := newTestSigner(t)

	// Unstake with an empty balance: rejected by the ledger, so the
	// nonce must stay 0 and the next attempt with nonce 0 must work.
	auth, err := SignRequest(alice.key, "ledger_unstake", []string{"50"}, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	resp := e.call("ledger_unstake", StakeParam{Amount: "50", Auth: auth})
	if resp.Error == nil || resp.Error.Code != CodeLedgerRejected {
		t.Fatalf("want ledger rejection, got %+v", resp)
	}

	e.stake(alice, "50", 0)
}

func TestTransferAndTransferFrom(t *testing.T) {
	e := newTestEnv(t)
	alice := newTestSigner(t)
	bob := newTestSigner(t)
	carol := newTestSigner(t)

	e.stake(alice, "500", 0)

	// Transfer: the signature covers the canonical recipient address.
	auth, err := SignRequest(alice.key, "ledger_transfer", []string{bob.addr.String(), "200"}, 1)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	resp := e.call("ledger_transfer", TransferParam{Recipient: bob.addr.String(), Amount: "200", Auth: auth})
	if resp.Error != nil {
		t.Fatalf("transfer: %+v", resp.Error)
	}

	// Approve bob to spend alice's tokens, then bob moves them to carol.
	auth, err = SignRequest(alice.key, "ledger_approve", []string{bob.addr.String(), "150"}, 2)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	resp = e.call("ledger_approve", ApproveParam{Spender: bob.addr.String(), Amount: "150", Auth: auth})
	if resp.Error != nil {
		t.Fatalf("approve: %+v", resp.Error)
	}

	auth, err = SignRequest(bob.key, "ledger_transferFrom",
		[]string{alice.addr.String(), carol.addr.String(), "150"}, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	resp = e.call("ledger_transferFrom", TransferFromParam{
		Owner: alice.addr.String(), Recipient: carol.addr.String(), Amount: "150", Auth: auth,
	})
	if resp.Error != nil {
		t.Fatalf("transferFrom: %+v", resp.Error)
	}

	var bal AmountResult
	e.result(e.call("ledger_balanceOf", BalanceParam{Account: carol.addr.String()}), &bal)
	if bal.Amount != "150" {
		t.Fatalf("carol balance = %s", bal.Amount)
	}
	var al AmountResult
	e.result(e.call("ledger_allowance", AllowanceParam{
		Owner: alice.addr.String(), Spender: bob.addr.String(),
	}), &al)
	if al.Amount != "0" {
		t.Fatalf("remaining allowance = %s", al.Amount)
	}
}

func TestEventsList(t *testing.T) {
	e := newTestEnv(t)
	alice := newTestSigner(t)
	e.stake(alice, "10", 0)
	e.stake(alice, "20", 1)

	var evs EventsResult
	e.result(e.call("events_list", EventsParam{}), &evs)
	if evs.Total != 2 || len(evs.Records) != 2 {
		t.Fatalf("events = %+v", evs)
	}
	if evs.Records[0].Kind != ledger.EventStaked {
		t.Fatalf("first record kind = %s", evs.Records[0].Kind)
	}

	e.result(e.call("events_list", EventsParam{Account: alice.addr.String(), Limit: 1}), &evs)
	if len(evs.Records) != 1 || evs.Records[0].Seq != 0 {
		t.Fatalf("filtered events = %+v", evs)
	}
}

func TestCommitmentEndpoint(t *testing.T) {
	e := newTestEnv(t)

	var before CommitmentResult
	e.result(e.call("ledger_getCommitment", struct{}{}), &before)

	alice := newTestSigner(t)
	e.stake(alice, "5", 0)

	var after CommitmentResult
	e.result(e.call("ledger_getCommitment", struct{}{}), &after)
	if before.Commitment == after.Commitment {
		t.Fatal("commitment unchanged after stake")
	}
}

func TestInvalidParams(t *testing.T) {
	e := newTestEnv(t)

	cases := []struct {
		name   string
		method string
		params interface{}
		code   int
	}{
		{"unknown method", "ledger_mint", struct{}{}, CodeMethodNotFound},
		{"bad address", "ledger_balanceOf", BalanceParam{Account: "not-an-address"}, CodeInvalidParams},
		{"missing amount", "ledger_stake", StakeParam{}, CodeInvalidParams},
		{"non-decimal amount", "ledger_stake", StakeParam{Amount: "12.5"}, CodeInvalidParams},
		{"oversized amount", "ledger_stake", StakeParam{Amount: "123456789012345678901234567890123456789012345678901234567890123456789012345678901234567890"}, CodeInvalidParams},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := e.call(tc.method, tc.params)
			if resp.Error == nil || resp.Error.Code != tc.code {
				t.Fatalf("got %+v, want code %d", resp.Error, tc.code)
			}
		})
	}
}

func TestRejectsNonPost(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Get(e.ts.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error == nil || out.Error.Code != CodeInvalidRequest {
		t.Fatalf("GET accepted: %+v", out)
	}
}

func TestRejectsWrongVersion(t *testing.T) {
	e := newTestEnv(t)
	body := []byte(`{"jsonrpc":"1.0","method":"ledger_getInfo","id":1}`)
	resp, err := http.Post(e.ts.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error == nil || out.Error.Code != CodeInvalidRequest {
		t.Fatalf("jsonrpc 1.0 accepted: %+v", out)
	}
}
