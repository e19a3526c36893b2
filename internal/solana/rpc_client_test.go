package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func rpcServer(t *testing.T, handler func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handler(req),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetTransaction(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getTransaction" {
			t.Errorf("expected method getTransaction, got %s", req.Method)
		}
		return map[string]interface{}{
			"slot":      int64(123456),
			"blockTime": int64(1700000000),
			"meta": map[string]interface{}{
				"err":          nil,
				"preBalances":  []uint64{1000, 2000},
				"postBalances": []uint64{900, 2100},
				"postTokenBalances": []map[string]interface{}{
					{
						"accountIndex": 1,
						"mint":         "mint1",
						"owner":        "addr1",
						"uiTokenAmount": map[string]interface{}{
							"amount": "47000",
						},
					},
				},
			},
			"transaction": map[string]interface{}{
				"message": map[string]interface{}{
					"accountKeys": []string{"addr1", "addr2"},
				},
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	tx, err := client.GetTransaction(context.Background(), "testsig123")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx == nil {
		t.Fatal("expected transaction, got nil")
	}
	if tx.Slot != 123456 {
		t.Errorf("expected slot 123456, got %d", tx.Slot)
	}
	if tx.Meta == nil {
		t.Fatal("expected meta, got nil")
	}
	if got := tx.Meta.TokenDelta("addr1", "mint1"); got != 47000 {
		t.Errorf("TokenDelta = %d, want 47000", got)
	}
	if got := tx.Meta.LamportsDelta("addr1"); got != -100 {
		t.Errorf("LamportsDelta = %d, want -100", got)
	}
}

func TestHTTPClient_GetTransactionNotFound(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		return nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	tx, err := client.GetTransaction(context.Background(), "unknownsig")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil for unknown signature, got %+v", tx)
	}
}

func TestHTTPClient_GetAccountInfoNotFound(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{"value": nil}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	info, err := client.GetAccountInfo(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil for missing account, got %+v", info)
	}
}

func TestHTTPClient_GetSignatureStatusUnknown(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{"value": []interface{}{nil}}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	status, err := client.GetSignatureStatus(context.Background(), "unknownsig")
	if err != nil {
		t.Fatalf("GetSignatureStatus: %v", err)
	}
	if status != nil {
		t.Errorf("expected nil for unknown signature, got %+v", status)
	}
}

func TestHTTPClient_GetTokenBalanceSumsAccounts(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getTokenAccountsByOwner" {
			t.Errorf("expected method getTokenAccountsByOwner, got %s", req.Method)
		}
		acct := func(amount string) map[string]interface{} {
			return map[string]interface{}{
				"account": map[string]interface{}{
					"data": map[string]interface{}{
						"parsed": map[string]interface{}{
							"info": map[string]interface{}{
								"tokenAmount": map[string]interface{}{"amount": amount},
							},
						},
					},
				},
			}
		}
		return map[string]interface{}{
			"value": []interface{}{acct("1000"), acct("500")},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	balance, err := client.GetTokenBalance(context.Background(), "owner", "mint")
	if err != nil {
		t.Fatalf("GetTokenBalance: %v", err)
	}
	if balance != 1500 {
		t.Errorf("balance = %d, want 1500", balance)
	}
}

// Read calls retry on transport-level failures.
func TestHTTPClient_ReadCallRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"value": uint64(42)},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))

	balance, err := client.GetBalance(context.Background(), "addr")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 42 {
		t.Errorf("balance = %d, want 42", balance)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

// sendTransaction is sent exactly once even when the transport fails: a
// blind retry could land the same transaction twice.
func TestHTTPClient_SendTransactionNeverRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))

	_, err := client.SendTransaction(context.Background(), "base64tx")
	if err == nil {
		t.Fatal("expected error from failing server")
	}
	if calls.Load() != 1 {
		t.Errorf("sendTransaction attempted %d times, want exactly 1", calls.Load())
	}
}

// An RPC error from sendTransaction surfaces as *RPCError so the caller can
// classify it as a definitive pre-inclusion rejection.
func TestHTTPClient_SendTransactionRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32002, "message": "Blockhash not found"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	_, err := client.SendTransaction(context.Background(), "base64tx")
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %v", err)
	}
	if rpcErr.Code != -32002 {
		t.Errorf("code = %d, want -32002", rpcErr.Code)
	}
}

// RPC errors on read calls are definitive and not retried either.
func TestHTTPClient_ReadCallDoesNotRetryRPCError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "Invalid params"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))

	_, err := client.GetBalance(context.Background(), "addr")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
