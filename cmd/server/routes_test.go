package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"aa-wallet.backend/internal/interfaces/http/handlers"
)

func stubDeps(auth gin.HandlerFunc) routeDeps {
	return routeDeps{
		transactionHandler: &handlers.TransactionHandler{},
		accountHandler:     &handlers.AccountHandler{},
		paymasterHandler:   &handlers.PaymasterHandler{},
		adminHandler:       &handlers.AdminHandler{},
		rpcHandler:         &handlers.RPCHandler{},
		operatorAuth:       auth,
		idempotency:        func(c *gin.Context) { c.Next() },
	}
}

func TestRegisterAPIV1Routes_RegistersKeyRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	d := stubDeps(func(c *gin.Context) { c.Next() })
	registerRPCRoute(r, d)
	registerAPIV1Routes(r, d)

	expects := []struct {
		method string
		path   string
	}{
		{"POST", "/rpc"},
		{"POST", "/api/v1/transactions"},
		{"GET", "/api/v1/transactions/:hash"},
		{"GET", "/api/v1/accounts/:address"},
		{"GET", "/api/v1/accounts/:address/limits/:token"},
		{"GET", "/api/v1/accounts/:address/events"},
		{"GET", "/api/v1/tokens/:token/allowance"},
		{"GET", "/api/v1/paymasters/:address/quote"},
		{"POST", "/api/v1/admin/login"},
		{"POST", "/api/v1/admin/accounts"},
		{"POST", "/api/v1/admin/tokens/:token/mint"},
		{"PUT", "/api/v1/admin/paymasters/:address/active"},
	}

	routes := r.Routes()
	for _, exp := range expects {
		found := false
		for _, route := range routes {
			if route.Method == exp.method && route.Path == exp.path {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("route %s %s not registered", exp.method, exp.path)
		}
	}
}

func TestRegisterAPIV1Routes_AdminGroupIsGuarded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerAPIV1Routes(r, stubDeps(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusUnauthorized)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/accounts", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
