package main

import (
	"github.com/gin-gonic/gin"

	"aa-wallet.backend/internal/interfaces/http/handlers"
)

type routeDeps struct {
	transactionHandler *handlers.TransactionHandler
	accountHandler     *handlers.AccountHandler
	paymasterHandler   *handlers.PaymasterHandler
	adminHandler       *handlers.AdminHandler
	rpcHandler         *handlers.RPCHandler
	operatorAuth       gin.HandlerFunc
	idempotency        gin.HandlerFunc
}

func registerRPCRoute(r *gin.Engine, d routeDeps) {
	r.POST("/rpc", d.rpcHandler.Serve)
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Transaction routes (public, signatures authorize)
		transactions := v1.Group("/transactions")
		{
			transactions.POST("", d.idempotency, d.transactionHandler.Submit)
			transactions.GET("/:hash", d.transactionHandler.GetTransaction)
		}

		// Account routes (public read)
		accounts := v1.Group("/accounts")
		{
			accounts.GET("/:address", d.accountHandler.GetAccount)
			accounts.GET("/:address/limits", d.accountHandler.ListLimits)
			accounts.GET("/:address/limits/:token", d.accountHandler.GetLimit)
			accounts.GET("/:address/events", d.accountHandler.ListEvents)
		}

		// Token routes (public read)
		tokens := v1.Group("/tokens")
		{
			tokens.GET("", d.accountHandler.ListTokens)
			tokens.GET("/:token/allowance", d.accountHandler.GetAllowance)
		}

		// Paymaster routes (public read)
		paymasters := v1.Group("/paymasters")
		{
			paymasters.GET("", d.paymasterHandler.ListPaymasters)
			paymasters.GET("/:address", d.paymasterHandler.GetPaymaster)
			paymasters.GET("/:address/quote", d.paymasterHandler.Quote)
		}

		v1.POST("/admin/login", d.adminHandler.Login)

		// Admin routes (operator only)
		admin := v1.Group("/admin")
		admin.Use(d.operatorAuth)
		{
			admin.POST("/accounts", d.idempotency, d.adminHandler.DeployAccount)
			admin.POST("/accounts/:address/fund", d.idempotency, d.adminHandler.Fund)
			admin.POST("/tokens", d.adminHandler.RegisterToken)
			admin.POST("/tokens/:token/mint", d.idempotency, d.adminHandler.MintToken)
			admin.POST("/paymasters", d.adminHandler.RegisterPaymaster)
			admin.PUT("/paymasters/:address/active", d.paymasterHandler.SetActive)
		}
	}
}
