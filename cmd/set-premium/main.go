package main

import (
	"fmt"
	"os"
	"strconv"

	"mailroute/backend/internal/config"
	"mailroute/backend/internal/logger"
	"mailroute/backend/internal/service"
	"mailroute/backend/internal/storage/postgres"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Println("Usage: set-premium <username> <true|false>")
		os.Exit(1)
	}

	username := os.Args[1]
	premium, err := strconv.ParseBool(os.Args[2])
	if err != nil {
		fmt.Printf("Invalid premium flag %q: expected true or false\n", os.Args[2])
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		fmt.Println("A database must be configured: the in-memory store does not outlive the server process")
		os.Exit(1)
	}

	store, err := postgres.Open(cfg.Database)
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// 只修改账户字段，不需要密码校验
	accounts := service.NewAccountService(store, nil, logger.NewDevelopmentLogger())
	account, err := accounts.SetPremium(username, premium)
	if err != nil {
		fmt.Printf("Failed to update account: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Account updated\n")
	fmt.Printf("  ID:       %s\n", account.ID)
	fmt.Printf("  Username: %s\n", account.Username)
	fmt.Printf("  Premium:  %t\n", account.IsPremium)
}
