package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"aa-wallet.backend/pkg/crypto"
)

var (
	printfFn       = fmt.Printf
	generateHashFn = crypto.HashPassword
	fatalfFn       = log.Fatalf
)

func resolvePassword(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if p := os.Getenv("OPERATOR_PASSWORD"); p != "" {
		return p, nil
	}
	return "", errors.New("usage: genhash <password> (or set OPERATOR_PASSWORD)")
}

func main() {
	password, err := resolvePassword(os.Args[1:])
	if err != nil {
		fatalfFn("%v", err)
		return
	}

	hash, err := generateHashFn(password)
	if err != nil {
		fatalfFn("Failed to hash password: %v", err)
		return
	}

	printfFn("OPERATOR_PASSWORD_HASH=%s\n", hash)
}
