// Command pinhash prints a bcrypt hash suitable for ACCESS_PIN_HASH.
//
//	go run ./cmd/pinhash 4821
package main

import (
	"VoiceBridge/pkg/bcrypt"
	"fmt"
	"os"
	"strings"

	xbcrypt "golang.org/x/crypto/bcrypt"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: pinhash <4-digit pin>")
		os.Exit(2)
	}

	pin := strings.TrimSpace(os.Args[1])
	if err := bcrypt.ValidatePin(pin); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	hash, err := bcrypt.HashPin(pin, xbcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
