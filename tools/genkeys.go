// Generates a journal signing keypair into a key directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gateward/internal/security"
)

func main() {
	dir := flag.String("dir", "keys", "directory for journal.pub / journal.priv")
	flag.Parse()

	pub, priv, err := security.GenerateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen error: %v\n", err)
		os.Exit(2)
	}
	if err := os.MkdirAll(*dir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "cannot create key dir: %v\n", err)
		os.Exit(2)
	}

	pubPath := filepath.Join(*dir, "journal.pub")
	privPath := filepath.Join(*dir, "journal.priv")
	if err := security.SaveKeyPair(pub, priv, pubPath, privPath); err != nil {
		fmt.Fprintf(os.Stderr, "cannot save keys: %v\n", err)
		os.Exit(2)
	}

	fmt.Println("wrote", pubPath)
	fmt.Println("wrote", privPath)
}
